package domain

import (
	"encoding/json"
	"strings"
	"unicode"
)

// CatalogRecord describes one tool-providing server in the catalog.
type CatalogRecord struct {
	// Key is the mapping key the record was stored under in the catalog document.
	Key         string     `json:"-"`
	ServerID    string     `json:"server_id"`
	Name        string     `json:"name"`
	ChildLink   string     `json:"child_link"`
	Description string     `json:"description"`
	Tools       []ToolSpec `json:"tools"`
}

// DisplayName returns the server name, falling back to the catalog key and then
// to a placeholder.
func (r CatalogRecord) DisplayName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	if key := strings.TrimSpace(r.Key); key != "" {
		return key
	}
	if id := strings.TrimSpace(r.ServerID); id != "" {
		return id
	}
	return UnknownServerName
}

// Catalog is the ordered record list loaded from a catalog document.
type Catalog struct {
	Records []CatalogRecord
}

func (c Catalog) Len() int {
	return len(c.Records)
}

type ToolSpec struct {
	Name        string      `json:"name"`
	Slug        string      `json:"slug"`
	Description string      `json:"description"`
	Parameters  []ParamSpec `json:"parameters"`
}

// Key returns the canonical tool key: the slug when present, otherwise a
// normalized form of the name.
func (t ToolSpec) Key() string {
	if slug := strings.TrimSpace(t.Slug); slug != "" {
		return slug
	}
	return NormalizeSlug(t.Name)
}

// DisplayName returns the tool name, or its key when the name is blank.
func (t ToolSpec) DisplayName() string {
	if name := strings.TrimSpace(t.Name); name != "" {
		return name
	}
	return t.Key()
}

// RequiredParams lists parameters whose required flag was the literal true.
func (t ToolSpec) RequiredParams() []string {
	var out []string
	for _, p := range t.Parameters {
		if p.Required {
			out = append(out, strings.TrimSpace(p.Name))
		}
	}
	return out
}

type ParamSpec struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

type rawParamSpec struct {
	Name        string          `json:"name"`
	Type        json.RawMessage `json:"type"`
	Required    json.RawMessage `json:"required"`
	Description string          `json:"description"`
}

// UnmarshalJSON accepts "type" as a string or a list of strings and treats
// "required" as set only for the JSON literal true.
func (p *ParamSpec) UnmarshalJSON(data []byte) error {
	var raw rawParamSpec
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Description = raw.Description
	p.Type = decodeParamType(raw.Type)
	p.Required = strings.TrimSpace(string(raw.Required)) == "true"
	return nil
}

func (p ParamSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"name":        p.Name,
		"type":        p.Type,
		"required":    p.Required,
		"description": p.Description,
	})
}

func decodeParamType(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return strings.TrimSpace(single)
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		parts := make([]string, 0, len(many))
		for _, item := range many {
			if item = strings.TrimSpace(item); item != "" {
				parts = append(parts, item)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// NormalizeSlug lower-cases s and collapses runs of non-alphanumerics to "-".
func NormalizeSlug(s string) string {
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
			continue
		}
		pendingDash = true
	}
	return b.String()
}
