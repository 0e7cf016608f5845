package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"agentnet/internal/domain"
)

// Loader reads catalog documents produced by the external ETL step.
type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("catalog")}
}

// Load reads the catalog at path. Records are ordered by their mapping key.
func (l *Loader) Load(ctx context.Context, path string) (domain.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return domain.Catalog{}, domain.E(domain.CodeCatalogNotFound, "catalog.Load", "catalog path is required", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Catalog{}, domain.E(domain.CodeCatalogNotFound, "catalog.Load", fmt.Sprintf("catalog not found: %s", path), err)
		}
		return domain.Catalog{}, fmt.Errorf("read catalog: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Catalog{}, err
	}

	cat, skipped, err := Parse(data)
	if err != nil {
		return domain.Catalog{}, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(skipped) > 0 {
		l.logger.Warn("catalog entries skipped", zap.String("path", path), zap.Strings("keys", skipped))
	}
	l.logger.Debug("catalog loaded", zap.String("path", path), zap.Int("servers", cat.Len()))
	return cat, nil
}

type rawRecord struct {
	ServerID    string            `json:"server_id"`
	Name        string            `json:"name"`
	ServerName  string            `json:"server_name"`
	ChildLink   string            `json:"child_link"`
	Description string            `json:"description"`
	Tools       []domain.ToolSpec `json:"tools"`
}

func (r rawRecord) normalize(key string) domain.CatalogRecord {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		name = strings.TrimSpace(r.ServerName)
	}
	return domain.CatalogRecord{
		Key:         key,
		ServerID:    strings.TrimSpace(r.ServerID),
		Name:        name,
		ChildLink:   strings.TrimSpace(r.ChildLink),
		Description: strings.TrimSpace(r.Description),
		Tools:       r.Tools,
	}
}

// Parse decodes a catalog document. Entries that are not JSON objects are
// skipped and their keys returned.
func Parse(data []byte) (domain.Catalog, []string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.Catalog{}, nil, err
	}

	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	records := make([]domain.CatalogRecord, 0, len(keys))
	var skipped []string
	for _, key := range keys {
		if strings.TrimSpace(string(raw[key])) == "null" {
			skipped = append(skipped, key)
			continue
		}
		var entry rawRecord
		if err := json.Unmarshal(raw[key], &entry); err != nil {
			skipped = append(skipped, key)
			continue
		}
		records = append(records, entry.normalize(key))
	}
	return domain.Catalog{Records: records}, skipped, nil
}
