package domain

// Granularity selects how catalog records are split into chunks.
type Granularity string

const (
	GranularityServer Granularity = "server"
	GranularityTool   Granularity = "tool"
)

// Chunk is the unit of indexing: rendered text plus metadata about its origin.
type Chunk struct {
	Text     string
	Metadata ChunkMetadata
}

type ChunkMetadata struct {
	ServerID       string      `json:"server_id"`
	ServerName     string      `json:"server_name"`
	ChildLink      string      `json:"child_link"`
	ToolName       string      `json:"tool_name,omitempty"`
	ToolSlug       string      `json:"tool_slug,omitempty"`
	RequiredParams []string    `json:"required_params,omitempty"`
	Granularity    Granularity `json:"granularity,omitempty"`
}

// IsTool reports whether the metadata belongs to a tool-level chunk.
func (m ChunkMetadata) IsTool() bool {
	return m.Granularity == GranularityTool || m.ToolName != "" || m.ToolSlug != ""
}

// SearchHit is a single similarity-search result, best-first order is
// carried by its position in the returned slice.
type SearchHit struct {
	Text     string
	Metadata ChunkMetadata
	Score    float64
}

// IndexStamp records the catalog fingerprint the persisted index was built from.
type IndexStamp struct {
	Fingerprint string
	Mode        FingerprintMode
}

// Matches reports whether the stamp was produced from the given fingerprint.
func (s IndexStamp) Matches(fingerprint string) bool {
	return s.Fingerprint != "" && s.Fingerprint == fingerprint
}
