// Package chunker renders catalog records into text chunks for embedding.
package chunker

import (
	"fmt"
	"strings"

	"agentnet/internal/domain"
)

const maxIntentLength = domain.MaxIntentLength

// Build renders the catalog at the requested granularity.
func Build(catalog domain.Catalog, granularity domain.Granularity) []domain.Chunk {
	if granularity == domain.GranularityTool {
		return BuildToolChunks(catalog)
	}
	return BuildServerChunks(catalog)
}

// BuildServerChunks renders one chunk per catalog record.
func BuildServerChunks(catalog domain.Catalog) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(catalog.Records))
	for _, rec := range catalog.Records {
		chunks = append(chunks, serverChunk(rec))
	}
	return chunks
}

// BuildToolChunks renders one chunk per tool. Records without tools still get
// a server chunk so they stay discoverable.
func BuildToolChunks(catalog domain.Catalog) []domain.Chunk {
	var chunks []domain.Chunk
	for _, rec := range catalog.Records {
		if len(rec.Tools) == 0 {
			chunks = append(chunks, serverChunk(rec))
			continue
		}
		for _, tool := range rec.Tools {
			chunks = append(chunks, toolChunk(rec, tool))
		}
	}
	return chunks
}

func serverChunk(rec domain.CatalogRecord) domain.Chunk {
	name := rec.DisplayName()
	clean := SanitizeDescription(rec.Description)
	intent := SummarizeIntent(clean, domain.FallbackServerIntent)

	lines := []string{
		fmt.Sprintf("[Server: %s]", name),
		"Use for: " + intent,
	}
	if clean != "" {
		lines = append(lines, clean)
	}
	return domain.Chunk{
		Text: strings.Join(lines, "\n"),
		Metadata: domain.ChunkMetadata{
			ServerID:    rec.ServerID,
			ServerName:  name,
			ChildLink:   rec.ChildLink,
			Granularity: domain.GranularityServer,
		},
	}
}

func toolChunk(rec domain.CatalogRecord, tool domain.ToolSpec) domain.Chunk {
	name := rec.DisplayName()
	toolName := tool.DisplayName()
	intent := SummarizeIntent(SanitizeDescription(tool.Description), domain.FallbackToolIntent)

	lines := []string{
		fmt.Sprintf("[Server: %s] [Tool: %s]", name, toolName),
		"Use for: " + intent,
		"Params: " + renderParams(tool.Parameters),
	}
	return domain.Chunk{
		Text: strings.Join(lines, "\n"),
		Metadata: domain.ChunkMetadata{
			ServerID:       rec.ServerID,
			ServerName:     name,
			ChildLink:      rec.ChildLink,
			ToolName:       toolName,
			ToolSlug:       tool.Key(),
			RequiredParams: tool.RequiredParams(),
			Granularity:    domain.GranularityTool,
		},
	}
}

func renderParams(params []domain.ParamSpec) string {
	if len(params) == 0 {
		return "none"
	}
	sigs := make([]string, 0, len(params))
	for _, p := range params {
		requirement := "optional"
		if p.Required {
			requirement = "required"
		}
		sigs = append(sigs, fmt.Sprintf("%s (%s, %s)", strings.TrimSpace(p.Name), strings.TrimSpace(p.Type), requirement))
	}
	return strings.Join(sigs, ", ")
}
