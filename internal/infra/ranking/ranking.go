package ranking

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"agentnet/internal/domain"
)

const (
	intentPrefix = "Use for:"
	ellipsis     = "..."
)

type serverBundle struct {
	name  string
	score float64
	hits  []domain.SearchHit
}

// Rank retrieves kChunks hits for query and aggregates them into at most topN
// servers scored by the sum of 1/rank over their hits. Rank is the 1-based
// position in the full result list, including hits that are later discarded.
func Rank(ctx context.Context, query string, searcher domain.Searcher, kChunks, topN int) ([]domain.RankedServer, error) {
	hits, err := search(ctx, query, searcher, kChunks)
	if err != nil {
		return nil, err
	}
	bundles := group(hits, func(rank int, _ domain.SearchHit) float64 {
		return 1.0 / float64(rank)
	})
	sort.SliceStable(bundles, func(i, j int) bool { return bundles[i].score > bundles[j].score })
	return finish(bundles, topN), nil
}

// RankFirstHit keeps only the best hit per server and scores it by raw similarity.
func RankFirstHit(ctx context.Context, query string, searcher domain.Searcher, kChunks, topN int) ([]domain.RankedServer, error) {
	hits, err := search(ctx, query, searcher, kChunks)
	if err != nil {
		return nil, err
	}
	bundles := group(hits, nil)
	for i := range bundles {
		bundles[i].score = bundles[i].hits[0].Score
		bundles[i].hits = bundles[i].hits[:1]
	}
	return finish(bundles, topN), nil
}

// RankWith dispatches on the configured ranking mode.
func RankWith(ctx context.Context, mode domain.RankingMode, query string, searcher domain.Searcher, kChunks, topN int) ([]domain.RankedServer, error) {
	if mode == domain.RankingFirstHit {
		return RankFirstHit(ctx, query, searcher, kChunks, topN)
	}
	return Rank(ctx, query, searcher, kChunks, topN)
}

// WithDirectAnswer appends the option to answer without any tool server.
func WithDirectAnswer(results []domain.RankedServer) []domain.RankedServer {
	out := make([]domain.RankedServer, 0, len(results)+1)
	out = append(out, results...)
	return append(out, domain.RankedServer{
		Server: domain.DirectAnswerServerName,
		Why:    domain.DirectAnswerReason,
		Mode:   domain.DirectMode,
	})
}

func search(ctx context.Context, query string, searcher domain.Searcher, kChunks int) ([]domain.SearchHit, error) {
	if searcher == nil {
		return nil, errors.New("ranking requires a searcher")
	}
	if kChunks <= 0 {
		kChunks = domain.DefaultKChunks
	}
	return searcher.SimilaritySearch(ctx, query, kChunks)
}

// group buckets hits by server name in order of first appearance. Hits without
// a server name are dropped but still consume a rank.
func group(hits []domain.SearchHit, weight func(rank int, hit domain.SearchHit) float64) []serverBundle {
	index := make(map[string]int)
	var bundles []serverBundle
	for i, hit := range hits {
		name := hit.Metadata.ServerName
		if name == "" {
			continue
		}
		pos, ok := index[name]
		if !ok {
			pos = len(bundles)
			index[name] = pos
			bundles = append(bundles, serverBundle{name: name})
		}
		if weight != nil {
			bundles[pos].score += weight(i+1, hit)
		}
		bundles[pos].hits = append(bundles[pos].hits, hit)
	}
	return bundles
}

func finish(bundles []serverBundle, topN int) []domain.RankedServer {
	if topN <= 0 {
		topN = domain.DefaultTopServers
	}
	if len(bundles) > topN {
		bundles = bundles[:topN]
	}
	results := make([]domain.RankedServer, 0, len(bundles))
	for _, bundle := range bundles {
		results = append(results, domain.RankedServer{
			Server:    bundle.name,
			ChildLink: childLink(bundle.hits),
			Score:     round4(bundle.score),
			Why:       Justify(bundle.hits),
		})
	}
	return results
}

func childLink(hits []domain.SearchHit) string {
	for _, hit := range hits {
		if hit.Metadata.ChildLink != "" {
			return hit.Metadata.ChildLink
		}
	}
	return ""
}

// Justify summarizes why a server matched. Tool hits contribute up to three
// "tool: intent" entries; otherwise the best hit's intent is used.
func Justify(hits []domain.SearchHit) string {
	var toolLines []string
	hasTools := false
	for _, hit := range hits {
		if !hit.Metadata.IsTool() {
			continue
		}
		hasTools = true
		if len(toolLines) == domain.MaxReasonChunks {
			break
		}
		intent := IntentLine(hit.Text)
		if intent == "" {
			continue
		}
		tool := hit.Metadata.ToolName
		if tool == "" {
			tool = hit.Metadata.ToolSlug
		}
		toolLines = append(toolLines, tool+": "+intent)
	}
	if hasTools {
		return Shorten(strings.Join(toolLines, "; "), domain.FallbackToolReason)
	}
	if len(hits) == 0 {
		return domain.FallbackServerReason
	}
	return Shorten(IntentLine(hits[0].Text), domain.FallbackServerReason)
}

// IntentLine extracts the "Use for:" line of a rendered chunk.
func IntentLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, intentPrefix) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, intentPrefix))
		}
	}
	return ""
}

// Shorten collapses whitespace and truncates to MaxReasonLength on a word
// boundary, ending with "...". Empty input yields fallback.
func Shorten(text, fallback string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		words = strings.Fields(fallback)
	}
	joined := strings.Join(words, " ")
	if utf8.RuneCountInString(joined) <= domain.MaxReasonLength {
		return joined
	}
	budget := domain.MaxReasonLength - len(ellipsis)
	var b strings.Builder
	length := 0
	for _, word := range words {
		n := utf8.RuneCountInString(word)
		if length > 0 {
			n++
		}
		if length+n > budget {
			break
		}
		if length > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(word)
		length += n
	}
	return b.String() + ellipsis
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
