package domain

// RankingMode selects how search hits are aggregated into servers.
type RankingMode string

const (
	// RankingReciprocal sums 1/rank per server over all retrieved chunks.
	RankingReciprocal RankingMode = "reciprocal_rank"
	// RankingFirstHit keeps the first hit per server and its similarity score.
	RankingFirstHit RankingMode = "first_hit"
)

// DirectMode marks the synthetic option that answers without any tool server.
const DirectMode = "direct"

type RankedServer struct {
	Server    string  `json:"server"`
	ChildLink string  `json:"child_link"`
	Score     float64 `json:"score"`
	Why       string  `json:"why"`
	Mode      string  `json:"mode,omitempty"`
}

// IsDirect reports whether the entry is the direct-answer option.
func (r RankedServer) IsDirect() bool {
	return r.Mode == DirectMode
}
