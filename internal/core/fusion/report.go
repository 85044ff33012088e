package fusion

import "github.com/agenthands/uidn/internal/core/model"

// Match is a candidate pair that scored at or above the match threshold.
type Match struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// Conflict flags two members of one node whose values disagree.
type Conflict struct {
	UIDN       string  `json:"uidn_id"`
	A          string  `json:"a"`
	B          string  `json:"b"`
	ValueA     string  `json:"value_a"`
	ValueB     string  `json:"value_b"`
	Similarity float64 `json:"similarity"`
}

// Report carries the diagnostics of one Fuse call.
type Report struct {
	Candidates int                   `json:"candidates"`
	Skipped    []model.SkippedEntity `json:"skipped,omitempty"`
	Conflicts  []Conflict            `json:"conflicts,omitempty"`
	Matches    []Match               `json:"matches,omitempty"`
}
