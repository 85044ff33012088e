package model

type FusionEdge struct {
	Source       string   `json:"source_uidn"`
	Target       string   `json:"target_uidn"`
	RelationType string   `json:"relation_type"`
	Evidence     []string `json:"evidence"`
	Confidence   float64  `json:"confidence"`
}

// Key identifies an edge for deduplication.
func (e FusionEdge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, RelationType: e.RelationType}
}

type EdgeKey struct {
	Source       string
	Target       string
	RelationType string
}
