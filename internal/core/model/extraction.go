package model

// ExtractedEntity is one row of the JSON a model returns for entity extraction.
type ExtractedEntity struct {
	Type       string    `json:"type"`
	Value      string    `json:"value"`
	Confidence *float64  `json:"confidence,omitempty"`
	Unit       string    `json:"unit,omitempty"`
	Start      *float64  `json:"start,omitempty"`
	End        *float64  `json:"end,omitempty"`
	BBox       []float64 `json:"bbox,omitempty"`
}

type ExtractedEntities struct {
	Entities []ExtractedEntity `json:"entities"`
}

type ExtractedRelation struct {
	RelationType string `json:"relation_type"`
}

type EntitySummary struct {
	Summary string `json:"summary"`
}

type CommunityName struct {
	Name string `json:"name"`
}
