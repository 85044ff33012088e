package model

import (
	"fmt"
	"strings"
)

type Modality string

const (
	ModalityText  Modality = "TEXT"
	ModalityVoice Modality = "VOICE"
	ModalityImage Modality = "IMAGE"
)

// Modalities lists every modality in canonical priority order.
var Modalities = []Modality{ModalityText, ModalityVoice, ModalityImage}

func (m Modality) Valid() bool {
	switch m {
	case ModalityText, ModalityVoice, ModalityImage:
		return true
	}
	return false
}

// Priority ranks modalities for canonical value selection. Lower wins.
func (m Modality) Priority() int {
	switch m {
	case ModalityText:
		return 0
	case ModalityVoice:
		return 1
	case ModalityImage:
		return 2
	}
	return 3
}

func (m Modality) Lower() string {
	return strings.ToLower(string(m))
}

type EntityType string

const (
	EntityPerson   EntityType = "PERSON"
	EntityLocation EntityType = "LOCATION"
	EntityOrg      EntityType = "ORG"
	EntityTime     EntityType = "TIME"
	EntityOther    EntityType = "OTHER"
)

func (t EntityType) Valid() bool {
	switch t {
	case EntityPerson, EntityLocation, EntityOrg, EntityTime, EntityOther:
		return true
	}
	return false
}

var entityTypeAliases = map[string]EntityType{
	"PERSON":       EntityPerson,
	"PER":          EntityPerson,
	"PEOPLE":       EntityPerson,
	"NAME":         EntityPerson,
	"SUSPECT":      EntityPerson,
	"LOCATION":     EntityLocation,
	"LOC":          EntityLocation,
	"GPE":          EntityLocation,
	"PLACE":        EntityLocation,
	"ADDRESS":      EntityLocation,
	"ORG":          EntityOrg,
	"ORGANIZATION": EntityOrg,
	"ORGANISATION": EntityOrg,
	"COMPANY":      EntityOrg,
	"TIME":         EntityTime,
	"DATE":         EntityTime,
	"DATETIME":     EntityTime,
	"OTHER":        EntityOther,
	"MISC":         EntityOther,
}

// ParseEntityType maps a model-produced type label onto the closed set.
// Unknown labels become OTHER.
func ParseEntityType(s string) EntityType {
	key := strings.ToUpper(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, " ", "")
	if t, ok := entityTypeAliases[key]; ok {
		return t
	}
	return EntityOther
}

type SpanKind string

const (
	SpanOffset SpanKind = "OFFSET"
	SpanTime   SpanKind = "TIME"
	SpanBBox   SpanKind = "BBOX"
)

type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// SourceSpan locates a candidate inside its source: a sentence, an utterance
// window or an image region. Start and End are character offsets for OFFSET
// spans and seconds for TIME spans.
type SourceSpan struct {
	Unit  string   `json:"unit,omitempty"`
	Kind  SpanKind `json:"kind,omitempty"`
	Start float64  `json:"start,omitempty"`
	End   float64  `json:"end,omitempty"`
	BBox  *BBox    `json:"bbox,omitempty"`
}

type CandidateEntity struct {
	EntityID   string      `json:"entity_id"`
	Type       EntityType  `json:"type"`
	Value      string      `json:"value"`
	Modality   Modality    `json:"modality"`
	Confidence float64     `json:"confidence"`
	Span       *SourceSpan `json:"source_span,omitempty"`
}

// Unit returns the co-occurrence unit of the candidate, or "" when unknown.
func (c CandidateEntity) Unit() string {
	if c.Span == nil {
		return ""
	}
	return c.Span.Unit
}

// EntityID formats the batch-scoped identifier of the n-th candidate.
func EntityID(m Modality, n int) string {
	return fmt.Sprintf("%s:%d", m.Lower(), n)
}

// QualifiedID scopes a batch-local entity id to its modality. Ids already in
// the "<modality>:" form are returned unchanged.
func QualifiedID(m Modality, id string) string {
	prefix := m.Lower() + ":"
	if strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}
