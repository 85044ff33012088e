package network

import (
	"sort"
	"strings"
	"time"

	"github.com/agenthands/uidn/internal/core/common"
	"github.com/agenthands/uidn/internal/core/model"
)

const DefaultTimelineConfidence = 0.5

// TimelineEvent is one TIME node with the entities linked to it.
type TimelineEvent struct {
	UIDN       string           `json:"uidn_id"`
	Value      string           `json:"value"`
	Time       *time.Time       `json:"time,omitempty"`
	Confidence float64          `json:"confidence"`
	Modalities []model.Modality `json:"modalities"`
	Related    []Neighbor       `json:"related"`
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"02.01.2006",
	"01/02/2006",
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2006",
}

// ParseTime reads the absolute date formats seen in case material. Relative
// expressions such as "Friday" are not resolved.
func ParseTime(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Timeline orders the TIME nodes at or above minConfidence. Dated events come
// first in chronological order, the rest follow by value.
func Timeline(fg *model.FusionGraph, minConfidence float64) []TimelineEvent {
	events := []TimelineEvent{}
	for id, n := range fg.Nodes {
		if n.Type != model.EntityTime || n.Confidence < minConfidence {
			continue
		}
		ev := TimelineEvent{
			UIDN:       id,
			Value:      n.CanonicalValue,
			Confidence: n.Confidence,
			Modalities: n.ModalityCoverage,
			Related:    Neighbors(fg, id),
		}
		if t, ok := ParseTime(n.CanonicalValue); ok {
			ev.Time = &t
		}
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool {
		a, b := events[i], events[j]
		switch {
		case a.Time != nil && b.Time == nil:
			return true
		case a.Time == nil && b.Time != nil:
			return false
		case a.Time != nil && !a.Time.Equal(*b.Time):
			return a.Time.Before(*b.Time)
		case a.Time == nil:
			if ka, kb := common.FoldValue(a.Value), common.FoldValue(b.Value); ka != kb {
				return ka < kb
			}
		}
		return a.UIDN < b.UIDN
	})
	return events
}
