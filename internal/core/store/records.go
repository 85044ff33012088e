package store

import (
	"fmt"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/agenthands/uidn/internal/core/model"
)

func sortedNodes(g *model.FusionGraph) []model.FusedNode {
	nodes := make([]model.FusedNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].UIDN < nodes[j].UIDN
	})
	return nodes
}

func nodeParams(n model.FusedNode) map[string]interface{} {
	coverage := make([]string, len(n.ModalityCoverage))
	for i, m := range n.ModalityCoverage {
		coverage[i] = string(m)
	}
	return map[string]interface{}{
		"uidn_id":           n.UIDN,
		"type":              string(n.Type),
		"canonical_value":   n.CanonicalValue,
		"aliases":           n.Aliases,
		"member_entity_ids": n.MemberEntityIDs,
		"modality_coverage": coverage,
		"confidence":        n.Confidence,
	}
}

func edgeParams(e model.FusionEdge) map[string]interface{} {
	return map[string]interface{}{
		"source_uidn":   e.Source,
		"target_uidn":   e.Target,
		"relation_type": e.RelationType,
		"evidence":      e.Evidence,
		"confidence":    e.Confidence,
	}
}

func recordNode(rec *neo4j.Record) (model.FusedNode, error) {
	id, _, err := neo4j.GetRecordValue[string](rec, "uidn_id")
	if err != nil {
		return model.FusedNode{}, fmt.Errorf("failed to read node id: %w", err)
	}
	typ, _, err := neo4j.GetRecordValue[string](rec, "type")
	if err != nil {
		return model.FusedNode{}, fmt.Errorf("failed to read type of %s: %w", id, err)
	}
	value, _, err := neo4j.GetRecordValue[string](rec, "canonical_value")
	if err != nil {
		return model.FusedNode{}, fmt.Errorf("failed to read value of %s: %w", id, err)
	}
	conf, _, err := neo4j.GetRecordValue[float64](rec, "confidence")
	if err != nil {
		return model.FusedNode{}, fmt.Errorf("failed to read confidence of %s: %w", id, err)
	}

	n := model.FusedNode{
		UIDN:            id,
		Type:            model.EntityType(typ),
		CanonicalValue:  value,
		Aliases:         stringList(rec, "aliases"),
		MemberEntityIDs: stringList(rec, "member_entity_ids"),
		Confidence:      conf,
	}
	for _, m := range stringList(rec, "modality_coverage") {
		n.ModalityCoverage = append(n.ModalityCoverage, model.Modality(m))
	}
	return n, nil
}

func recordEdge(rec *neo4j.Record) (model.FusionEdge, error) {
	var e model.FusionEdge
	var err error
	if e.Source, _, err = neo4j.GetRecordValue[string](rec, "source_uidn"); err != nil {
		return e, fmt.Errorf("failed to read edge source: %w", err)
	}
	if e.Target, _, err = neo4j.GetRecordValue[string](rec, "target_uidn"); err != nil {
		return e, fmt.Errorf("failed to read edge target: %w", err)
	}
	if e.RelationType, _, err = neo4j.GetRecordValue[string](rec, "relation_type"); err != nil {
		return e, fmt.Errorf("failed to read relation type: %w", err)
	}
	if e.Confidence, _, err = neo4j.GetRecordValue[float64](rec, "confidence"); err != nil {
		return e, fmt.Errorf("failed to read edge confidence: %w", err)
	}
	e.Evidence = stringList(rec, "evidence")
	return e, nil
}

// stringList reads a list property, which the driver returns as []any.
func stringList(rec *neo4j.Record, key string) []string {
	raw, ok := rec.Get(key)
	if !ok || raw == nil {
		return nil
	}
	var out []string
	switch v := raw.(type) {
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	case []string:
		out = append(out, v...)
	}
	return out
}
