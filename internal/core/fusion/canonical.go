package fusion

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/agenthands/uidn/internal/core/common"
	"github.com/agenthands/uidn/internal/core/model"
)

// canonicalize builds the node for one cluster of matched candidates.
func canonicalize(uidn string, members []model.CandidateEntity, coverageBoost float64) model.FusedNode {
	node := model.FusedNode{
		UIDN: uidn,
		Type: members[0].Type,
	}

	type valueGroup struct {
		key      string
		total    float64
		priority int
		best     model.CandidateEntity
	}
	var groups []*valueGroup
	byKey := make(map[string]*valueGroup)
	perModality := make(map[model.Modality]int)
	seenAlias := make(map[string]bool)

	for _, c := range members {
		perModality[c.Modality]++
		value := common.NormalizeValue(c.Value)
		if !seenAlias[value] {
			seenAlias[value] = true
			node.Aliases = append(node.Aliases, value)
		}
		node.MemberEntityIDs = append(node.MemberEntityIDs, c.EntityID)

		key := common.FoldValue(value)
		g, ok := byKey[key]
		if !ok {
			g = &valueGroup{key: key, priority: c.Modality.Priority(), best: c}
			byKey[key] = g
			groups = append(groups, g)
		}
		g.total += c.Confidence
		g.priority = min(g.priority, c.Modality.Priority())
		if c.Confidence > g.best.Confidence {
			g.best = c
		}
	}

	winner := groups[0]
	for _, g := range groups[1:] {
		switch {
		case g.total > winner.total+1e-9:
			winner = g
		case math.Abs(g.total-winner.total) <= 1e-9:
			if g.priority < winner.priority || (g.priority == winner.priority && g.key < winner.key) {
				winner = g
			}
		}
	}
	node.CanonicalValue = common.NormalizeValue(winner.best.Value)

	for _, m := range model.Modalities {
		if perModality[m] > 0 {
			node.ModalityCoverage = append(node.ModalityCoverage, m)
		}
	}
	sort.Strings(node.MemberEntityIDs)
	sort.Strings(node.Aliases)

	confs := make([]float64, len(members))
	weights := make([]float64, len(members))
	for i, c := range members {
		confs[i] = c.Confidence
		weights[i] = 1 / float64(perModality[c.Modality])
	}
	conf := stat.Mean(confs, weights) * math.Pow(1+coverageBoost, float64(len(node.ModalityCoverage)-1))
	node.Confidence = math.Min(conf, 1)
	return node
}
