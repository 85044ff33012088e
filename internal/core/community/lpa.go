package community

import (
	"sort"

	"github.com/agenthands/uidn/internal/core/model"
)

// LabelPropagationDetector implements community detection using the Label
// Propagation Algorithm. Edges are weighted by their confidence and nodes are
// visited in UIDN order, so the result is deterministic.
type LabelPropagationDetector struct {
	MaxIterations int
}

func NewLabelPropagationDetector() *LabelPropagationDetector {
	return &LabelPropagationDetector{
		MaxIterations: 20,
	}
}

func (d *LabelPropagationDetector) Detect(g *model.FusionGraph) ([][]model.FusedNode, error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, nil
	}

	ids := sortedIDs(g)
	adj := make(map[string]map[string]float64, len(ids))
	for _, id := range ids {
		adj[id] = make(map[string]float64)
	}
	for _, e := range g.Edges {
		if _, ok := adj[e.Source]; !ok {
			continue
		}
		if _, ok := adj[e.Target]; !ok || e.Source == e.Target {
			continue
		}
		w := e.Confidence
		if w <= 0 {
			w = 1
		}
		adj[e.Source][e.Target] += w
		adj[e.Target][e.Source] += w
	}

	labels := make(map[string]string, len(ids))
	for _, id := range ids {
		labels[id] = id
	}

	for iter := 0; iter < d.MaxIterations; iter++ {
		changed := 0
		for _, u := range ids {
			neighbors := adj[u]
			if len(neighbors) == 0 {
				continue
			}

			weights := make(map[string]float64)
			best := 0.0
			for v, w := range neighbors {
				weights[labels[v]] += w
				best = max(best, weights[labels[v]])
			}

			var candidates []string
			for label, w := range weights {
				if w == best {
					candidates = append(candidates, label)
				}
			}
			// lexicographically largest label wins ties
			sort.Strings(candidates)
			label := candidates[len(candidates)-1]

			if labels[u] != label {
				labels[u] = label
				changed++
			}
		}
		if changed == 0 {
			break
		}
	}

	byLabel := make(map[string][]string)
	for _, id := range ids {
		byLabel[labels[id]] = append(byLabel[labels[id]], id)
	}
	var groups [][]string
	for _, group := range byLabel {
		if len(group) >= 2 {
			groups = append(groups, group)
		}
	}
	return collect(g, groups), nil
}
