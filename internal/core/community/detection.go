package community

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/agenthands/uidn/internal/core/model"
)

// CommunityDetector groups the nodes of a fused case graph. Singletons are
// not communities.
type CommunityDetector interface {
	Detect(g *model.FusionGraph) ([][]model.FusedNode, error)
}

const (
	DetectorLabelPropagation = "lpa"
	DetectorComponents       = "components"
)

// New returns the detector registered under name. An empty name selects
// label propagation.
func New(name string) (CommunityDetector, error) {
	switch name {
	case "", DetectorLabelPropagation:
		return NewLabelPropagationDetector(), nil
	case DetectorComponents:
		return NewComponentDetector(), nil
	}
	return nil, fmt.Errorf("unsupported community detector: %s", name)
}

// ComponentDetector treats every connected component of two or more nodes as
// one community.
type ComponentDetector struct{}

func NewComponentDetector() *ComponentDetector {
	return &ComponentDetector{}
}

func (d *ComponentDetector) Detect(g *model.FusionGraph) ([][]model.FusedNode, error) {
	ids := sortedIDs(g)
	index := make(map[string]int64, len(ids))
	ug := simple.NewUndirectedGraph()
	for i, id := range ids {
		index[id] = int64(i)
		ug.AddNode(simple.Node(i))
	}
	for _, e := range g.Edges {
		src, ok1 := index[e.Source]
		tgt, ok2 := index[e.Target]
		if !ok1 || !ok2 || src == tgt {
			continue
		}
		ug.SetEdge(ug.NewEdge(simple.Node(src), simple.Node(tgt)))
	}

	var groups [][]string
	for _, component := range topo.ConnectedComponents(ug) {
		if len(component) < 2 {
			continue
		}
		var group []string
		for _, n := range component {
			group = append(group, ids[n.ID()])
		}
		groups = append(groups, group)
	}
	return collect(g, groups), nil
}

func sortedIDs(g *model.FusionGraph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// collect resolves UIDN groups to nodes, each group sorted and the groups
// ordered by their first UIDN.
func collect(g *model.FusionGraph, groups [][]string) [][]model.FusedNode {
	for _, group := range groups {
		sort.Strings(group)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i][0] < groups[j][0]
	})

	communities := make([][]model.FusedNode, 0, len(groups))
	for _, group := range groups {
		nodes := make([]model.FusedNode, 0, len(group))
		for _, id := range group {
			nodes = append(nodes, g.Nodes[id])
		}
		communities = append(communities, nodes)
	}
	return communities
}

// Isolated returns the UIDNs with no edges, sorted.
func Isolated(g *model.FusionGraph) []string {
	degree := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		degree[e.Source]++
		degree[e.Target]++
	}
	var out []string
	for _, id := range sortedIDs(g) {
		if degree[id] == 0 {
			out = append(out, id)
		}
	}
	return out
}
