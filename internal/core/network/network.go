// Package network answers structural questions about a fused case graph:
// degree statistics, ego networks, shortest paths and the timeline of TIME
// nodes.
package network

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
	"gonum.org/v1/gonum/stat"

	"github.com/agenthands/uidn/internal/core/model"
)

const DefaultEgoDepth = 2

var ErrNodeNotFound = errors.New("node not found")

// index is the undirected view of a FusionGraph. Parallel relations between
// the same two nodes collapse into one link.
type index struct {
	g   *simple.UndirectedGraph
	ids []string
	pos map[string]int64
}

func newIndex(fg *model.FusionGraph) *index {
	ix := &index{g: simple.NewUndirectedGraph(), pos: make(map[string]int64, len(fg.Nodes))}
	for id := range fg.Nodes {
		ix.ids = append(ix.ids, id)
	}
	sort.Strings(ix.ids)
	for i, id := range ix.ids {
		ix.pos[id] = int64(i)
		ix.g.AddNode(simple.Node(i))
	}
	for _, e := range fg.Edges {
		s, ok1 := ix.pos[e.Source]
		t, ok2 := ix.pos[e.Target]
		if !ok1 || !ok2 || s == t {
			continue
		}
		ix.g.SetEdge(ix.g.NewEdge(simple.Node(s), simple.Node(t)))
	}
	return ix
}

func (ix *index) node(uidn string) (simple.Node, error) {
	i, ok := ix.pos[uidn]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNodeNotFound, uidn)
	}
	return simple.Node(i), nil
}

type Stats struct {
	NodeCount         int            `json:"node_count"`
	EdgeCount         int            `json:"edge_count"`
	AvgDegree         float64        `json:"avg_degree"`
	MaxDegree         int            `json:"max_degree"`
	MinDegree         int            `json:"min_degree"`
	Density           float64        `json:"density"`
	Components        int            `json:"components"`
	AvgEdgeConfidence float64        `json:"avg_edge_confidence"`
	Degrees           map[string]int `json:"degrees"`
}

// Statistics computes degree and density figures over distinct neighbours.
// Components counts singletons too.
func Statistics(fg *model.FusionGraph) Stats {
	st := Stats{NodeCount: len(fg.Nodes), EdgeCount: len(fg.Edges), Degrees: map[string]int{}}
	if len(fg.Nodes) == 0 {
		return st
	}

	ix := newIndex(fg)
	degrees := make([]float64, len(ix.ids))
	st.MinDegree = -1
	for i, id := range ix.ids {
		d := ix.g.From(int64(i)).Len()
		st.Degrees[id] = d
		degrees[i] = float64(d)
		st.MaxDegree = max(st.MaxDegree, d)
		if st.MinDegree < 0 || d < st.MinDegree {
			st.MinDegree = d
		}
	}
	st.AvgDegree = stat.Mean(degrees, nil)

	if n := len(ix.ids); n > 1 {
		links := ix.g.Edges().Len()
		st.Density = float64(links) / (float64(n) * float64(n-1) / 2)
	}
	st.Components = len(topo.ConnectedComponents(ix.g))

	if len(fg.Edges) > 0 {
		confs := make([]float64, len(fg.Edges))
		for i, e := range fg.Edges {
			confs[i] = e.Confidence
		}
		st.AvgEdgeConfidence = stat.Mean(confs, nil)
	}
	return st
}

// Neighbor is one relation seen from a given node.
type Neighbor struct {
	UIDN         string  `json:"uidn_id"`
	RelationType string  `json:"relation_type"`
	Confidence   float64 `json:"confidence"`
	Outgoing     bool    `json:"outgoing"`
}

// Neighbors lists the relations touching uidn, ordered by neighbour and
// relation type.
func Neighbors(fg *model.FusionGraph, uidn string) []Neighbor {
	var out []Neighbor
	for _, e := range fg.EdgesOf(uidn) {
		if e.Source == e.Target {
			continue
		}
		n := Neighbor{UIDN: e.Target, RelationType: e.RelationType, Confidence: e.Confidence, Outgoing: true}
		if e.Target == uidn {
			n.UIDN, n.Outgoing = e.Source, false
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UIDN != out[j].UIDN {
			return out[i].UIDN < out[j].UIDN
		}
		return out[i].RelationType < out[j].RelationType
	})
	return out
}

type EgoNetwork struct {
	Center    string             `json:"center"`
	Depth     int                `json:"depth"`
	Graph     *model.FusionGraph `json:"graph"`
	Neighbors []Neighbor         `json:"neighbors"`
}

// Ego returns the subgraph of nodes at most depth hops from uidn together with
// every edge between them.
func Ego(fg *model.FusionGraph, uidn string, depth int) (*EgoNetwork, error) {
	ix := newIndex(fg)
	center, err := ix.node(uidn)
	if err != nil {
		return nil, err
	}
	if depth < 0 {
		depth = 0
	}

	members := make(map[string]bool)
	var bf traverse.BreadthFirst
	bf.Walk(ix.g, center, func(n graph.Node, d int) bool {
		if d > depth {
			return true
		}
		members[ix.ids[n.ID()]] = true
		return false
	})

	sub := model.NewFusionGraph(fg.CaseID)
	seen := make(map[model.EdgeKey]bool)
	for id := range members {
		sub.Nodes[id] = fg.Nodes[id]
		for _, e := range fg.EdgesOf(id) {
			if !members[e.Source] || !members[e.Target] || seen[e.Key()] {
				continue
			}
			seen[e.Key()] = true
			sub.Edges = append(sub.Edges, e)
		}
	}
	sort.Slice(sub.Edges, func(i, j int) bool {
		a, b := sub.Edges[i], sub.Edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.RelationType < b.RelationType
	})

	return &EgoNetwork{Center: uidn, Depth: depth, Graph: sub, Neighbors: Neighbors(fg, uidn)}, nil
}

// ShortestPath returns a minimum-hop path of UIDNs from one node to another,
// or nil when they are not connected.
func ShortestPath(fg *model.FusionGraph, from, to string) ([]string, error) {
	ix := newIndex(fg)
	src, err := ix.node(from)
	if err != nil {
		return nil, err
	}
	dst, err := ix.node(to)
	if err != nil {
		return nil, err
	}
	if src == dst {
		return []string{from}, nil
	}

	nodes, _ := path.DijkstraFrom(src, ix.g).To(dst.ID())
	if len(nodes) == 0 {
		return nil, nil
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = ix.ids[n.ID()]
	}
	return out, nil
}
