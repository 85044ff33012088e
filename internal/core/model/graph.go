package model

// FusionGraph is the immutable result of fusing one case.
type FusionGraph struct {
	CaseID string               `json:"case_id"`
	Nodes  map[string]FusedNode `json:"nodes"`
	Edges  []FusionEdge         `json:"edges"`
}

func NewFusionGraph(caseID string) *FusionGraph {
	return &FusionGraph{
		CaseID: caseID,
		Nodes:  map[string]FusedNode{},
		Edges:  []FusionEdge{},
	}
}

func (g *FusionGraph) IsEmpty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

func (g *FusionGraph) Node(uidn string) (FusedNode, bool) {
	n, ok := g.Nodes[uidn]
	return n, ok
}

// NodeFor returns the node whose member set contains entityID.
func (g *FusionGraph) NodeFor(entityID string) (FusedNode, bool) {
	for _, n := range g.Nodes {
		for _, id := range n.MemberEntityIDs {
			if id == entityID {
				return n, true
			}
		}
	}
	return FusedNode{}, false
}

// MemberCount is the total number of candidates absorbed into the graph.
func (g *FusionGraph) MemberCount() int {
	total := 0
	for _, n := range g.Nodes {
		total += len(n.MemberEntityIDs)
	}
	return total
}

// EdgesOf returns every edge touching uidn.
func (g *FusionGraph) EdgesOf(uidn string) []FusionEdge {
	var out []FusionEdge
	for _, e := range g.Edges {
		if e.Source == uidn || e.Target == uidn {
			out = append(out, e)
		}
	}
	return out
}
