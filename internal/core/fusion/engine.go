// Package fusion resolves candidate entities from all modalities into UIDN
// nodes and links co-occurring nodes with relation edges.
package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core/common"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/llm"
)

const (
	PolicyCooccurrence = "cooccurrence"
	PolicyModel        = "llm"
)

type Engine struct {
	// Scorer overrides the default Similarity scorer.
	Scorer Scorer
	// Policy overrides the relation policy named in the config.
	Policy RelationPolicy

	LLM             llm.LLMClient
	RelationsPrompt string
}

// NewEngine returns an engine. client may be nil when only the heuristic
// relation policy is used.
func NewEngine(client llm.LLMClient, prompts config.Prompts) *Engine {
	return &Engine{LLM: client, RelationsPrompt: prompts.Relations}
}

func (e *Engine) scorer(cfg config.FusionConfig) Scorer {
	if e.Scorer != nil {
		return e.Scorer
	}
	return NewSimilarity(cfg)
}

func (e *Engine) policy(cfg config.FusionConfig) RelationPolicy {
	if e.Policy != nil {
		return e.Policy
	}
	if cfg.RelationPolicy == PolicyModel && e.LLM != nil && e.RelationsPrompt != "" {
		return NewModelPolicy(e.LLM, e.RelationsPrompt)
	}
	return CooccurrencePolicy{}
}

// Fuse pools the candidates of every batch, clusters matching candidates into
// nodes and derives edges from shared source units. The output depends only
// on the batches and cfg when the heuristic relation policy is used.
func (e *Engine) Fuse(ctx context.Context, batches []model.EntityBatch, cfg config.FusionConfig) (*model.FusionGraph, *Report) {
	report := &Report{}
	graph := model.NewFusionGraph("")

	pool := e.pool(batches, report)
	report.Candidates = len(pool)
	if len(pool) == 0 {
		return graph, report
	}

	clusters := e.cluster(pool, cfg, report)

	memberOf := make([]string, len(pool))
	nodes := make([]model.FusedNode, len(clusters))
	for k, idx := range clusters {
		uidn := fmt.Sprintf("UIDN-%06d", k+1)
		members := make([]model.CandidateEntity, len(idx))
		for i, p := range idx {
			members[i] = pool[p]
			memberOf[p] = uidn
		}
		nodes[k] = canonicalize(uidn, members, cfg.CoverageBoost)
		graph.Nodes[uidn] = nodes[k]
		report.Conflicts = append(report.Conflicts, conflicts(uidn, members, cfg.ConflictThreshold)...)
	}

	graph.Edges = e.relate(ctx, pool, memberOf, graph, e.policy(cfg))

	slog.Info("fusion: case fused", "candidates", len(pool), "nodes", len(graph.Nodes),
		"edges", len(graph.Edges), "skipped", len(report.Skipped), "conflicts", len(report.Conflicts))
	return graph, report
}

// pool collects valid candidates in TEXT, VOICE, IMAGE order. Entity ids are
// only unique within a batch, so pooled candidates carry modality-qualified
// ids.
func (e *Engine) pool(batches []model.EntityBatch, report *Report) []model.CandidateEntity {
	ordered := append([]model.EntityBatch(nil), batches...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Modality.Priority() < ordered[j].Modality.Priority()
	})

	seen := make(map[string]bool)
	var pool []model.CandidateEntity
	for _, b := range ordered {
		if b.Failed() {
			continue
		}
		for _, c := range b.Entities {
			if reason := invalid(c, b.Modality, seen); reason != "" {
				skipped := model.SkippedEntity{EntityID: c.EntityID, Modality: b.Modality, Reason: reason}
				report.Skipped = append(report.Skipped, skipped)
				slog.Warn("fusion: skipping candidate", "entity", c.EntityID, "modality", b.Modality, "reason", reason)
				continue
			}
			c.EntityID = model.QualifiedID(b.Modality, c.EntityID)
			seen[c.EntityID] = true
			pool = append(pool, c)
		}
	}
	return pool
}

func invalid(c model.CandidateEntity, batchModality model.Modality, seen map[string]bool) string {
	switch {
	case c.EntityID == "":
		return "missing entity id"
	case seen[model.QualifiedID(batchModality, c.EntityID)]:
		return "duplicate entity id"
	case !c.Type.Valid():
		return fmt.Sprintf("unknown type %q", c.Type)
	case !c.Modality.Valid():
		return fmt.Sprintf("unknown modality %q", c.Modality)
	case c.Modality != batchModality:
		return fmt.Sprintf("modality %s in %s batch", c.Modality, batchModality)
	case common.NormalizeValue(c.Value) == "":
		return "empty value"
	case math.IsNaN(c.Confidence) || c.Confidence < 0 || c.Confidence > 1:
		return fmt.Sprintf("confidence %v outside [0,1]", c.Confidence)
	}
	return ""
}

// cluster links every same-type pair scoring at or above the threshold and
// returns the connected components as sorted pool indices, ordered by their
// first member.
func (e *Engine) cluster(pool []model.CandidateEntity, cfg config.FusionConfig, report *Report) [][]int {
	scorer := e.scorer(cfg)
	g := simple.NewUndirectedGraph()
	for i := range pool {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < len(pool); i++ {
		for j := i + 1; j < len(pool); j++ {
			if pool[i].Type != pool[j].Type {
				continue
			}
			score := scorer.Score(pool[i], pool[j])
			if score >= cfg.MatchThreshold {
				g.SetEdge(g.NewEdge(simple.Node(i), simple.Node(j)))
				report.Matches = append(report.Matches, Match{A: pool[i].EntityID, B: pool[j].EntityID, Score: score})
			}
		}
	}

	var clusters [][]int
	for _, component := range topo.ConnectedComponents(g) {
		idx := make([]int, len(component))
		for i, n := range component {
			idx[i] = int(n.ID())
		}
		sort.Ints(idx)
		clusters = append(clusters, idx)
	}
	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i][0] < clusters[j][0]
	})
	return clusters
}

func conflicts(uidn string, members []model.CandidateEntity, threshold float64) []Conflict {
	var out []Conflict
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			sim := ValueSimilarity(members[i].Value, members[j].Value)
			if sim < threshold {
				out = append(out, Conflict{
					UIDN: uidn, A: members[i].EntityID, B: members[j].EntityID,
					ValueA: members[i].Value, ValueB: members[j].Value, Similarity: sim,
				})
			}
		}
	}
	return out
}

type edgeAcc struct {
	edge     model.FusionEdge
	evidence map[string]bool
	miss     float64
}

// relate emits one edge per related pair of candidates sharing a modality and
// source unit. Repeated triples merge evidence and combine confidence by
// noisy-OR.
func (e *Engine) relate(ctx context.Context, pool []model.CandidateEntity, memberOf []string, graph *model.FusionGraph, policy RelationPolicy) []model.FusionEdge {
	type unitKey struct {
		m    model.Modality
		unit string
	}
	var order []unitKey
	units := make(map[unitKey][]int)
	for i, c := range pool {
		if c.Unit() == "" {
			continue
		}
		k := unitKey{c.Modality, c.Unit()}
		if _, ok := units[k]; !ok {
			order = append(order, k)
		}
		units[k] = append(units[k], i)
	}

	acc := make(map[model.EdgeKey]*edgeAcc)
	for _, k := range order {
		idx := units[k]
		for x := 0; x < len(idx); x++ {
			for y := x + 1; y < len(idx); y++ {
				a, b := pool[idx[x]], pool[idx[y]]
				ua, ub := memberOf[idx[x]], memberOf[idx[y]]
				if ua == ub {
					continue
				}
				na, nb := graph.Nodes[ua], graph.Nodes[ub]
				rel, ok := policy.Relate(ctx, k.unit, Endpoint{Candidate: a, Node: &na}, Endpoint{Candidate: b, Node: &nb})
				if !ok || rel.Source == rel.Target {
					continue
				}
				edge := model.FusionEdge{Source: rel.Source, Target: rel.Target, RelationType: rel.Type}
				ea, found := acc[edge.Key()]
				if !found {
					ea = &edgeAcc{edge: edge, evidence: make(map[string]bool), miss: 1}
					acc[edge.Key()] = ea
				}
				ea.evidence[a.EntityID] = true
				ea.evidence[b.EntityID] = true
				ea.miss *= 1 - math.Min(a.Confidence, b.Confidence)
			}
		}
	}

	edges := make([]model.FusionEdge, 0, len(acc))
	for _, ea := range acc {
		edge := ea.edge
		for id := range ea.evidence {
			edge.Evidence = append(edge.Evidence, id)
		}
		sort.Strings(edge.Evidence)
		edge.Confidence = 1 - ea.miss
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.RelationType < b.RelationType
	})
	return edges
}
