package fusion

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core/model"
)

func candidate(id string, m model.Modality, t model.EntityType, value string, conf float64, unit string) model.CandidateEntity {
	c := model.CandidateEntity{EntityID: id, Type: t, Value: value, Modality: m, Confidence: conf}
	if unit != "" {
		c.Span = &model.SourceSpan{Unit: unit}
	}
	return c
}

func fusionConfig() config.FusionConfig {
	return config.DefaultPipeline().Fusion
}

func scenarioBatches() []model.EntityBatch {
	return []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{
			candidate("text:1", model.ModalityText, model.EntityPerson, "John Smith", 0.9, "sentence-1"),
			candidate("text:2", model.ModalityText, model.EntityLocation, "Berlin", 0.8, "sentence-1"),
		}),
		model.OKBatch(model.ModalityVoice, nil),
		model.OKBatch(model.ModalityImage, []model.CandidateEntity{
			candidate("image:1", model.ModalityImage, model.EntityPerson, "J. Smith", 0.6, "region-1"),
		}),
	}
}

func TestFuse_Scenario(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	g, report := e.Fuse(context.Background(), scenarioBatches(), fusionConfig())

	require.Len(t, g.Nodes, 2)
	assert.Equal(t, 3, report.Candidates)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Conflicts)
	require.Len(t, report.Matches, 1)

	john, ok := g.Node("UIDN-000001")
	require.True(t, ok)
	assert.Equal(t, model.EntityPerson, john.Type)
	assert.Equal(t, "John Smith", john.CanonicalValue)
	assert.Equal(t, []model.Modality{model.ModalityText, model.ModalityImage}, john.ModalityCoverage)
	assert.Equal(t, []string{"image:1", "text:1"}, john.MemberEntityIDs)
	assert.Equal(t, []string{"J. Smith", "John Smith"}, john.Aliases)
	assert.InDelta(t, 0.8625, john.Confidence, 1e-9)

	berlin, ok := g.Node("UIDN-000002")
	require.True(t, ok)
	assert.Equal(t, "Berlin", berlin.CanonicalValue)
	assert.Equal(t, []model.Modality{model.ModalityText}, berlin.ModalityCoverage)
	assert.InDelta(t, 0.8, berlin.Confidence, 1e-9)

	require.Len(t, g.Edges, 1)
	edge := g.Edges[0]
	assert.Equal(t, "UIDN-000001", edge.Source)
	assert.Equal(t, "UIDN-000002", edge.Target)
	assert.Equal(t, "LOCATED_AT", edge.RelationType)
	assert.Equal(t, []string{"text:1", "text:2"}, edge.Evidence)
	assert.InDelta(t, 0.8, edge.Confidence, 1e-9)
}

func TestFuse_Deterministic(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	first, r1 := e.Fuse(context.Background(), scenarioBatches(), fusionConfig())
	second, r2 := e.Fuse(context.Background(), scenarioBatches(), fusionConfig())

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("graph mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(r1, r2); diff != "" {
		t.Errorf("report mismatch (-first +second):\n%s", diff)
	}

	// batch order must not matter
	b := scenarioBatches()
	b[0], b[2] = b[2], b[0]
	reordered, _ := e.Fuse(context.Background(), b, fusionConfig())
	if diff := cmp.Diff(first, reordered); diff != "" {
		t.Errorf("graph depends on batch order (-want +got):\n%s", diff)
	}
}

func TestFuse_TransitiveMerge(t *testing.T) {
	matches := map[[2]string]float64{
		{"text:1", "voice:1"}:  0.9,
		{"voice:1", "image:1"}: 0.9,
		{"text:1", "image:1"}:  0.1,
	}
	e := &Engine{Scorer: ScorerFunc(func(a, b model.CandidateEntity) float64 {
		if s, ok := matches[[2]string{a.EntityID, b.EntityID}]; ok {
			return s
		}
		return matches[[2]string{b.EntityID, a.EntityID}]
	})}

	batches := []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{candidate("text:1", model.ModalityText, model.EntityPerson, "A", 0.9, "")}),
		model.OKBatch(model.ModalityVoice, []model.CandidateEntity{candidate("voice:1", model.ModalityVoice, model.EntityPerson, "B", 0.8, "")}),
		model.OKBatch(model.ModalityImage, []model.CandidateEntity{candidate("image:1", model.ModalityImage, model.EntityPerson, "C", 0.7, "")}),
	}
	g, report := e.Fuse(context.Background(), batches, fusionConfig())

	require.Len(t, g.Nodes, 1)
	n := g.Nodes["UIDN-000001"]
	assert.Equal(t, []string{"image:1", "text:1", "voice:1"}, n.MemberEntityIDs)
	assert.Equal(t, model.Modalities, n.ModalityCoverage)
	assert.LessOrEqual(t, n.Confidence, 1.0)
	// single-letter values never agree
	assert.NotEmpty(t, report.Conflicts)
}

func TestFuse_EveryCandidateInExactlyOneNode(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	batches := []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{
			candidate("text:1", model.ModalityText, model.EntityPerson, "Anna Berg", 0.9, "sentence-1"),
			candidate("text:2", model.ModalityText, model.EntityOrg, "Acme GmbH", 0.7, "sentence-1"),
			candidate("text:3", model.ModalityText, model.EntityTime, "Friday", 0.6, "sentence-2"),
		}),
		model.OKBatch(model.ModalityVoice, []model.CandidateEntity{
			candidate("voice:1", model.ModalityVoice, model.EntityPerson, "Anna Berg", 0.8, "utterance-1"),
			candidate("voice:2", model.ModalityVoice, model.EntityOrg, "Acme", 0.5, "utterance-1"),
		}),
	}
	g, report := e.Fuse(context.Background(), batches, fusionConfig())

	seen := map[string]int{}
	for _, n := range g.Nodes {
		for _, id := range n.MemberEntityIDs {
			seen[id]++
		}
		for _, m := range n.ModalityCoverage {
			assert.True(t, n.Covers(m))
		}
	}
	assert.Len(t, seen, report.Candidates)
	for id, count := range seen {
		assert.Equal(t, 1, count, id)
	}
	for _, edge := range g.Edges {
		assert.NotEqual(t, edge.Source, edge.Target)
		assert.Contains(t, g.Nodes, edge.Source)
		assert.Contains(t, g.Nodes, edge.Target)
	}
}

func TestFuse_EmptyPool(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	g, report := e.Fuse(context.Background(), []model.EntityBatch{
		model.OKBatch(model.ModalityText, nil),
		model.FailedBatch(model.ModalityVoice, errors.New("down")),
	}, fusionConfig())

	assert.True(t, g.IsEmpty())
	assert.Equal(t, 0, report.Candidates)
}

func TestFuse_SkipsMalformedCandidates(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	batches := []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{
			candidate("text:1", model.ModalityText, model.EntityPerson, "Anna", 0.9, ""),
			candidate("text:1", model.ModalityText, model.EntityPerson, "Bert", 0.9, ""),
			candidate("text:2", model.ModalityText, model.EntityPerson, "Carl", 1.5, ""),
			candidate("text:3", model.ModalityText, model.EntityPerson, "Dora", math.NaN(), ""),
			candidate("text:4", model.ModalityText, "WEAPON", "knife", 0.9, ""),
			candidate("text:5", model.ModalityText, model.EntityPerson, " ; ", 0.9, ""),
			candidate("", model.ModalityText, model.EntityPerson, "Emil", 0.9, ""),
			candidate("image:1", model.ModalityImage, model.EntityPerson, "Fritz", 0.9, ""),
		}),
	}
	g, report := e.Fuse(context.Background(), batches, fusionConfig())

	assert.Len(t, g.Nodes, 1)
	assert.Equal(t, 1, report.Candidates)
	require.Len(t, report.Skipped, 7)
	assert.Equal(t, "duplicate entity id", report.Skipped[0].Reason)
}

func TestFuse_BatchLocalIDsMayRepeatAcrossModalities(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	batches := []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{
			candidate("1", model.ModalityText, model.EntityPerson, "John Smith", 0.9, "s1"),
			candidate("2", model.ModalityText, model.EntityLocation, "Berlin", 0.8, "s1"),
		}),
		model.OKBatch(model.ModalityImage, []model.CandidateEntity{
			candidate("1", model.ModalityImage, model.EntityOrg, "Acme GmbH", 0.7, ""),
		}),
	}
	g, report := e.Fuse(context.Background(), batches, fusionConfig())

	assert.Empty(t, report.Skipped)
	assert.Equal(t, 3, report.Candidates)
	assert.Equal(t, 3, g.MemberCount())

	org, ok := g.NodeFor("image:1")
	require.True(t, ok)
	assert.Equal(t, "Acme GmbH", org.CanonicalValue)
	person, ok := g.NodeFor("text:1")
	require.True(t, ok)
	assert.Equal(t, model.EntityPerson, person.Type)

	require.Len(t, g.Edges, 1)
	assert.Equal(t, []string{"text:1", "text:2"}, g.Edges[0].Evidence)
}

func TestFuse_NoSelfLoops(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	batches := []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{
			candidate("text:1", model.ModalityText, model.EntityPerson, "John Smith", 0.9, "sentence-1"),
			candidate("text:2", model.ModalityText, model.EntityPerson, "J. Smith", 0.8, "sentence-1"),
		}),
	}
	g, _ := e.Fuse(context.Background(), batches, fusionConfig())
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)
}

func TestFuse_DuplicateEdgesMergeEvidence(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	batches := []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{
			candidate("text:1", model.ModalityText, model.EntityPerson, "John Smith", 0.9, "sentence-1"),
			candidate("text:2", model.ModalityText, model.EntityLocation, "Berlin", 0.8, "sentence-1"),
		}),
		model.OKBatch(model.ModalityVoice, []model.CandidateEntity{
			candidate("voice:1", model.ModalityVoice, model.EntityPerson, "John Smith", 0.5, "utterance-3"),
			candidate("voice:2", model.ModalityVoice, model.EntityLocation, "Berlin", 0.6, "utterance-3"),
		}),
	}
	g, _ := e.Fuse(context.Background(), batches, fusionConfig())

	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)
	edge := g.Edges[0]
	assert.Equal(t, []string{"text:1", "text:2", "voice:1", "voice:2"}, edge.Evidence)
	// 1 - (1-0.8)(1-0.5)
	assert.InDelta(t, 0.9, edge.Confidence, 1e-9)
}

func TestFuse_PersonPairsAreSymmetric(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	batches := []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{
			candidate("text:1", model.ModalityText, model.EntityPerson, "Anna Berg", 0.9, "sentence-1"),
			candidate("text:2", model.ModalityText, model.EntityPerson, "Karl Otto", 0.9, "sentence-1"),
			candidate("text:3", model.ModalityText, model.EntityPerson, "Karl Otto", 0.9, "sentence-2"),
			candidate("text:4", model.ModalityText, model.EntityPerson, "Anna Berg", 0.9, "sentence-2"),
		}),
	}
	g, _ := e.Fuse(context.Background(), batches, fusionConfig())

	require.Len(t, g.Edges, 1)
	assert.Equal(t, "UIDN-000001", g.Edges[0].Source)
	assert.Equal(t, "UIDN-000002", g.Edges[0].Target)
	assert.Equal(t, "ASSOCIATED_WITH", g.Edges[0].RelationType)
}

func TestFuse_IncompatiblePairsHaveNoEdge(t *testing.T) {
	e := NewEngine(nil, config.DefaultPrompts())
	batches := []model.EntityBatch{
		model.OKBatch(model.ModalityText, []model.CandidateEntity{
			candidate("text:1", model.ModalityText, model.EntityLocation, "Berlin", 0.9, "sentence-1"),
			candidate("text:2", model.ModalityText, model.EntityLocation, "Paris", 0.9, "sentence-1"),
		}),
	}
	g, _ := e.Fuse(context.Background(), batches, fusionConfig())
	assert.Len(t, g.Nodes, 2)
	assert.Empty(t, g.Edges)
}

func TestCanonicalize_TieBreaksOnModality(t *testing.T) {
	n := canonicalize("UIDN-000001", []model.CandidateEntity{
		candidate("image:1", model.ModalityImage, model.EntityOrg, "ACME Corp", 0.7, ""),
		candidate("text:1", model.ModalityText, model.EntityOrg, "Acme Corporation", 0.7, ""),
	}, 0.15)
	assert.Equal(t, "Acme Corporation", n.CanonicalValue)
	assert.InDelta(t, 0.7*1.15, n.Confidence, 1e-9)
}

func TestCanonicalize_ModalityBalancedConfidence(t *testing.T) {
	n := canonicalize("UIDN-000001", []model.CandidateEntity{
		candidate("text:1", model.ModalityText, model.EntityPerson, "Anna", 1.0, ""),
		candidate("text:2", model.ModalityText, model.EntityPerson, "Anna B.", 0.8, ""),
		candidate("voice:1", model.ModalityVoice, model.EntityPerson, "Anna", 0.4, ""),
	}, 0)
	// text averages to 0.9, voice 0.4, equal weight per modality
	assert.InDelta(t, 0.65, n.Confidence, 1e-9)
	assert.Equal(t, "Anna", n.CanonicalValue)
}

func TestCanonicalize_ConfidenceCapped(t *testing.T) {
	n := canonicalize("UIDN-000001", []model.CandidateEntity{
		candidate("text:1", model.ModalityText, model.EntityPerson, "Anna", 1.0, ""),
		candidate("voice:1", model.ModalityVoice, model.EntityPerson, "Anna", 1.0, ""),
		candidate("image:1", model.ModalityImage, model.EntityPerson, "Anna", 1.0, ""),
	}, 0.15)
	assert.Equal(t, 1.0, n.Confidence)
}
