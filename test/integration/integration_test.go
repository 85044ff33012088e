//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/inference"
	"github.com/agenthands/uidn/internal/llm"
)

func liveConfig(t *testing.T) *config.Config {
	t.Helper()
	_ = godotenv.Load("../../.env")

	if os.Getenv("LLM_PROVIDER") == "" {
		t.Skip("Skipping integration test: LLM_PROVIDER not set")
	}
	cfg := config.Default()
	cfg.ApplyEnv()
	cfg.Pipeline.ProcessorTimeout = config.Duration{Duration: 2 * time.Minute}
	return cfg
}

func TestFullFlow(t *testing.T) {
	cfg := liveConfig(t)
	ctx := context.Background()

	clients, err := llm.NewClients(ctx, cfg.LLM)
	require.NoError(t, err)

	client := inference.RateLimited(inference.NewBackend(clients, cfg.LLM.Model), cfg.Concurrency.RequestsPerSecond, cfg.Concurrency.Burst)
	p, err := core.NewPipeline(client, clients.Text, cfg.Prompts)
	require.NoError(t, err)

	doc := "Detective Anna Berg interviewed John Smith in Berlin on Friday. Smith said he works for Acme Logistics."
	bundle := &model.InputBundle{CaseID: "it-" + uuid.NewString(), Text: &doc}

	result, err := p.Run(ctx, bundle, cfg.Pipeline)
	require.NoError(t, err)
	require.Equal(t, model.StatusOK, result.Batches.Text.Status, result.Batches.Text.ErrorMessage())

	g := result.Graph
	assert.NotEmpty(t, g.Nodes)
	for id, n := range g.Nodes {
		t.Logf("%s %s %q %v", id, n.Type, n.CanonicalValue, n.Aliases)
		assert.NotEmpty(t, n.MemberEntityIDs)
		assert.Equal(t, []model.Modality{model.ModalityText}, n.ModalityCoverage)
	}
	for _, e := range g.Edges {
		t.Logf("%s -[%s]-> %s (%.2f)", e.Source, e.RelationType, e.Target, e.Confidence)
		assert.NotEqual(t, e.Source, e.Target)
	}

	_, ok := g.NodeFor("text:1")
	assert.True(t, ok)

	analysis, err := p.Analyze(ctx, g, core.AnalyzeOptions{Briefs: true})
	require.NoError(t, err)
	for _, c := range analysis.Communities {
		t.Logf("community %q: %s", c.Name, c.Summary)
	}
}
