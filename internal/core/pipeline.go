// Package core wires the modality processors, the orchestrator and the fusion
// engine into the case pipeline.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core/community"
	"github.com/agenthands/uidn/internal/core/fusion"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/core/network"
	"github.com/agenthands/uidn/internal/core/orchestrator"
	"github.com/agenthands/uidn/internal/core/summary"
	"github.com/agenthands/uidn/internal/inference"
	"github.com/agenthands/uidn/internal/llm"
)

// Pipeline holds no per-case state and may run cases concurrently.
type Pipeline struct {
	Orchestrator *orchestrator.Orchestrator
	Fusion       *fusion.Engine
	Detector     community.CommunityDetector
	Summarizer   *summary.Summarizer
}

// NewPipeline builds the pipeline on an inference client. llmClient backs the
// model-assisted relation policy and community briefs and may be nil.
func NewPipeline(client inference.Client, llmClient llm.LLMClient, prompts config.Prompts) (*Pipeline, error) {
	orch, err := orchestrator.NewFromClient(client, prompts)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	p := &Pipeline{
		Orchestrator: orch,
		Fusion:       fusion.NewEngine(llmClient, prompts),
		Detector:     community.NewLabelPropagationDetector(),
	}
	if llmClient != nil {
		p.Summarizer = summary.NewSummarizer(llmClient, prompts)
	}
	return p, nil
}

type CaseResult struct {
	CaseID  string                `json:"case_id"`
	Graph   *model.FusionGraph    `json:"graph"`
	Batches *orchestrator.Batches `json:"batches"`
	Report  *fusion.Report        `json:"report,omitempty"`
}

// Run extracts and fuses one case. When every modality fails the batches are
// returned with the PipelineError and fusion is not run.
func (p *Pipeline) Run(ctx context.Context, bundle *model.InputBundle, cfg config.PipelineConfig) (*CaseResult, error) {
	if bundle == nil {
		return nil, errors.New("nil input bundle")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	batches, err := p.Orchestrator.Run(ctx, bundle, cfg)
	result := &CaseResult{CaseID: bundle.CaseID, Batches: batches}
	if err != nil {
		slog.Error("pipeline: case failed", "case", bundle.CaseID, "error", err)
		return result, err
	}

	graph, report := p.Fusion.Fuse(ctx, batches.All(), cfg.Fusion)
	graph.CaseID = bundle.CaseID
	result.Graph = graph
	result.Report = report
	return result, nil
}

// RunCase is Run without the diagnostics.
func (p *Pipeline) RunCase(ctx context.Context, bundle *model.InputBundle, cfg config.PipelineConfig) (*model.FusionGraph, error) {
	result, err := p.Run(ctx, bundle, cfg)
	if err != nil {
		return nil, err
	}
	return result.Graph, nil
}

type AnalyzeOptions struct {
	// Briefs asks the language model for a name and summary per community.
	Briefs bool
	// TimelineMinConfidence drops weaker TIME nodes from the timeline.
	// Zero uses network.DefaultTimelineConfidence.
	TimelineMinConfidence float64
}

type Community struct {
	Name    string   `json:"name,omitempty"`
	Summary string   `json:"summary,omitempty"`
	Members []string `json:"members"`
}

type Analysis struct {
	CaseID         string                  `json:"case_id"`
	Stats          network.Stats           `json:"stats"`
	Communities    []Community             `json:"communities"`
	Isolated       []string                `json:"isolated,omitempty"`
	RelationCounts map[string]int          `json:"relation_counts"`
	Timeline       []network.TimelineEvent `json:"timeline"`
}

// Analyze groups a fused graph into communities, computes its degree
// statistics and orders its TIME nodes. A failed brief is logged and left
// empty.
func (p *Pipeline) Analyze(ctx context.Context, g *model.FusionGraph, opts AnalyzeOptions) (*Analysis, error) {
	groups, err := p.Detector.Detect(g)
	if err != nil {
		return nil, fmt.Errorf("failed to detect communities: %w", err)
	}

	minConf := opts.TimelineMinConfidence
	if minConf <= 0 {
		minConf = network.DefaultTimelineConfidence
	}

	a := &Analysis{
		CaseID:         g.CaseID,
		Stats:          network.Statistics(g),
		Communities:    make([]Community, 0, len(groups)),
		Isolated:       community.Isolated(g),
		RelationCounts: make(map[string]int),
		Timeline:       network.Timeline(g, minConf),
	}
	for _, e := range g.Edges {
		a.RelationCounts[e.RelationType]++
	}

	for _, nodes := range groups {
		c := Community{}
		for _, n := range nodes {
			c.Members = append(c.Members, n.UIDN)
		}
		sort.Strings(c.Members)

		if opts.Briefs && p.Summarizer != nil {
			brief, err := p.Summarizer.SummarizeCommunity(ctx, nodes)
			if err != nil {
				slog.Warn("pipeline: community brief failed", "case", g.CaseID, "error", err)
			} else {
				c.Summary = brief
				if name, err := p.Summarizer.GenerateCommunityName(ctx, brief); err == nil {
					c.Name = name
				}
			}
		}
		a.Communities = append(a.Communities, c)
	}
	return a, nil
}
