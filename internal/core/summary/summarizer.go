package summary

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core/common"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/llm"
)

// ChunkSize bounds how many lines go into one prompt before the summary is
// split and reduced.
const ChunkSize = 20

type Summarizer struct {
	LLM     llm.LLMClient
	Prompts config.Prompts
}

func NewSummarizer(llmClient llm.LLMClient, prompts config.Prompts) *Summarizer {
	return &Summarizer{
		LLM:     llmClient,
		Prompts: prompts,
	}
}

// Describe renders one node as a prompt line.
func Describe(n model.FusedNode) string {
	modalities := make([]string, len(n.ModalityCoverage))
	for i, m := range n.ModalityCoverage {
		modalities[i] = m.Lower()
	}
	line := fmt.Sprintf("%s %s (seen in %s, confidence %.2f)", n.Type, n.CanonicalValue, strings.Join(modalities, ", "), n.Confidence)
	var other []string
	for _, a := range n.Aliases {
		if a != n.CanonicalValue {
			other = append(other, a)
		}
	}
	if len(other) > 0 {
		line += "; also written " + strings.Join(other, ", ")
	}
	return line
}

// SummarizeCommunity writes an investigative brief for a group of nodes.
// Large groups are summarised in chunks and the chunk briefs reduced.
func (s *Summarizer) SummarizeCommunity(ctx context.Context, nodes []model.FusedNode) (string, error) {
	lines := make([]string, len(nodes))
	for i, n := range nodes {
		lines[i] = Describe(n)
	}
	return s.summarize(ctx, lines)
}

func (s *Summarizer) summarize(ctx context.Context, lines []string) (string, error) {
	if len(lines) == 0 {
		return "No significant information.", nil
	}

	if len(lines) <= ChunkSize {
		var sb strings.Builder
		for _, l := range lines {
			sb.WriteString("- ")
			sb.WriteString(l)
			sb.WriteString("\n")
		}

		prompt := fmt.Sprintf(s.Prompts.Communities, sb.String())
		response, err := s.LLM.Generate(ctx, prompt)
		if err != nil {
			return "", fmt.Errorf("failed to generate community summary: %w", err)
		}

		result, err := common.ParseJSON[model.EntitySummary](response)
		if err == nil {
			return result.Summary, nil
		}
		return strings.TrimSpace(response), nil
	}

	var partial []string
	for i := 0; i < len(lines); i += ChunkSize {
		end := min(i+ChunkSize, len(lines))
		brief, err := s.summarize(ctx, lines[i:end])
		if err != nil {
			slog.Warn("summary: chunk failed", "from", i, "to", end, "error", err)
			continue
		}
		partial = append(partial, fmt.Sprintf("Part %d: %s", len(partial)+1, brief))
	}
	if len(partial) == 0 {
		return "", fmt.Errorf("failed to generate community summary: every chunk failed")
	}
	return s.summarize(ctx, partial)
}

func (s *Summarizer) GenerateCommunityName(ctx context.Context, summary string) (string, error) {
	if s.Prompts.CommunityName == "" {
		return "", nil
	}

	prompt := fmt.Sprintf(s.Prompts.CommunityName, summary)
	response, err := s.LLM.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate community name: %w", err)
	}

	result, err := common.ParseJSON[model.CommunityName](response)
	if err == nil {
		return result.Name, nil
	}
	return strings.Trim(strings.TrimSpace(response), `"`), nil
}
