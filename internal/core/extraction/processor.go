// Package extraction turns one modality of an input bundle into a batch of
// candidate entities through the inference client.
package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core/common"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/inference"
)

const defaultConfidence = 0.5

type Processor interface {
	Modality() model.Modality
	Process(ctx context.Context, seg model.Segment, cfg config.ProcessorConfig) model.EntityBatch
}

// New selects the processor for a modality.
func New(m model.Modality, client inference.Client, prompts config.Prompts) (Processor, error) {
	switch m {
	case model.ModalityText:
		return NewTextProcessor(client, prompts.Text), nil
	case model.ModalityVoice:
		return NewVoiceProcessor(client, prompts.Voice), nil
	case model.ModalityImage:
		return NewImageProcessor(client, prompts.Image), nil
	}
	return nil, fmt.Errorf("no processor for modality %q", m)
}

// strategy is the modality-specific part of a processor.
type strategy interface {
	payload(seg model.Segment) (inference.Payload, error)
	locator(seg model.Segment, out inference.RawOutput) spanLocator
}

type spanLocator func(row model.ExtractedEntity) *model.SourceSpan

// base drives the shared invoke, retry and normalise loop.
type base struct {
	modality model.Modality
	client   inference.Client
	prompt   string
	strategy strategy
}

func (b *base) Modality() model.Modality {
	return b.modality
}

func (b *base) Process(ctx context.Context, seg model.Segment, cfg config.ProcessorConfig) model.EntityBatch {
	if seg.Absent() {
		return model.OKBatch(b.modality, nil)
	}

	payload, err := b.strategy.payload(seg)
	if err != nil {
		slog.Warn("extraction: malformed input", "case", seg.CaseID, "modality", b.modality, "error", err)
		return model.FailedBatch(b.modality, &model.ProcessorError{Kind: model.ProcessorMalformedInput, Modality: b.modality, Err: err})
	}
	payload.Prompt = b.prompt

	maxAttempts := cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt
		out, err := b.client.Invoke(ctx, b.modality, payload, inference.Options{Attempt: attempt})
		retryable := false
		if err == nil {
			batch, perr := b.parse(seg, out)
			if perr == nil {
				batch.Attempts = attempt
				slog.Debug("extraction: batch ready", "case", seg.CaseID, "modality", b.modality,
					"status", batch.Status, "entities", len(batch.Entities), "attempt", attempt)
				return batch
			}
			err = &model.ProcessorError{Kind: model.ProcessorMalformedOutput, Modality: b.modality, Err: perr}
			retryable = true
		} else {
			retryable = inference.IsTransient(err)
		}
		lastErr = err

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		if !retryable || attempt == maxAttempts {
			break
		}

		delay := backoff(cfg, attempt)
		slog.Warn("extraction: attempt failed, retrying", "case", seg.CaseID, "modality", b.modality,
			"attempt", attempt, "delay", delay, "error", err)
		if err := sleep(ctx, delay); err != nil {
			lastErr = err
			break
		}
	}

	slog.Error("extraction: processor failed", "case", seg.CaseID, "modality", b.modality, "error", lastErr)
	batch := model.FailedBatch(b.modality, lastErr)
	batch.Attempts = attempts
	return batch
}

func (b *base) parse(seg model.Segment, out inference.RawOutput) (model.EntityBatch, error) {
	result, err := common.ParseJSON[model.ExtractedEntities](out.Text)
	if err != nil {
		return model.EntityBatch{}, err
	}
	locate := b.strategy.locator(seg, out)
	entities, dropped := normalize(b.modality, result.Entities, locate)

	batch := model.OKBatch(b.modality, entities)
	if dropped > 0 && len(entities) > 0 {
		batch.Status = model.StatusPartial
	}
	if dropped > 0 {
		slog.Info("extraction: dropped unusable rows", "case", seg.CaseID, "modality", b.modality, "dropped", dropped)
	}
	return batch, nil
}

// backoff returns base·2^(attempt-1), capped at MaxDelay.
func backoff(cfg config.ProcessorConfig, attempt int) time.Duration {
	d := cfg.BaseDelay.Duration
	if d <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if cfg.MaxDelay.Duration > 0 && d >= cfg.MaxDelay.Duration {
			return cfg.MaxDelay.Duration
		}
	}
	if cfg.MaxDelay.Duration > 0 && d > cfg.MaxDelay.Duration {
		return cfg.MaxDelay.Duration
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// normalize maps raw model rows onto candidates. Rows with empty values are
// dropped; repeated (type, value) pairs keep the highest confidence.
func normalize(m model.Modality, rows []model.ExtractedEntity, locate spanLocator) ([]model.CandidateEntity, int) {
	type key struct {
		t model.EntityType
		v string
	}
	seen := make(map[key]int)
	out := make([]model.CandidateEntity, 0, len(rows))
	dropped := 0

	for _, row := range rows {
		value := common.NormalizeValue(row.Value)
		if value == "" {
			dropped++
			continue
		}
		c := model.CandidateEntity{
			Type:       model.ParseEntityType(row.Type),
			Value:      value,
			Modality:   m,
			Confidence: clampConfidence(row.Confidence),
		}
		if locate != nil {
			c.Span = locate(row)
		}

		k := key{c.Type, common.FoldValue(value)}
		if i, ok := seen[k]; ok {
			if c.Confidence > out[i].Confidence {
				c.EntityID = out[i].EntityID
				out[i] = c
			}
			continue
		}
		c.EntityID = model.EntityID(m, len(out)+1)
		seen[k] = len(out)
		out = append(out, c)
	}
	return out, dropped
}

func clampConfidence(c *float64) float64 {
	if c == nil || math.IsNaN(*c) {
		return defaultConfidence
	}
	return math.Max(0, math.Min(1, *c))
}

// unitLabel rewrites a model-supplied unit such as "Sentence 2" or "2" into
// prefix-N. It returns "" when no index can be read.
func unitLabel(prefix, raw string) string {
	raw = strings.TrimSpace(raw)
	end := len(raw)
	for end > 0 && raw[end-1] >= '0' && raw[end-1] <= '9' {
		end--
	}
	n, err := strconv.Atoi(raw[end:])
	if err != nil || n < 1 {
		return ""
	}
	return fmt.Sprintf("%s-%d", prefix, n)
}
