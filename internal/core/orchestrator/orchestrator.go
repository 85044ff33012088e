// Package orchestrator runs the modality processors of one case concurrently
// and joins their batches.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core/extraction"
	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/inference"
)

type Batches struct {
	Text  model.EntityBatch `json:"text"`
	Voice model.EntityBatch `json:"voice"`
	Image model.EntityBatch `json:"image"`
}

func (b *Batches) Get(m model.Modality) model.EntityBatch {
	switch m {
	case model.ModalityVoice:
		return b.Voice
	case model.ModalityImage:
		return b.Image
	}
	return b.Text
}

func (b *Batches) set(batch model.EntityBatch) {
	switch batch.Modality {
	case model.ModalityText:
		b.Text = batch
	case model.ModalityVoice:
		b.Voice = batch
	case model.ModalityImage:
		b.Image = batch
	}
}

// All returns the batches in TEXT, VOICE, IMAGE order.
func (b *Batches) All() []model.EntityBatch {
	return []model.EntityBatch{b.Text, b.Voice, b.Image}
}

func (b *Batches) Succeeded() []model.EntityBatch {
	var out []model.EntityBatch
	for _, batch := range b.All() {
		if !batch.Failed() {
			out = append(out, batch)
		}
	}
	return out
}

type Orchestrator struct {
	processors map[model.Modality]extraction.Processor
}

func New(processors ...extraction.Processor) *Orchestrator {
	o := &Orchestrator{processors: make(map[model.Modality]extraction.Processor, len(processors))}
	for _, p := range processors {
		o.processors[p.Modality()] = p
	}
	return o
}

// NewFromClient builds one processor per modality on a shared inference client.
func NewFromClient(client inference.Client, prompts config.Prompts) (*Orchestrator, error) {
	var processors []extraction.Processor
	for _, m := range model.Modalities {
		p, err := extraction.New(m, client, prompts)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s processor: %w", m.Lower(), err)
		}
		processors = append(processors, p)
	}
	return New(processors...), nil
}

// Run returns once every processor has settled. When all three batches are
// FAILED the batches come back together with a PipelineError.
func (o *Orchestrator) Run(ctx context.Context, bundle *model.InputBundle, cfg config.PipelineConfig) (*Batches, error) {
	start := time.Now()
	results := make([]model.EntityBatch, len(model.Modalities))

	var g errgroup.Group
	for i, m := range model.Modalities {
		i, m := i, m
		g.Go(func() error {
			results[i] = o.runOne(ctx, m, bundle.Segment(m), cfg)
			return nil
		})
	}
	_ = g.Wait()

	batches := &Batches{}
	causes := make(map[model.Modality]error)
	for _, b := range results {
		batches.set(b)
		slog.Info("orchestrator: modality settled", "case", bundle.CaseID, "modality", b.Modality,
			"status", b.Status, "entities", len(b.Entities), "attempts", b.Attempts, "error", b.ErrorMessage())
		if b.Failed() {
			causes[b.Modality] = b.Err
		}
	}
	slog.Debug("orchestrator: case extracted", "case", bundle.CaseID, "elapsed", time.Since(start))

	if len(causes) == len(model.Modalities) {
		return batches, &model.PipelineError{Kind: model.PipelineAllModalitiesFailed, CaseID: bundle.CaseID, Causes: causes}
	}
	return batches, nil
}

func (o *Orchestrator) runOne(ctx context.Context, m model.Modality, seg model.Segment, cfg config.PipelineConfig) model.EntityBatch {
	p, ok := o.processors[m]
	if !ok {
		if seg.Absent() {
			return model.OKBatch(m, nil)
		}
		return model.FailedBatch(m, fmt.Errorf("no processor registered for %s", m.Lower()))
	}

	pctx, cancel := ctx, context.CancelFunc(func() {})
	if cfg.ProcessorTimeout.Duration > 0 {
		pctx, cancel = context.WithTimeout(ctx, cfg.ProcessorTimeout.Duration)
	}
	defer cancel()

	done := make(chan model.EntityBatch, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- model.FailedBatch(m, fmt.Errorf("%s processor panicked: %v", m.Lower(), r))
			}
		}()
		done <- p.Process(pctx, seg, cfg.Processor)
	}()

	select {
	case batch := <-done:
		if batch.Failed() && timedOut(ctx, pctx) {
			return timeoutBatch(m, batch.Attempts)
		}
		batch.Modality = m
		return batch
	case <-pctx.Done():
		if timedOut(ctx, pctx) {
			return timeoutBatch(m, 0)
		}
		return model.FailedBatch(m, ctx.Err())
	}
}

// timedOut reports whether the processor's own deadline fired while the
// parent context is still live.
func timedOut(parent, pctx context.Context) bool {
	return errors.Is(pctx.Err(), context.DeadlineExceeded) && parent.Err() == nil
}

func timeoutBatch(m model.Modality, attempts int) model.EntityBatch {
	b := model.FailedBatch(m, &model.ProcessorError{Kind: model.ProcessorTimeout, Modality: m, Err: context.DeadlineExceeded})
	b.Attempts = attempts
	return b
}
