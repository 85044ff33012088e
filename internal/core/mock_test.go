package core

import (
	"context"
	"sync"

	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/inference"
)

// MockInference answers per modality and counts calls.
type MockInference struct {
	mu      sync.Mutex
	Outputs map[model.Modality]string
	Errs    map[model.Modality]error
	Calls   map[model.Modality]int
}

func (m *MockInference) Invoke(ctx context.Context, modality model.Modality, payload inference.Payload, opts inference.Options) (inference.RawOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[model.Modality]int)
	}
	m.Calls[modality]++
	if err := m.Errs[modality]; err != nil {
		return inference.RawOutput{}, err
	}
	return inference.RawOutput{Text: m.Outputs[modality]}, nil
}

type MockLLM struct {
	mu            sync.Mutex
	Response      string
	ResponseQueue []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	return m.Response, nil
}
