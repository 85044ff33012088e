package extraction

import (
	"context"
	"sync"

	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/inference"
)

type reply struct {
	out inference.RawOutput
	err error
}

// MockClient plays back replies in order and repeats the last one.
type MockClient struct {
	mu       sync.Mutex
	Replies  []reply
	Calls    int
	Payloads []inference.Payload
}

func (m *MockClient) Invoke(ctx context.Context, modality model.Modality, payload inference.Payload, opts inference.Options) (inference.RawOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	m.Payloads = append(m.Payloads, payload)
	if len(m.Replies) == 0 {
		return inference.RawOutput{Text: `{"entities": []}`}, nil
	}
	i := m.Calls - 1
	if i >= len(m.Replies) {
		i = len(m.Replies) - 1
	}
	return m.Replies[i].out, m.Replies[i].err
}

func text(s string) reply {
	return reply{out: inference.RawOutput{Text: s}}
}

func fail(err error) reply {
	return reply{err: err}
}

func strPtr(s string) *string {
	return &s
}
