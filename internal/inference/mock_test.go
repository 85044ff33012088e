package inference

import (
	"context"

	"github.com/agenthands/uidn/internal/llm"
)

type MockLLM struct {
	Response string
	Err      error
	Prompts  []string
}

func (m *MockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

type MockVision struct {
	Response string
	Err      error
	Image    llm.ImageInput
}

func (m *MockVision) DescribeImage(ctx context.Context, image llm.ImageInput, prompt string) (string, error) {
	m.Image = image
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

type MockTranscriber struct {
	Transcript string
	Err        error
	Audio      llm.AudioInput
}

func (m *MockTranscriber) Transcribe(ctx context.Context, audio llm.AudioInput) (string, error) {
	m.Audio = audio
	if m.Err != nil {
		return "", m.Err
	}
	return m.Transcript, nil
}
