package llm

import (
	"context"
)

type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ImageInput is an image handed to a vision model, either by URL or inline.
type ImageInput struct {
	URL      string
	Data     []byte
	MIMEType string
}

// AudioInput is a recording handed to a speech model. Name carries the file
// name so providers can infer the container format.
type AudioInput struct {
	Name     string
	Data     []byte
	MIMEType string
}

type VisionClient interface {
	DescribeImage(ctx context.Context, image ImageInput, prompt string) (string, error)
}

type TranscriberClient interface {
	Transcribe(ctx context.Context, audio AudioInput) (string, error)
}

// Clients groups the capabilities one provider exposes. Any field may be nil
// when the provider does not support that capability.
type Clients struct {
	Text        LLMClient
	Vision      VisionClient
	Transcriber TranscriberClient
}
