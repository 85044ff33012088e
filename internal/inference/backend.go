package inference

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/agenthands/uidn/internal/core/model"
	"github.com/agenthands/uidn/internal/llm"
)

// Backend routes each modality to the matching provider capability.
type Backend struct {
	Clients *llm.Clients
	Model   string
}

func NewBackend(clients *llm.Clients, modelName string) *Backend {
	return &Backend{Clients: clients, Model: modelName}
}

func (b *Backend) Invoke(ctx context.Context, modality model.Modality, payload Payload, opts Options) (RawOutput, error) {
	switch modality {
	case model.ModalityText:
		return b.invokeText(ctx, payload)
	case model.ModalityVoice:
		return b.invokeVoice(ctx, payload)
	case model.ModalityImage:
		return b.invokeImage(ctx, payload)
	}
	return RawOutput{}, PermanentError(fmt.Sprintf("unsupported modality %q", modality), nil)
}

func (b *Backend) invokeText(ctx context.Context, payload Payload) (RawOutput, error) {
	if b.Clients.Text == nil {
		return RawOutput{}, PermanentError("provider has no text capability", nil)
	}
	out, err := b.Clients.Text.Generate(ctx, render(payload.Prompt, payload.Text))
	if err != nil {
		return RawOutput{}, Classify("text generation failed", err)
	}
	return RawOutput{Text: out, Model: b.Model}, nil
}

func (b *Backend) invokeVoice(ctx context.Context, payload Payload) (RawOutput, error) {
	if b.Clients.Transcriber == nil || b.Clients.Text == nil {
		return RawOutput{}, PermanentError("provider has no speech capability", nil)
	}

	transcript := payload.Text
	if transcript == "" {
		data, name, mimeType, err := loadMedia(payload.Media)
		if err != nil {
			return RawOutput{}, err
		}
		transcript, err = b.Clients.Transcriber.Transcribe(ctx, llm.AudioInput{Name: name, Data: data, MIMEType: mimeType})
		if err != nil {
			return RawOutput{}, Classify("transcription failed", err)
		}
		slog.Debug("inference: transcribed recording", "name", name, "chars", len(transcript))
	}

	out, err := b.Clients.Text.Generate(ctx, render(payload.Prompt, transcript))
	if err != nil {
		return RawOutput{}, Classify("transcript extraction failed", err)
	}
	return RawOutput{Text: out, Transcript: transcript, Model: b.Model}, nil
}

func (b *Backend) invokeImage(ctx context.Context, payload Payload) (RawOutput, error) {
	if b.Clients.Vision == nil {
		return RawOutput{}, PermanentError("provider has no vision capability", nil)
	}

	image := llm.ImageInput{}
	if payload.Media != nil && payload.Media.URL != "" && payload.Media.Path == "" && len(payload.Media.Data) == 0 {
		image.URL = payload.Media.URL
		image.MIMEType = payload.Media.MIMEType
	} else {
		data, _, mimeType, err := loadMedia(payload.Media)
		if err != nil {
			return RawOutput{}, err
		}
		image.Data = data
		image.MIMEType = mimeType
	}

	out, err := b.Clients.Vision.DescribeImage(ctx, image, payload.Prompt)
	if err != nil {
		return RawOutput{}, Classify("image extraction failed", err)
	}
	return RawOutput{Text: out, Model: b.Model}, nil
}

// loadMedia resolves a media reference to bytes. Remote-only references are
// rejected for capabilities that need inline data.
func loadMedia(ref *model.MediaRef) ([]byte, string, string, error) {
	if ref.Empty() {
		return nil, "", "", PermanentError("empty media reference", nil)
	}

	name := filepath.Base(ref.Path)
	mimeType := ref.MIMEType
	if mimeType == "" && ref.Path != "" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(ref.Path)))
	}

	if len(ref.Data) > 0 {
		if name == "." || name == "" {
			name = "upload"
		}
		return ref.Data, name, mimeType, nil
	}
	if ref.Path == "" {
		return nil, "", "", PermanentError("media must be a local path or inline data", nil)
	}

	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return nil, "", "", PermanentError(fmt.Sprintf("failed to read media %s", ref.Path), err)
	}
	return data, name, mimeType, nil
}

func render(prompt, content string) string {
	if strings.Contains(prompt, "%s") {
		return fmt.Sprintf(prompt, content)
	}
	if prompt == "" {
		return content
	}
	return prompt + "\n\n" + content
}
