package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client *genai.Client
	model  string
}

func NewGeminiClient(ctx context.Context, apiKey string, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.generate(ctx, genai.Text(prompt))
}

func (c *GeminiClient) DescribeImage(ctx context.Context, image ImageInput, prompt string) (string, error) {
	if len(image.Data) == 0 {
		return "", fmt.Errorf("gemini vision requires inline image data")
	}
	return c.generate(ctx, genai.ImageData(imageFormat(image.MIMEType), image.Data), genai.Text(prompt))
}

// Transcribe uses Gemini's audio understanding to produce a transcript with
// one utterance per line.
func (c *GeminiClient) Transcribe(ctx context.Context, audio AudioInput) (string, error) {
	mimeType := audio.MIMEType
	if mimeType == "" {
		mimeType = "audio/wav"
	}
	return c.generate(ctx,
		genai.Blob{MIMEType: mimeType, Data: audio.Data},
		genai.Text("Transcribe this recording verbatim. Put each utterance on its own line."),
	)
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) generate(ctx context.Context, parts ...genai.Part) (string, error) {
	model := c.client.GenerativeModel(c.model)
	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var sb strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if txt, ok := part.(genai.Text); ok {
				sb.WriteString(string(txt))
			}
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}

	return "", fmt.Errorf("no response candidates or content")
}

// imageFormat turns "image/png" into the "png" format genai.ImageData expects.
func imageFormat(mimeType string) string {
	if mimeType == "" {
		return "jpeg"
	}
	if i := strings.IndexByte(mimeType, '/'); i >= 0 {
		return mimeType[i+1:]
	}
	return mimeType
}
