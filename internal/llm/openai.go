package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client      *openai.Client
	model       string
	visionModel string
	audioModel  string
}

func NewOpenAIClient(apiKey, model, visionModel, audioModel, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if visionModel == "" {
		visionModel = model
	}
	if audioModel == "" {
		audioModel = openai.Whisper1
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		visionModel: visionModel,
		audioModel:  audioModel,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}
	return c.complete(ctx, req)
}

func (c *OpenAIClient) DescribeImage(ctx context.Context, image ImageInput, prompt string) (string, error) {
	url := image.URL
	if url == "" {
		url = dataURL(image.MIMEType, image.Data)
	}
	req := openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: prompt},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    url,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
	}
	return c.complete(ctx, req)
}

func (c *OpenAIClient) Transcribe(ctx context.Context, audio AudioInput) (string, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.audioModel,
		FilePath: audio.Name,
		Reader:   bytes.NewReader(audio.Data),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Segments) == 0 {
		return resp.Text, nil
	}

	var sb strings.Builder
	for i, seg := range resp.Segments {
		sb.WriteString(FormatUtterance(i+1, seg.Start, seg.End, seg.Text))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}

func (c *OpenAIClient) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) > 0 {
		return resp.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("no response choices")
}

func dataURL(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// FormatUtterance renders one timed transcript line, e.g. "[3 12.40-15.10] text".
func FormatUtterance(index int, start, end float64, text string) string {
	return fmt.Sprintf("[%d %.2f-%.2f] %s", index, start, end, strings.TrimSpace(text))
}
