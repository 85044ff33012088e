package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

type ClaudeClient struct {
	client *anthropic.Client
	model  string
}

func NewClaudeClient(apiKey string, model string, baseURL string) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}

	return &ClaudeClient{
		client: anthropic.NewClient(apiKey, opts...),
		model:  model,
	}
}

func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.send(ctx, []anthropic.MessageContent{
		anthropic.NewTextMessageContent(prompt),
	})
}

// DescribeImage sends the image inline. Claude does not fetch remote URLs, so
// callers must provide image bytes.
func (c *ClaudeClient) DescribeImage(ctx context.Context, image ImageInput, prompt string) (string, error) {
	if len(image.Data) == 0 {
		return "", fmt.Errorf("claude vision requires inline image data")
	}
	mediaType := image.MIMEType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}
	return c.send(ctx, []anthropic.MessageContent{
		anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(anthropic.MessagesContentSourceTypeBase64, mediaType, image.Data),
		),
		anthropic.NewTextMessageContent(prompt),
	})
}

func (c *ClaudeClient) send(ctx context.Context, content []anthropic.MessageContent) (string, error) {
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(c.model),
		Messages: []anthropic.Message{
			{
				Role:    anthropic.RoleUser,
				Content: content,
			},
		},
		MaxTokens: 2048,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Content) > 0 && resp.Content[0].Text != nil {
		return *resp.Content[0].Text, nil
	}
	return "", fmt.Errorf("no response content")
}
