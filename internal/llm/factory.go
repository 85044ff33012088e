package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agenthands/uidn/internal/config"
)

// NewClients builds the provider clients selected by cfg.Provider.
func NewClients(ctx context.Context, cfg config.LLMConfig) (*Clients, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai":
		c := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.VisionModel, cfg.AudioModel, cfg.BaseURL)
		return &Clients{Text: c, Vision: c, Transcriber: c}, nil

	case "gemini":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		return &Clients{Text: c, Vision: c, Transcriber: c}, nil

	case "claude":
		c := NewClaudeClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		// No speech endpoint; voice segments fail permanently with this provider.
		return &Clients{Text: c, Vision: c}, nil

	case "ollama":
		baseURL := cfg.BaseURL
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}

		slog.Info("llm: using ollama through the OpenAI-compatible API", "base_url", baseURL)

		// Ollama ignores the API key but the client requires one.
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = "ollama"
		}

		c := NewOpenAIClient(apiKey, cfg.Model, cfg.VisionModel, cfg.AudioModel, baseURL)
		return &Clients{Text: c, Vision: c, Transcriber: c}, nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
