package main

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/agenthands/uidn/internal/config"
	"github.com/agenthands/uidn/internal/core"
	"github.com/agenthands/uidn/internal/core/community"
	"github.com/agenthands/uidn/internal/core/store"
	"github.com/agenthands/uidn/internal/driver"
	"github.com/agenthands/uidn/internal/inference"
	"github.com/agenthands/uidn/internal/llm"
	"github.com/agenthands/uidn/internal/server"
)

func main() {
	// .env may set LOG_LEVEL, so it is read before the logger exists.
	envErr := godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	})))
	if envErr != nil {
		slog.Info("No .env file found, using defaults")
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	clients, err := llm.NewClients(ctx, cfg.LLM)
	if err != nil {
		slog.Error("Failed to initialize LLM client", "provider", cfg.LLM.Provider, "error", err)
		os.Exit(1)
	}
	if closer, ok := clients.Text.(io.Closer); ok {
		defer closer.Close()
	}

	client := inference.RateLimited(inference.NewBackend(clients, cfg.LLM.Model),
		cfg.Concurrency.RequestsPerSecond, cfg.Concurrency.Burst)

	pipeline, err := core.NewPipeline(client, clients.Text, cfg.Prompts)
	if err != nil {
		slog.Error("Failed to build pipeline", "error", err)
		os.Exit(1)
	}
	pipeline.Detector, err = community.New(cfg.Analysis.Detector)
	if err != nil {
		slog.Error("Failed to select community detector", "error", err)
		os.Exit(1)
	}

	var st *store.Store
	if cfg.Server.Persist {
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password)
		if err != nil {
			slog.Error("Failed to connect to Memgraph", "error", err)
			os.Exit(1)
		}
		defer d.Close(ctx)
		st = store.New(d)
		if err := st.BuildIndices(ctx); err != nil {
			slog.Warn("Failed to build indices", "error", err)
		}
	}

	r := server.NewServer(pipeline, st, cfg.Pipeline, cfg.Analysis).SetupRouter()

	slog.Info("Starting server", "port", cfg.Server.Port, "provider", cfg.LLM.Provider,
		"persist", st != nil, "detector", cfg.Analysis.Detector)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads CONFIG_PATH (default config/config.toml), falling back to
// built-in defaults when the file does not exist, then applies env overrides.
func loadConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.toml"
	}

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Config file not found, using defaults", "path", path)
		cfg, err = config.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	if cfg.Memgraph.URI == "" {
		cfg.Memgraph.URI = "bolt://localhost:7687"
	}
	return cfg, cfg.Validate()
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}
