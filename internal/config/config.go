package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration that decodes from TOML strings such as "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Prompts struct {
	Text          string `toml:"text"`
	Voice         string `toml:"voice"`
	Image         string `toml:"image"`
	Relations     string `toml:"relations"`
	Communities   string `toml:"communities"`
	CommunityName string `toml:"community_name"`
}

type LLMConfig struct {
	Provider    string `toml:"provider"`
	Model       string `toml:"model"`
	VisionModel string `toml:"vision_model"`
	AudioModel  string `toml:"audio_model"`
	APIKey      string `toml:"api_key"`
	BaseURL     string `toml:"base_url"`
}

type MemgraphConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
}

// ProcessorConfig controls retry behaviour of a single modality processor.
type ProcessorConfig struct {
	MaxRetries int      `toml:"max_retries"`
	BaseDelay  Duration `toml:"base_delay"`
	MaxDelay   Duration `toml:"max_delay"`
}

// FusionConfig is the matching and canonicalisation policy of the fusion engine.
type FusionConfig struct {
	MatchThreshold    float64            `toml:"match_threshold"`
	ProximityBonus    float64            `toml:"proximity_bonus"`
	CoverageBoost     float64            `toml:"coverage_boost"`
	ConflictThreshold float64            `toml:"conflict_threshold"`
	RelationPolicy    string             `toml:"relation_policy"`
	ModalityPriors    map[string]float64 `toml:"modality_priors"`
}

// PipelineConfig is the per-invocation configuration passed into RunCase.
type PipelineConfig struct {
	ProcessorTimeout Duration        `toml:"processor_timeout"`
	Processor        ProcessorConfig `toml:"processor"`
	Fusion           FusionConfig    `toml:"fusion"`
}

// AnalysisConfig tunes the graph analytics run on fused cases.
type AnalysisConfig struct {
	Detector              string  `toml:"detector"`
	EgoDepth              int     `toml:"ego_depth"`
	TimelineMinConfidence float64 `toml:"timeline_min_confidence"`
}

type ServerConfig struct {
	Port    string `toml:"port"`
	Persist bool   `toml:"persist"`
}

type ConcurrencyConfig struct {
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

type Config struct {
	LLM         LLMConfig         `toml:"llm"`
	Memgraph    MemgraphConfig    `toml:"memgraph"`
	Prompts     Prompts           `toml:"prompts"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Analysis    AnalysisConfig    `toml:"analysis"`
	Server      ServerConfig      `toml:"server"`
	Concurrency ConcurrencyConfig `toml:"concurrency"`
}

// DefaultModalityPriors weights a candidate pair by the modalities it spans.
// Keys are the two modality names joined by "|" in priority order.
func DefaultModalityPriors() map[string]float64 {
	return map[string]float64{
		"TEXT|TEXT":   1.0,
		"TEXT|VOICE":  1.0,
		"TEXT|IMAGE":  1.0,
		"VOICE|VOICE": 0.95,
		"VOICE|IMAGE": 0.95,
		"IMAGE|IMAGE": 0.9,
	}
}

func DefaultPipeline() PipelineConfig {
	return PipelineConfig{
		ProcessorTimeout: Duration{30 * time.Second},
		Processor: ProcessorConfig{
			MaxRetries: 2,
			BaseDelay:  Duration{500 * time.Millisecond},
			MaxDelay:   Duration{8 * time.Second},
		},
		Fusion: FusionConfig{
			MatchThreshold:    0.75,
			ProximityBonus:    0.1,
			CoverageBoost:     0.15,
			ConflictThreshold: 0.5,
			RelationPolicy:    "cooccurrence",
			ModalityPriors:    DefaultModalityPriors(),
		},
	}
}

func DefaultAnalysis() AnalysisConfig {
	return AnalysisConfig{
		Detector:              "lpa",
		EgoDepth:              2,
		TimelineMinConfidence: 0.5,
	}
}

func Default() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "gpt-oss:latest",
			BaseURL:  "http://localhost:11434",
		},
		Prompts:  DefaultPrompts(),
		Pipeline: DefaultPipeline(),
		Analysis: DefaultAnalysis(),
		Server: ServerConfig{
			Port: "8080",
		},
		Concurrency: ConcurrencyConfig{
			RequestsPerSecond: 5,
			Burst:             3,
		},
	}
}

// Load reads a TOML file on top of Default(). Keys missing from the file keep
// their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides config values with environment variables when present.
func (c *Config) ApplyEnv() {
	override := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	override(&c.LLM.Provider, "LLM_PROVIDER")
	override(&c.LLM.Model, "LLM_MODEL")
	override(&c.LLM.VisionModel, "LLM_VISION_MODEL")
	override(&c.LLM.AudioModel, "LLM_AUDIO_MODEL")
	override(&c.LLM.APIKey, "LLM_API_KEY")
	override(&c.LLM.BaseURL, "LLM_BASE_URL")
	override(&c.Memgraph.URI, "MEMGRAPH_URI")
	override(&c.Memgraph.User, "MEMGRAPH_USER")
	override(&c.Memgraph.Password, "MEMGRAPH_PASSWORD")
	override(&c.Server.Port, "PORT")

	c.LLM.Provider = strings.ToLower(c.LLM.Provider)
}

func (c *Config) Validate() error {
	return errors.Join(c.Pipeline.Validate(), c.Analysis.Validate())
}

func (a AnalysisConfig) Validate() error {
	var errs []error
	switch a.Detector {
	case "", "lpa", "components":
	default:
		errs = append(errs, fmt.Errorf("unsupported community detector: %s", a.Detector))
	}
	if a.EgoDepth < 0 {
		errs = append(errs, errors.New("analysis.ego_depth must not be negative"))
	}
	if a.TimelineMinConfidence < 0 || a.TimelineMinConfidence > 1 {
		errs = append(errs, fmt.Errorf("analysis.timeline_min_confidence %.2f outside [0,1]", a.TimelineMinConfidence))
	}
	return errors.Join(errs...)
}

func (p PipelineConfig) Validate() error {
	var errs []error
	if p.ProcessorTimeout.Duration <= 0 {
		errs = append(errs, errors.New("pipeline.processor_timeout must be positive"))
	}
	if p.Processor.MaxRetries < 1 {
		errs = append(errs, errors.New("pipeline.processor.max_retries must be at least 1"))
	}
	if p.Processor.BaseDelay.Duration < 0 || p.Processor.MaxDelay.Duration < 0 {
		errs = append(errs, errors.New("pipeline.processor delays must not be negative"))
	}
	f := p.Fusion
	if f.MatchThreshold <= 0 || f.MatchThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.fusion.match_threshold %.2f outside (0,1]", f.MatchThreshold))
	}
	if f.ConflictThreshold < 0 || f.ConflictThreshold > 1 {
		errs = append(errs, fmt.Errorf("pipeline.fusion.conflict_threshold %.2f outside [0,1]", f.ConflictThreshold))
	}
	if f.ProximityBonus < 0 || f.CoverageBoost < 0 {
		errs = append(errs, errors.New("pipeline.fusion bonuses must not be negative"))
	}
	switch f.RelationPolicy {
	case "", "cooccurrence", "llm":
	default:
		errs = append(errs, fmt.Errorf("unsupported relation policy: %s", f.RelationPolicy))
	}
	return errors.Join(errs...)
}
