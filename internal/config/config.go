package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	FMP         FMPConfig         `yaml:"fmp" mapstructure:"fmp"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Retry       RetryConfig       `yaml:"retry" mapstructure:"retry"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Transcripts TranscriptsConfig `yaml:"transcripts" mapstructure:"transcripts"`
	Metrics     MetricsConfig     `yaml:"metrics" mapstructure:"metrics"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FMPConfig holds Financial Modeling Prep API settings.
type FMPConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	Model         string `yaml:"model" mapstructure:"model"`
	PromptVersion string `yaml:"prompt_version" mapstructure:"prompt_version"`
}

// PipelineConfig configures stage behavior and targets.
type PipelineConfig struct {
	MaxClaimsPerTranscript int      `yaml:"max_claims_per_transcript" mapstructure:"max_claims_per_transcript"`
	VerificationTolerance  float64  `yaml:"verification_tolerance" mapstructure:"verification_tolerance"`
	ApproximateTolerance   float64  `yaml:"approximate_tolerance" mapstructure:"approximate_tolerance"`
	MisleadingThreshold    float64  `yaml:"misleading_threshold" mapstructure:"misleading_threshold"`
	Workers                int      `yaml:"workers" mapstructure:"workers"`
	StatementWindow        int      `yaml:"statement_window" mapstructure:"statement_window"`
	TargetTickers          []string `yaml:"target_tickers" mapstructure:"target_tickers"`
	TargetQuarters         []string `yaml:"target_quarters" mapstructure:"target_quarters"`
}

// RetryConfig configures retry behavior for external calls.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseDelayMS int `yaml:"base_delay_ms" mapstructure:"base_delay_ms"`
}

// CacheConfig configures the on-disk HTTP response cache.
type CacheConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// TranscriptsConfig configures the local transcript fallback directory.
type TranscriptsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// MetricsConfig configures the metric registry.
type MetricsConfig struct {
	AliasesPath string `yaml:"aliases_path" mapstructure:"aliases_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDITOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "data/claim_auditor.db")
	v.SetDefault("fmp.base_url", "https://financialmodelingprep.com/stable")
	v.SetDefault("fmp.rate_limit", 4.0)
	v.SetDefault("fmp.burst", 8)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.prompt_version", "latest")
	v.SetDefault("pipeline.max_claims_per_transcript", 50)
	v.SetDefault("pipeline.verification_tolerance", 0.02)
	v.SetDefault("pipeline.approximate_tolerance", 0.10)
	v.SetDefault("pipeline.misleading_threshold", 0.25)
	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.statement_window", 8)
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.base_delay_ms", 250)
	v.SetDefault("cache.dir", "data/cache")
	v.SetDefault("transcripts.dir", "data/transcripts")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks that the configuration is usable for the given mode.
// Modes map to commands: ingest, extract, verify, analyze, run, serve,
// report, migrate.
func (c *Config) Validate(mode string) error {
	var problems []string

	common := func() {
		if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite" {
			problems = append(problems, fmt.Sprintf("store.driver must be postgres or sqlite, got %q", c.Store.Driver))
		}
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}
	thresholds := func() {
		for _, t := range []struct {
			name  string
			value float64
		}{
			{"pipeline.verification_tolerance", c.Pipeline.VerificationTolerance},
			{"pipeline.approximate_tolerance", c.Pipeline.ApproximateTolerance},
			{"pipeline.misleading_threshold", c.Pipeline.MisleadingThreshold},
		} {
			if t.value < 0 || t.value > 1 {
				problems = append(problems, fmt.Sprintf("%s must be in [0,1]", t.name))
			}
		}
		if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 32 {
			problems = append(problems, "pipeline.workers must be between 1 and 32")
		}
	}

	switch mode {
	case "ingest":
		common()
		thresholds()
		if c.FMP.APIKey == "" {
			problems = append(problems, "fmp.api_key is required")
		}
	case "extract":
		common()
		thresholds()
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
	case "verify", "analyze", "report", "migrate":
		common()
		thresholds()
	case "run", "serve":
		common()
		thresholds()
		if c.FMP.APIKey == "" {
			problems = append(problems, "fmp.api_key is required")
		}
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
