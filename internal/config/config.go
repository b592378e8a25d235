package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/insight-cli/internal/retrieve"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Retrieval  RetrievalConfig  `yaml:"retrieval" mapstructure:"retrieval"`
	Resilience ResilienceConfig `yaml:"resilience" mapstructure:"resilience"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the structured database backend.
type StoreConfig struct {
	Driver      string               `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string               `yaml:"database_url" mapstructure:"database_url"`
	Pool        *retrieve.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// JinaConfig holds the semantic index settings.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// PerplexityConfig holds the research feed settings.
type PerplexityConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Model     string  `yaml:"model" mapstructure:"model"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	Burst     int     `yaml:"burst" mapstructure:"burst"`
}

// AnthropicConfig holds the language model settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// RetrievalConfig bounds the retrieval fan-out.
type RetrievalConfig struct {
	StructuredTimeout time.Duration `yaml:"structured_timeout" mapstructure:"structured_timeout"`
	SemanticTimeout   time.Duration `yaml:"semantic_timeout" mapstructure:"semantic_timeout"`
	ExternalTimeout   time.Duration `yaml:"external_timeout" mapstructure:"external_timeout"`
	FragmentBudget    int           `yaml:"fragment_budget" mapstructure:"fragment_budget"`
	SemanticK         int           `yaml:"semantic_k" mapstructure:"semantic_k"`
	ExternalResults   int           `yaml:"external_results" mapstructure:"external_results"`
	MaxRows           int           `yaml:"max_rows" mapstructure:"max_rows"`
}

// ResilienceConfig tunes the circuit breakers and retry bounds guarding
// the external sources.
type ResilienceConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
	RetryAttempts    int `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs   int `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	RetryMaxWaitMs   int `yaml:"retry_max_wait_ms" mapstructure:"retry_max_wait_ms"`
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
	v.SetEnvPrefix("INSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "insight.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://s.jina.ai")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.rate_limit", 1.0)
	v.SetDefault("perplexity.burst", 3)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("retrieval.structured_timeout", "5s")
	v.SetDefault("retrieval.semantic_timeout", "3s")
	v.SetDefault("retrieval.external_timeout", "10s")
	v.SetDefault("retrieval.fragment_budget", 12)
	v.SetDefault("retrieval.semantic_k", 5)
	v.SetDefault("retrieval.external_results", 5)
	v.SetDefault("retrieval.max_rows", 50)
	v.SetDefault("resilience.failure_threshold", 5)
	v.SetDefault("resilience.reset_timeout_secs", 30)
	v.SetDefault("resilience.retry_attempts", 3)
	v.SetDefault("resilience.retry_backoff_ms", 500)
	v.SetDefault("resilience.retry_max_wait_ms", 30000)

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
