package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataDir        string           `yaml:"data_dir" mapstructure:"data_dir"`
	SourcesFile    string           `yaml:"sources_file" mapstructure:"sources_file"`
	Timezone       string           `yaml:"timezone" mapstructure:"timezone"`
	RunTimeoutMins int              `yaml:"run_timeout_mins" mapstructure:"run_timeout_mins"`
	Store          StoreConfig      `yaml:"store" mapstructure:"store"`
	Judges         JudgesConfig     `yaml:"judges" mapstructure:"judges"`
	Anthropic      AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenRouter     OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Notion         NotionConfig     `yaml:"notion" mapstructure:"notion"`
	Alert          AlertConfig      `yaml:"alert" mapstructure:"alert"`
	Fetch          FetchConfig      `yaml:"fetch" mapstructure:"fetch"`
	Server         ServerConfig     `yaml:"server" mapstructure:"server"`
	Log            LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// JudgesConfig configures the relevance arbitration engine.
type JudgesConfig struct {
	Concurrency int      `yaml:"concurrency" mapstructure:"concurrency"`
	TimeoutSecs int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int      `yaml:"max_attempts" mapstructure:"max_attempts"`
	Keywords    []string `yaml:"keywords" mapstructure:"keywords"`
}

// AnthropicConfig holds the primary judge's API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenRouterConfig holds the secondary judge's API settings.
type OpenRouterConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// NotionConfig holds the optional remote keyword registry settings.
type NotionConfig struct {
	Token     string `yaml:"token" mapstructure:"token"`
	KeywordDB string `yaml:"keyword_db" mapstructure:"keyword_db"`
}

// AlertConfig configures the failure alert webhook.
type AlertConfig struct {
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"`
}

// FetchConfig configures collector HTTP behavior.
type FetchConfig struct {
	UserAgent       string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerHost     float64 `yaml:"rate_per_host" mapstructure:"rate_per_host"`
	ContentFetchCap int     `yaml:"content_fetch_cap" mapstructure:"content_fetch_cap"`
}

// ServerConfig configures the status/trigger HTTP server.
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
	v.SetEnvPrefix("CBDC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", "./data")
	v.SetDefault("sources_file", "./sources.yaml")
	v.SetDefault("timezone", "Asia/Shanghai")
	v.SetDefault("run_timeout_mins", 0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "./cbdc.db")
	v.SetDefault("judges.concurrency", 4)
	v.SetDefault("judges.timeout_secs", 60)
	v.SetDefault("judges.max_attempts", 2)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "deepseek/deepseek-chat")
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; cbdc-monitor/1.0)")
	v.SetDefault("fetch.timeout_secs", 40)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.rate_per_host", 1.0)
	v.SetDefault("fetch.content_fetch_cap", 20)
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
