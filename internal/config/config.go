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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	HubSpot    HubSpotConfig    `yaml:"hubspot" mapstructure:"hubspot"`
	Airtable   AirtableConfig   `yaml:"airtable" mapstructure:"airtable"`
	ZeroBounce ZeroBounceConfig `yaml:"zerobounce" mapstructure:"zerobounce"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Resolve    ResolveConfig    `yaml:"resolve" mapstructure:"resolve"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// HubSpotConfig holds HubSpot CRM API settings.
type HubSpotConfig struct {
	Token     string  `yaml:"token" mapstructure:"token"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// AirtableConfig holds Airtable API settings for the property registry.
type AirtableConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseID  string `yaml:"base_id" mapstructure:"base_id"`
	Table   string `yaml:"table" mapstructure:"table"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ZeroBounceConfig holds ZeroBounce email validation settings.
type ZeroBounceConfig struct {
	Key             string   `yaml:"key" mapstructure:"key"`
	BaseURL         string   `yaml:"base_url" mapstructure:"base_url"`
	BatchSize       int      `yaml:"batch_size" mapstructure:"batch_size"`
	CountryPriority []string `yaml:"country_priority" mapstructure:"country_priority"`
}

// AnthropicConfig holds Anthropic API settings for scrap-blob extraction.
type AnthropicConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	Model      string `yaml:"model" mapstructure:"model"`
	MaxTokens  int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	SchemaPath string `yaml:"schema_path" mapstructure:"schema_path"`
}

// ResolveConfig configures the duplicate resolution run.
type ResolveConfig struct {
	Concurrency        int `yaml:"concurrency" mapstructure:"concurrency"`
	AdapterTimeoutSecs int `yaml:"adapter_timeout_secs" mapstructure:"adapter_timeout_secs"`
	BatchLimit         int `yaml:"batch_limit" mapstructure:"batch_limit"`
}

// ImportConfig configures lead export ingestion.
type ImportConfig struct {
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the webhook server.
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
	v.SetEnvPrefix("FUNNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.path", "funnel.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("hubspot.base_url", "https://api.hubapi.com")
	v.SetDefault("hubspot.rate_limit", 4)
	v.SetDefault("airtable.base_url", "https://api.airtable.com/v0")
	v.SetDefault("airtable.table", "Properties v2")
	v.SetDefault("zerobounce.base_url", "https://api.zerobounce.net/v2")
	v.SetDefault("zerobounce.batch_size", 100)
	v.SetDefault("zerobounce.country_priority", []string{"PL", "CZ", "SK"})
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("resolve.concurrency", 4)
	v.SetDefault("resolve.adapter_timeout_secs", 30)
	v.SetDefault("resolve.batch_limit", 500)
	v.SetDefault("import.user_agent", "funnel-cli/1.0")
	v.SetDefault("import.timeout_secs", 60)

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

// Validate checks the fields a given mode needs. Modes map to the CLI
// commands: resolve, validate, extract, import, status, serve.
func (c *Config) Validate(mode string) error {
	var missing []string

	requireStore := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url is required")
			}
		case "sqlite":
			if c.Store.Path == "" {
				missing = append(missing, "store.path is required")
			}
		default:
			missing = append(missing, "store.driver must be postgres or sqlite")
		}
	}

	switch mode {
	case "resolve", "serve":
		requireStore()
		if c.HubSpot.Token == "" {
			missing = append(missing, "hubspot.token is required")
		}
		if c.Resolve.Concurrency < 1 || c.Resolve.Concurrency > 32 {
			missing = append(missing, "resolve.concurrency must be between 1 and 32")
		}
		if c.Resolve.AdapterTimeoutSecs < 1 {
			missing = append(missing, "resolve.adapter_timeout_secs must be > 0")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
	case "validate":
		requireStore()
		if c.ZeroBounce.Key == "" {
			missing = append(missing, "zerobounce.key is required")
		}
		if c.ZeroBounce.BatchSize < 1 || c.ZeroBounce.BatchSize > 100 {
			missing = append(missing, "zerobounce.batch_size must be between 1 and 100")
		}
	case "extract":
		requireStore()
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
	case "import", "status":
		requireStore()
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
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
