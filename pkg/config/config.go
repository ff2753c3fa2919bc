package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/daramad/daramad-engine/pkg/logging"
)

// configFile is read from the working directory when present.
const configFile = "config.yaml"

// Config holds all configuration for daramad-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	// Database configuration (PostgreSQL job catalog and observations)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (response cache). Empty host selects the in-memory store.
	Redis RedisConfig `yaml:"redis"`

	Resolver ResolverConfig `yaml:"resolver"`
	Cache    CacheConfig    `yaml:"cache"`
	LLM      LLMConfig      `yaml:"llm"`
	Money    MoneyConfig    `yaml:"money"`

	// LexiconPath optionally replaces the embedded word lists.
	LexiconPath string `yaml:"lexicon_path" env:"LEXICON_PATH" env-default:""`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"daramad"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"daramad"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"5"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Enabled reports whether a Redis host is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// ResolverConfig tunes job-title resolution. The thresholds are empirical;
// higher confidence only means a more specific match.
type ResolverConfig struct {
	AcceptThreshold float64       `yaml:"accept_threshold" env:"RESOLVER_ACCEPT_THRESHOLD" env-default:"0.55"`
	MaxCandidates   int           `yaml:"max_candidates" env:"RESOLVER_MAX_CANDIDATES" env-default:"3"`
	DominanceRatio  float64       `yaml:"dominance_ratio" env:"RESOLVER_DOMINANCE_RATIO" env-default:"2.0"`
	MemoTTL         time.Duration `yaml:"memo_ttl" env:"RESOLVER_MEMO_TTL" env-default:"30s"`
	MemoSize        int           `yaml:"memo_size" env:"RESOLVER_MEMO_SIZE" env-default:"1024"`
}

// CacheConfig holds response cache TTLs per model tier.
type CacheConfig struct {
	TTLFast          time.Duration `yaml:"ttl_fast" env:"CACHE_TTL_FAST" env-default:"1h"`
	TTLStandard      time.Duration `yaml:"ttl_standard" env:"CACHE_TTL_STANDARD" env-default:"6h"`
	TTLPremium       time.Duration `yaml:"ttl_premium" env:"CACHE_TTL_PREMIUM" env-default:"24h"`
	TTLMax           time.Duration `yaml:"ttl_max" env:"CACHE_TTL_MAX" env-default:"72h"`
	MemoryMaxEntries int           `yaml:"memory_max_entries" env:"CACHE_MEMORY_MAX_ENTRIES" env-default:"10000"`

	// AllowInvalidate exposes POST /api/cache/invalidate. The endpoint has no
	// authentication, so it stays off unless the server is private.
	AllowInvalidate bool `yaml:"allow_invalidate" env:"CACHE_ALLOW_INVALIDATE" env-default:"false"`
}

// LLMConfig holds the answer phrasing models. Keys are secrets.
type LLMConfig struct {
	OpenAIBaseURL   string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:""`
	OpenAIModel     string `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4o-mini"`
	OpenAIAPIKey    string `yaml:"-" env:"OPENAI_API_KEY"`
	AnthropicModel  string `yaml:"anthropic_model" env:"ANTHROPIC_MODEL" env-default:"claude-3-5-haiku-latest"`
	AnthropicAPIKey string `yaml:"-" env:"ANTHROPIC_API_KEY"`
	MaxTokens       int    `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"512"`
}

// OpenAIConfigured reports whether the OpenAI-compatible phraser can be used.
func (c *LLMConfig) OpenAIConfigured() bool {
	return c.OpenAIAPIKey != ""
}

// AnthropicConfigured reports whether the Anthropic phraser can be used.
func (c *LLMConfig) AnthropicConfigured() bool {
	return c.AnthropicAPIKey != ""
}

// MoneyConfig holds monetary parser thresholds in toman.
type MoneyConfig struct {
	LargeBareThreshold float64 `yaml:"large_bare_threshold" env:"MONEY_LARGE_BARE_THRESHOLD" env-default:"100000"`
	SanityCeiling      float64 `yaml:"sanity_ceiling" env:"MONEY_SANITY_CEILING" env-default:"2000000000"`
}

// Load reads configuration from config.yaml (when present) with environment
// variable overrides. The version parameter is injected at build time and set
// on the returned Config. Secrets (PGPASSWORD, REDIS_PASSWORD, OPENAI_API_KEY,
// ANTHROPIC_API_KEY) must come from environment variables (yaml:"-" fields).
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	_, statErr := os.Stat(configFile)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", configFile, err)
		}
	case errors.Is(statErr, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to stat %s: %w", configFile, statErr)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.Database.Host = ResolveHostForDocker(cfg.Database.Host)
	cfg.Redis.Host = ResolveHostForDocker(cfg.Redis.Host)

	// Auto-derive BaseURL from Port if not explicitly set
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// PaidModelConfigured reports whether any paid language model key is set.
// Cached answers built from internal data are rejected once this is true.
func (c *Config) PaidModelConfigured() bool {
	return c.LLM.OpenAIConfigured() || c.LLM.AnthropicConfigured()
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (c *Config) validate() error {
	r := c.Resolver
	if r.AcceptThreshold <= 0 || r.AcceptThreshold > 1 {
		return fmt.Errorf("resolver.accept_threshold must be in (0, 1], got %v", r.AcceptThreshold)
	}
	if r.MaxCandidates < 1 {
		return fmt.Errorf("resolver.max_candidates must be at least 1, got %d", r.MaxCandidates)
	}
	if r.DominanceRatio < 1 {
		return fmt.Errorf("resolver.dominance_ratio must be at least 1, got %v", r.DominanceRatio)
	}

	ca := c.Cache
	if ca.TTLFast <= 0 || ca.TTLStandard <= 0 || ca.TTLPremium <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if ca.TTLMax < ca.TTLPremium {
		return fmt.Errorf("cache.ttl_max (%s) must not be shorter than cache.ttl_premium (%s)", ca.TTLMax, ca.TTLPremium)
	}

	if c.Money.LargeBareThreshold <= 0 || c.Money.SanityCeiling <= 0 {
		return fmt.Errorf("money thresholds must be positive")
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedactedConnectionString is ConnectionString with the password removed,
// for logs.
func (c *DatabaseConfig) RedactedConnectionString() string {
	return logging.SanitizeConnectionString(c.ConnectionString())
}

// Addr returns the Redis host:port address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
