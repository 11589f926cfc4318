// ABOUTME: Configuration loading and parsing for mediflow
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Responder kinds
const (
	ResponderStub   = "stub"
	ResponderOpenAI = "openai"
)

// Defaults applied to unset fields
const (
	DefaultHTTPAddr         = "127.0.0.1:8080"
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultTokenTTL         = 30 * 24 * time.Hour
	DefaultStubLatency      = 2 * time.Second
	DefaultResponderTimeout = 60 * time.Second
	DefaultRenderDelay      = 800 * time.Millisecond
	DefaultBasicDailyLimit  = 5
	DefaultIdempotencyTTL   = 10 * time.Minute
	DefaultIdempotencyKeys  = 1000
)

// Config represents the complete mediflow configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	Credentials CredentialsConfig `yaml:"credentials" toml:"credentials"`
	Responder   ResponderConfig   `yaml:"responder" toml:"responder"`
	Diagram     DiagramConfig     `yaml:"diagram" toml:"diagram"`
	Plans       PlansConfig       `yaml:"plans" toml:"plans"`
	Idempotency IdempotencyConfig `yaml:"idempotency" toml:"idempotency"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds API authentication configuration.
// An empty JWTSecret leaves the HTTP API unauthenticated.
type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret" toml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"-" toml:"-"`

	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
}

// CredentialsConfig holds the passphrase used to seal stored credentials
type CredentialsConfig struct {
	EncryptionKey string `yaml:"encryption_key" toml:"encryption_key"`
}

// ResponderConfig selects and tunes the reply backend
type ResponderConfig struct {
	Kind         string        `yaml:"kind" toml:"kind"`
	Model        string        `yaml:"model" toml:"model"`
	BaseURL      string        `yaml:"base_url" toml:"base_url"`
	SystemPrompt string        `yaml:"system_prompt" toml:"system_prompt"`
	Latency      time.Duration `yaml:"-" toml:"-"`
	Jitter       time.Duration `yaml:"-" toml:"-"`
	Timeout      time.Duration `yaml:"-" toml:"-"`

	LatencyRaw string `yaml:"latency" toml:"latency"`
	JitterRaw  string `yaml:"jitter" toml:"jitter"`
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// DiagramConfig holds diagram viewer configuration
type DiagramConfig struct {
	RenderDelay time.Duration `yaml:"-" toml:"-"`

	RenderDelayRaw string `yaml:"render_delay" toml:"render_delay"`
}

// PlansConfig holds subscription plan limits.
// A nil BasicDailyLimit means the default; zero disables the limit.
type PlansConfig struct {
	BasicDailyLimit *int `yaml:"basic_daily_limit" toml:"basic_daily_limit"`
}

// DailyLimit returns the effective basic plan limit.
func (p PlansConfig) DailyLimit() int {
	if p.BasicDailyLimit == nil {
		return DefaultBasicDailyLimit
	}
	return *p.BasicDailyLimit
}

// IdempotencyConfig controls how long submission keys are remembered
type IdempotencyConfig struct {
	TTL     time.Duration `yaml:"-" toml:"-"`
	MaxKeys int           `yaml:"max_keys" toml:"max_keys"`

	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with every default applied, storing data under dataDir.
// The encryption key still has to be supplied before it validates.
func Default(dataDir string) *Config {
	cfg := &Config{
		Database: DatabaseConfig{Path: filepath.Join(dataDir, "mediflow.db")},
	}
	cfg.ApplyDefaults()
	return cfg
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// ApplyDefaults fills unset fields. Durations must already be parsed.
func (c *Config) ApplyDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = DefaultHTTPAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = DefaultTokenTTL
	}
	if c.Responder.Kind == "" {
		c.Responder.Kind = ResponderStub
	}
	if c.Responder.Kind == ResponderStub && c.Responder.LatencyRaw == "" {
		c.Responder.Latency = DefaultStubLatency
	}
	if c.Responder.Timeout == 0 {
		c.Responder.Timeout = DefaultResponderTimeout
	}
	if c.Diagram.RenderDelayRaw == "" {
		c.Diagram.RenderDelay = DefaultRenderDelay
	}
	if c.Idempotency.TTL == 0 {
		c.Idempotency.TTL = DefaultIdempotencyTTL
	}
	if c.Idempotency.MaxKeys == 0 {
		c.Idempotency.MaxKeys = DefaultIdempotencyKeys
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Credentials.EncryptionKey == "" {
		return fmt.Errorf("credentials.encryption_key is required")
	}
	switch c.Responder.Kind {
	case ResponderStub, ResponderOpenAI:
	default:
		return fmt.Errorf("responder.kind must be %q or %q, got %q", ResponderStub, ResponderOpenAI, c.Responder.Kind)
	}
	if c.Responder.Latency < 0 || c.Responder.Jitter < 0 {
		return fmt.Errorf("responder.latency and responder.jitter must not be negative")
	}
	if c.Diagram.RenderDelay < 0 {
		return fmt.Errorf("diagram.render_delay must not be negative")
	}
	if c.Plans.DailyLimit() < 0 {
		return fmt.Errorf("plans.basic_daily_limit must not be negative")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"server.shutdown_timeout", cfg.Server.ShutdownTimeoutRaw, &cfg.Server.ShutdownTimeout},
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"responder.latency", cfg.Responder.LatencyRaw, &cfg.Responder.Latency},
		{"responder.jitter", cfg.Responder.JitterRaw, &cfg.Responder.Jitter},
		{"responder.timeout", cfg.Responder.TimeoutRaw, &cfg.Responder.Timeout},
		{"diagram.render_delay", cfg.Diagram.RenderDelayRaw, &cfg.Diagram.RenderDelay},
		{"idempotency.ttl", cfg.Idempotency.TTLRaw, &cfg.Idempotency.TTL},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}
