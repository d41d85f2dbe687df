// Package config provides configuration loading and management for the
// registry updater. All settings the core packages need (API endpoint,
// access token, registry location, retry bounds) are carried explicitly in
// a Config so that no component reads process environment on its own.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides,
// e.g. PLUGINREG_GITHUB_TOKEN overrides github.token.
const EnvPrefix = "PLUGINREG"

const (
	// DefaultAPIBaseURL is the GitHub REST API endpoint.
	DefaultAPIBaseURL = "https://api.github.com"

	// DefaultRequestTimeout bounds a single outbound API request.
	DefaultRequestTimeout = 10 * time.Second

	// DefaultMaxAttempts is the bounded retry count for transient
	// failures talking to the hosting API.
	DefaultMaxAttempts = 8
)

// Config represents the root configuration structure.
type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Registry RegistryConfig `yaml:"registry"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// GitHubConfig defines how the metadata enricher talks to the hosting API.
type GitHubConfig struct {
	// APIBaseURL is the base URL of the GitHub REST API. Overridable for
	// tests and GitHub Enterprise deployments.
	APIBaseURL string `yaml:"apiBaseUrl,omitempty"`

	// Token is the bearer token for API requests, if any. Unauthenticated
	// requests work but hit a much lower rate limit.
	Token string `yaml:"token,omitempty"`

	// RequestTimeout is the per-request timeout in Go duration syntax,
	// e.g. "10s".
	RequestTimeout string `yaml:"requestTimeout,omitempty"`

	// MaxAttempts bounds retries on transient and rate-limited failures.
	MaxAttempts int `yaml:"maxAttempts,omitempty"`
}

// Timeout returns the parsed per-request timeout, falling back to the
// default when the string is unset or unparseable.
func (g *GitHubConfig) Timeout() time.Duration {
	d, err := time.ParseDuration(g.RequestTimeout)
	if err != nil || d <= 0 {
		return DefaultRequestTimeout
	}
	return d
}

// RegistryConfig defines where the plugin registry lives on disk.
type RegistryConfig struct {
	// Path is the root directory of the persisted registry.
	Path string `yaml:"path"`
}

// LogConfig defines logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level,omitempty"`
}

// Load reads configuration from a YAML file, applies environment variable
// overrides, and fills in defaults. An empty path skips the file and builds
// the config from environment and defaults alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path is operator-provided
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides layers PLUGINREG_* environment variables over the file
// values. Only scalar settings an operator plausibly injects at runtime
// (token, endpoint, registry path, log level) are overridable.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if s := v.GetString("GITHUB_TOKEN"); s != "" {
		cfg.GitHub.Token = s
	}
	if s := v.GetString("GITHUB_API_BASE_URL"); s != "" {
		cfg.GitHub.APIBaseURL = s
	}
	if s := v.GetString("REGISTRY_PATH"); s != "" {
		cfg.Registry.Path = s
	}
	if s := v.GetString("LOG_LEVEL"); s != "" {
		cfg.Log.Level = s
	}
}

func (c *Config) applyDefaults() {
	if c.GitHub.APIBaseURL == "" {
		c.GitHub.APIBaseURL = DefaultAPIBaseURL
	}
	if c.GitHub.RequestTimeout == "" {
		c.GitHub.RequestTimeout = DefaultRequestTimeout.String()
	}
	if c.GitHub.MaxAttempts == 0 {
		c.GitHub.MaxAttempts = DefaultMaxAttempts
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path is required")
	}
	if c.GitHub.MaxAttempts < 1 {
		return fmt.Errorf("github.maxAttempts must be at least 1, got %d", c.GitHub.MaxAttempts)
	}
	if c.GitHub.RequestTimeout != "" {
		d, err := time.ParseDuration(c.GitHub.RequestTimeout)
		if err != nil {
			return fmt.Errorf("invalid github.requestTimeout %q: %w", c.GitHub.RequestTimeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("github.requestTimeout must be positive, got %q", c.GitHub.RequestTimeout)
		}
	}
	if strings.HasSuffix(c.GitHub.APIBaseURL, "/") {
		c.GitHub.APIBaseURL = strings.TrimRight(c.GitHub.APIBaseURL, "/")
	}
	return nil
}
