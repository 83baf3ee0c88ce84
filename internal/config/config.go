// Package config loads research configuration from a YAML file with
// environment-variable overrides for secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "250ms"
// or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Provider configures one model backend in the fallback chain, in order.
type Provider struct {
	Name          string `yaml:"name"` // gemini, anthropic, openai, groq, together
	Model         string `yaml:"model"`
	FallbackModel string `yaml:"fallback_model,omitempty"`
	APIKey        string `yaml:"api_key,omitempty"` // usually injected via env
	BaseURL       string `yaml:"base_url,omitempty"`
	MaxRetries    int    `yaml:"max_retries,omitempty"`
}

// Config is the root configuration.
type Config struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"` // text or json

	Providers []Provider `yaml:"providers"`

	RetryBackoff Duration `yaml:"retry_backoff"`
	NodeTimeout  Duration `yaml:"node_timeout"`
	MaxParallel  int      `yaml:"max_parallel"`

	CachePath string   `yaml:"cache_path"` // empty disables the SQLite layer
	CacheTTL  Duration `yaml:"cache_ttl"`

	Chunker ChunkerConfig `yaml:"chunker"`
}

// ChunkerConfig sizes the document chunker.
type ChunkerConfig struct {
	MaxTokens     int `yaml:"max_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
}

// envKeys maps provider names to the environment variables their API keys
// are read from when the YAML leaves them empty.
var envKeys = map[string]string{
	"gemini":    "GOOGLE_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"groq":      "GROQ_API_KEY",
	"together":  "TOGETHER_API_KEY",
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel:     "info",
		LogFormat:    "text",
		RetryBackoff: Duration(time.Second),
		NodeTimeout:  Duration(5 * time.Minute),
		MaxParallel:  4,
		CacheTTL:     Duration(24 * time.Hour),
		Chunker: ChunkerConfig{
			MaxTokens:     6000,
			OverlapTokens: 500,
		},
		Providers: []Provider{
			{Name: "gemini", Model: "gemini-2.0-flash", FallbackModel: "gemini-1.5-flash", MaxRetries: 2},
			{Name: "anthropic", Model: "claude-sonnet-4-20250514", MaxRetries: 2},
			{Name: "openai", Model: "gpt-4o-mini", MaxRetries: 2},
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path yields the defaults plus env keys.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	for i := range c.Providers {
		p := &c.Providers[i]
		if p.APIKey != "" {
			continue
		}
		if env, ok := envKeys[p.Name]; ok {
			p.APIKey = os.Getenv(env)
		}
	}
}

func (c *Config) validate() error {
	if c.MaxParallel <= 0 {
		return fmt.Errorf("config: max_parallel must be positive, got %d", c.MaxParallel)
	}
	seen := make(map[string]bool)
	for _, p := range c.Providers {
		if p.Name == "" || p.Model == "" {
			return fmt.Errorf("config: provider entries need name and model")
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// ConfiguredProviders returns the names of providers that have an API key.
func (c *Config) ConfiguredProviders() []string {
	var out []string
	for _, p := range c.Providers {
		if p.APIKey != "" {
			out = append(out, p.Name)
		}
	}
	return out
}
