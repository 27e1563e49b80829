package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// Config is the top-level configuration structure.
type Config struct {
	Server    ServerConfig     `json:"server"`
	Providers []ProviderConfig `json:"providers"`
	Agent     AgentConfig      `json:"agent"`
	Narration NarrationConfig  `json:"narration"`
	Data      DataConfig       `json:"data"`
	Database  DatabaseConfig   `json:"database"`
}

type ServerConfig struct {
	Port     int    `json:"port"`
	LogLevel string `json:"log_level"`
}

type ProviderConfig struct {
	ID       string            `json:"id"`
	Type     string            `json:"type"`
	Name     string            `json:"name"`
	Endpoint string            `json:"endpoint"`
	APIKey   string            `json:"api_key"`
	Models   []string          `json:"models,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
	Timeout  Duration          `json:"timeout,omitempty"`
}

// AgentConfig drives the question-answering loop. A nil Temperature takes
// the default; an explicit 0 is kept.
type AgentConfig struct {
	Provider      string   `json:"provider"`
	Fallbacks     []string `json:"fallbacks,omitempty"`
	Model         string   `json:"model"`
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     int      `json:"max_tokens"`
	MaxIterations int      `json:"max_iterations"`
	Language      string   `json:"language"`
	SessionIdle   Duration `json:"session_idle"`
}

// NarrationConfig drives match and player narration.
type NarrationConfig struct {
	Provider    string   `json:"provider"`
	Fallbacks   []string `json:"fallbacks,omitempty"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens"`
	TopP        float64  `json:"top_p"`
	TopK        int      `json:"top_k"`
	Language    string   `json:"language"`
}

// DataConfig points at the match data repository.
type DataConfig struct {
	BaseURL  string   `json:"base_url"`
	CacheTTL Duration `json:"cache_ttl"`
	Timeout  Duration `json:"timeout"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres"`
	Redis    RedisConfig    `json:"redis"`
}

type PostgresConfig struct {
	DSN string `json:"dsn"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

// Duration reads either a Go duration string ("24h") or a number of seconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*d = Duration(time.Duration(t * float64(time.Second)))
	case string:
		if t == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(t)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", t, err)
		}
		*d = Duration(parsed)
	case nil:
		*d = 0
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Defaults for zero-valued settings.
const (
	DefaultPort             = 8080
	DefaultLogLevel         = "info"
	DefaultDataBaseURL      = "https://raw.githubusercontent.com/statsbomb/open-data/master/data"
	DefaultCacheTTL         = 24 * time.Hour
	DefaultAgentTemperature = 0.1
	DefaultMaxIterations    = 3
	DefaultAgentLanguage    = "English"
	DefaultSessionIdle      = 2 * time.Hour
	DefaultNarrationTemp    = 0.3
	DefaultNarrationLang    = "Portuguese"
)

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Load reads a JSON config file, substitutes environment variable
// references and fills in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a JSON document after environment substitution.
func Parse(data []byte) (*Config, error) {
	// Substitute ${VAR} and ${VAR:default} with environment values.
	resolved := envVarRe.ReplaceAllStringFunc(string(data), func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		name := parts[1]
		defaultVal := parts[2]
		if v := os.Getenv(name); v != "" {
			return v
		}
		return defaultVal
	})

	var cfg Config
	if err := json.Unmarshal([]byte(resolved), &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = DefaultLogLevel
	}

	if c.Agent.Temperature == nil {
		t := DefaultAgentTemperature
		c.Agent.Temperature = &t
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = DefaultMaxIterations
	}
	if c.Agent.Language == "" {
		c.Agent.Language = DefaultAgentLanguage
	}
	if c.Agent.SessionIdle == 0 {
		c.Agent.SessionIdle = Duration(DefaultSessionIdle)
	}

	if c.Narration.Temperature == nil {
		t := DefaultNarrationTemp
		c.Narration.Temperature = &t
	}
	if c.Narration.MaxTokens == 0 {
		c.Narration.MaxTokens = 500
	}
	if c.Narration.TopP == 0 {
		c.Narration.TopP = 0.95
	}
	if c.Narration.TopK == 0 {
		c.Narration.TopK = 40
	}
	if c.Narration.Language == "" {
		c.Narration.Language = DefaultNarrationLang
	}

	if c.Data.BaseURL == "" {
		c.Data.BaseURL = DefaultDataBaseURL
	}
	if c.Data.CacheTTL == 0 {
		c.Data.CacheTTL = Duration(DefaultCacheTTL)
	}
}

func (c *Config) validate() error {
	if c.Agent.MaxIterations < 0 {
		return fmt.Errorf("agent.max_iterations must be positive, got %d", c.Agent.MaxIterations)
	}
	for name, t := range map[string]*float64{"agent": c.Agent.Temperature, "narration": c.Narration.Temperature} {
		if *t < 0 || *t > 2 {
			return fmt.Errorf("%s.temperature must be between 0 and 2, got %v", name, *t)
		}
	}
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.ID == "" {
			return fmt.Errorf("providers[%d]: id is required", i)
		}
		if seen[p.ID] {
			return fmt.Errorf("providers[%d]: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = true
		switch strings.ToLower(p.Type) {
		case "openai", "anthropic", "gemini":
		default:
			return fmt.Errorf("provider %s: unsupported type %q", p.ID, p.Type)
		}
	}
	return nil
}
