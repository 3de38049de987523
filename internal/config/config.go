// Package config loads the settings shared by the example programs: a
// YAML file (optional) overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Providers.
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAzure     = "azure"
	ProviderAnthropic = "anthropic"
)

// Defaults.
const (
	DefaultProvider      = ProviderGemini
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultLogger        = "slog"
	DefaultSessionStore  = "memory"
	DefaultSQLitePath    = "weathermesh.db"
	DefaultAzureVersion  = "2024-10-21"
	DefaultTimeout       = 2 * time.Minute
	DefaultMaxModelCalls = 25
)

// Config is the complete example configuration.
type Config struct {
	Provider  string          `yaml:"provider"`
	Model     string          `yaml:"model"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Azure     AzureConfig     `yaml:"azure"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Log       LogConfig       `yaml:"log"`
	Session   SessionConfig   `yaml:"session"`
	Runner    RunnerConfig    `yaml:"runner"`
}

// GeminiConfig holds Google AI Studio credentials.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig holds OpenAI credentials.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
}

// AzureConfig holds Azure OpenAI settings.
type AzureConfig struct {
	APIKey     string `yaml:"api_key"`
	Endpoint   string `yaml:"endpoint"`
	APIVersion string `yaml:"api_version"`
	Deployment string `yaml:"deployment"`
}

// AnthropicConfig holds Anthropic credentials.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
	Logger string `yaml:"logger"` // slog|zerolog
}

// SessionConfig selects the session store.
type SessionConfig struct {
	Store      string `yaml:"store"` // memory|sqlite
	SQLitePath string `yaml:"sqlite_path"`
}

// RunnerConfig bounds a single run.
type RunnerConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	MaxModelCalls int           `yaml:"max_model_calls"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Provider: DefaultProvider,
		Azure:    AzureConfig{APIVersion: DefaultAzureVersion},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Logger: DefaultLogger,
		},
		Session: SessionConfig{
			Store:      DefaultSessionStore,
			SQLitePath: DefaultSQLitePath,
		},
		Runner: RunnerConfig{
			Timeout:       DefaultTimeout,
			MaxModelCalls: DefaultMaxModelCalls,
		},
	}
}

// Load reads the file named by WEATHERMESH_CONFIG, if any, and applies the
// environment overrides.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

// LoadFile reads a YAML file on top of the defaults, without environment
// overrides.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := readYAML(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path := getEnv(lookup, "WEATHERMESH_CONFIG"); path != "" {
		if err := readYAML(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvOverrides(cfg, lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

func readYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	return nil
}

func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	set := func(key string, dst *string) {
		if v := getEnv(lookup, key); v != "" {
			*dst = v
		}
	}

	set("WEATHERMESH_PROVIDER", &cfg.Provider)
	set("WEATHERMESH_MODEL", &cfg.Model)
	set("GOOGLE_API_KEY", &cfg.Gemini.APIKey)
	set("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	set("ANTHROPIC_API_KEY", &cfg.Anthropic.APIKey)
	set("AZURE_OPENAI_API_KEY", &cfg.Azure.APIKey)
	set("ENDPOINT_URL", &cfg.Azure.Endpoint)
	set("API_VERSION", &cfg.Azure.APIVersion)
	set("DEPLOYMENT_NAME", &cfg.Azure.Deployment)
	set("WEATHERMESH_LOG_LEVEL", &cfg.Log.Level)
	set("WEATHERMESH_LOG_FORMAT", &cfg.Log.Format)
	set("WEATHERMESH_LOGGER", &cfg.Log.Logger)
	set("WEATHERMESH_SESSION_STORE", &cfg.Session.Store)
	set("WEATHERMESH_SQLITE_PATH", &cfg.Session.SQLitePath)

	if v := getEnv(lookup, "USE_AZURE_OPENAI"); strings.EqualFold(v, "true") {
		cfg.Provider = ProviderAzure
	}

	if v := getEnv(lookup, "WEATHERMESH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("WEATHERMESH_TIMEOUT: %w", err)
		}
		cfg.Runner.Timeout = d
	}

	if v := getEnv(lookup, "WEATHERMESH_MAX_MODEL_CALLS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("WEATHERMESH_MAX_MODEL_CALLS: %w", err)
		}
		cfg.Runner.MaxModelCalls = n
	}

	return nil
}

func getEnv(lookup func(string) (string, bool), key string) string {
	if v, ok := lookup(key); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Validate reports every setting that prevents the selected provider or
// stores from working.
func (c *Config) Validate() error {
	var errs []error

	missing := func(name, env string) {
		errs = append(errs, fmt.Errorf("%s is required for provider %s (set %s)", name, c.Provider, env))
	}

	switch c.Provider {
	case ProviderGemini:
		if c.Gemini.APIKey == "" {
			missing("api key", "GOOGLE_API_KEY")
		}
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			missing("api key", "OPENAI_API_KEY")
		}
	case ProviderAzure:
		if c.Azure.APIKey == "" {
			missing("api key", "AZURE_OPENAI_API_KEY")
		}
		if c.Azure.Endpoint == "" {
			missing("endpoint", "ENDPOINT_URL")
		}
		if c.Azure.Deployment == "" {
			missing("deployment", "DEPLOYMENT_NAME")
		}
	case ProviderAnthropic:
		if c.Anthropic.APIKey == "" {
			missing("api key", "ANTHROPIC_API_KEY")
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	switch c.Log.Logger {
	case "slog", "zerolog":
	default:
		errs = append(errs, fmt.Errorf("unknown logger %q", c.Log.Logger))
	}

	switch c.Session.Store {
	case "memory":
	case "sqlite":
		if c.Session.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite session store needs a path (set WEATHERMESH_SQLITE_PATH)"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown session store %q", c.Session.Store))
	}

	if c.Runner.MaxModelCalls < 0 {
		errs = append(errs, errors.New("max model calls must not be negative"))
	}

	return errors.Join(errs...)
}
