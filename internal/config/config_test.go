package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := load(envOf(nil))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, DefaultTimeout, cfg.Runner.Timeout)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := load(envOf(map[string]string{
		"WEATHERMESH_PROVIDER":        "anthropic",
		"ANTHROPIC_API_KEY":           " sk-ant ",
		"WEATHERMESH_LOG_LEVEL":       "debug",
		"WEATHERMESH_LOGGER":          "zerolog",
		"WEATHERMESH_SESSION_STORE":   "sqlite",
		"WEATHERMESH_SQLITE_PATH":     "/tmp/s.db",
		"WEATHERMESH_TIMEOUT":         "45s",
		"WEATHERMESH_MAX_MODEL_CALLS": "7",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderAnthropic, cfg.Provider)
	assert.Equal(t, "sk-ant", cfg.Anthropic.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "zerolog", cfg.Log.Logger)
	assert.Equal(t, "sqlite", cfg.Session.Store)
	assert.Equal(t, "/tmp/s.db", cfg.Session.SQLitePath)
	assert.Equal(t, 45*time.Second, cfg.Runner.Timeout)
	assert.Equal(t, 7, cfg.Runner.MaxModelCalls)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_UseAzure(t *testing.T) {
	cfg, err := load(envOf(map[string]string{
		"USE_AZURE_OPENAI":     "TRUE",
		"AZURE_OPENAI_API_KEY": "key",
		"ENDPOINT_URL":         "https://example.openai.azure.com",
		"DEPLOYMENT_NAME":      "gpt-4o",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderAzure, cfg.Provider)
	assert.Equal(t, DefaultAzureVersion, cfg.Azure.APIVersion)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadNumbers(t *testing.T) {
	_, err := load(envOf(map[string]string{"WEATHERMESH_TIMEOUT": "soon"}))
	assert.ErrorContains(t, err, "WEATHERMESH_TIMEOUT")

	_, err = load(envOf(map[string]string{"WEATHERMESH_MAX_MODEL_CALLS": "many"}))
	assert.ErrorContains(t, err, "WEATHERMESH_MAX_MODEL_CALLS")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weathermesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: openai
model: gpt-4o-mini
openai:
  api_key: from-file
log:
  format: json
runner:
  timeout: 90s
`), 0o600))

	cfg, err := load(envOf(map[string]string{
		"WEATHERMESH_CONFIG": path,
		"OPENAI_API_KEY":     "from-env",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "from-env", cfg.OpenAI.APIKey)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, DefaultLogger, cfg.Log.Logger)
	assert.Equal(t, 90*time.Second, cfg.Runner.Timeout)

	fileOnly, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", fileOnly.OpenAI.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := load(envOf(map[string]string{"WEATHERMESH_CONFIG": filepath.Join(t.TempDir(), "nope.yaml")}))
	assert.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	assert.ErrorContains(t, err, "GOOGLE_API_KEY")

	cfg.Provider = ProviderAzure
	err = cfg.Validate()
	assert.ErrorContains(t, err, "AZURE_OPENAI_API_KEY")
	assert.ErrorContains(t, err, "ENDPOINT_URL")
	assert.ErrorContains(t, err, "DEPLOYMENT_NAME")

	cfg = Default()
	cfg.Gemini.APIKey = "k"
	cfg.Provider = "llama"
	cfg.Log.Format = "xml"
	cfg.Session.Store = "redis"
	err = cfg.Validate()
	assert.ErrorContains(t, err, `unknown provider "llama"`)
	assert.ErrorContains(t, err, `unknown log format "xml"`)
	assert.ErrorContains(t, err, `unknown session store "redis"`)

	cfg = Default()
	cfg.Gemini.APIKey = "k"
	assert.NoError(t, cfg.Validate())
}
