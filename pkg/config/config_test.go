package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// envMap returns a LookupFunc backed by m.
func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestResolveBackend_Defaults(t *testing.T) {
	cfg, err := ResolveBackend(filepath.Join(t.TempDir(), "missing.yaml"), envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultContextLength, cfg.ContextLength)
	assert.Equal(t, DefaultOllamaHost, cfg.OllamaHost)
	assert.Empty(t, cfg.APIKey)
	assert.False(t, cfg.RemoteLive)
}

func TestResolveBackend_FileValues(t *testing.T) {
	path := writeSettings(t, `
llm:
  provider: OpenAI
  api_key: sk-file
  model: gpt-4o-mini
  base_url: https://llm.internal/v1
  context_length: 4096
  remote_live: true
ollama:
  host: http://ollama:11434
`)

	cfg, err := ResolveBackend(path, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "sk-file", cfg.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, "https://llm.internal/v1", cfg.BaseURL)
	assert.Equal(t, 4096, cfg.ContextLength)
	assert.True(t, cfg.RemoteLive)
	assert.Equal(t, "http://ollama:11434", cfg.OllamaHost)
}

func TestResolveBackend_EnvironmentWins(t *testing.T) {
	path := writeSettings(t, `
llm:
  provider: ollama
  model: llama2
  api_key: sk-file
  context_length: 4096
ollama:
  host: http://file-host:11434
`)

	cfg, err := ResolveBackend(path, envMap(map[string]string{
		EnvBackend:       "openai",
		EnvModel:         "gpt-4o",
		EnvAPIKey:        "sk-env",
		EnvBaseURL:       "https://env/v1",
		EnvContextLength: "16384",
		EnvOllamaURL:     "http://env-host:11434",
		EnvRemoteLive:    "0",
	}))
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.Provider)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, "sk-env", cfg.APIKey)
	assert.Equal(t, "https://env/v1", cfg.BaseURL)
	assert.Equal(t, 16384, cfg.ContextLength)
	assert.Equal(t, "http://env-host:11434", cfg.OllamaHost)
	assert.False(t, cfg.RemoteLive)
}

func TestResolveBackend_OllamaDropsAPIKey(t *testing.T) {
	cfg, err := ResolveBackend("", envMap(map[string]string{EnvAPIKey: "sk-env"}))
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.Provider)
	assert.Empty(t, cfg.APIKey)
}

func TestResolveBackend_InvalidContextLengthKeepsPreviousLayer(t *testing.T) {
	path := writeSettings(t, "llm:\n  context_length: 2048\n")

	cfg, err := ResolveBackend(path, envMap(map[string]string{EnvContextLength: "lots"}))
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.ContextLength)

	path = writeSettings(t, "llm:\n  context_length: -1\n")
	cfg, err = ResolveBackend(path, envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultContextLength, cfg.ContextLength)
}

func TestResolveBackend_UnknownProviderFailsFast(t *testing.T) {
	_, err := ResolveBackend("", envMap(map[string]string{EnvBackend: "mystery"}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownProvider))

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "llm.provider", cfgErr.Field)
	assert.Equal(t, "mystery", cfgErr.Value)
}

func TestResolveBackend_MalformedYAML(t *testing.T) {
	path := writeSettings(t, "llm: [unclosed\n")

	_, err := ResolveBackend(path, envMap(nil))
	require.Error(t, err)

	var cfgErr *ConfigError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestResolveBackend_InvalidOllamaHost(t *testing.T) {
	for _, host := range []string{"localhost:11434", "ollama", "ftp://ollama:11434", "http://"} {
		t.Run(host, func(t *testing.T) {
			_, err := ResolveBackend("", envMap(map[string]string{EnvOllamaURL: host}))

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "ollama.host", cfgErr.Field)
			assert.Equal(t, host, cfgErr.Value)
		})
	}

	// Only the local-model provider dials the host.
	cfg, err := ResolveBackend("", envMap(map[string]string{EnvBackend: "openai", EnvOllamaURL: "localhost:11434"}))
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, cfg.Provider)
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		tag     string
		want    Provider
		wantErr bool
	}{
		{tag: "ollama", want: ProviderOllama},
		{tag: " OLLAMA ", want: ProviderOllama},
		{tag: "openai", want: ProviderOpenAI},
		{tag: "anthropic", wantErr: true},
		{tag: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseProvider(tt.tag)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRunConfigValidate(t *testing.T) {
	valid := RunConfig{Target: "example.com", Steps: 3, TimeoutMultiplier: 1}
	require.NoError(t, valid.Validate())
	assert.Equal(t, DefaultMode, valid.EffectiveMode())

	tests := []struct {
		name  string
		mut   func(c *RunConfig)
		field string
	}{
		{"missing target", func(c *RunConfig) { c.Target = "  " }, "target"},
		{"zero steps", func(c *RunConfig) { c.Steps = 0 }, "steps"},
		{"too many steps", func(c *RunConfig) { c.Steps = 6 }, "steps"},
		{"non-positive timeout", func(c *RunConfig) { c.TimeoutMultiplier = 0 }, "timeout"},
		{"NaN timeout", func(c *RunConfig) { c.TimeoutMultiplier = math.NaN() }, "timeout"},
		{"infinite timeout", func(c *RunConfig) { c.TimeoutMultiplier = math.Inf(1) }, "timeout"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mut(&c)
			err := c.Validate()

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}
