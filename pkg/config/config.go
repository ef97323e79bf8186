// Package config provides layered configuration resolution for the launcher and the agent.
// Backend settings resolve once at startup from defaults, then the YAML settings file,
// then environment variables; the result is an immutable value.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"strix/pkg/logx"
)

// Provider is the closed set of backend kinds.
type Provider string

const (
	// ProviderOllama is the local-model backend.
	ProviderOllama Provider = "ollama"
	// ProviderOpenAI is the remote-api backend.
	ProviderOpenAI Provider = "openai"
)

// Environment variable names that override settings-file values.
const (
	EnvBackend       = "LLM_BACKEND"
	EnvAPIKey        = "LLM_API_KEY"
	EnvModel         = "LLM_MODEL"
	EnvBaseURL       = "LLM_BASE_URL"
	EnvContextLength = "LLM_CONTEXT_LEN"
	EnvOllamaURL     = "OLLAMA_URL"
	EnvRemoteLive    = "LLM_REMOTE_LIVE"
)

// Defaults applied before the settings file and environment.
const (
	DefaultProvider      = ProviderOllama
	DefaultModel         = "llama2"
	DefaultContextLength = 8192
	DefaultOllamaHost    = "http://localhost:11434"
	DefaultSettingsPath  = "configs/config.yaml"
)

// ErrUnknownProvider is returned when the provider tag is outside the closed set.
var ErrUnknownProvider = errors.New("unknown provider")

// ConfigError reports a malformed or unusable setting.
//
//nolint:revive // ConfigError reads better than Error at call sites
type ConfigError struct {
	Err   error
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config %s=%q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ParseProvider maps a provider tag to the closed enumeration, case-insensitively.
func ParseProvider(tag string) (Provider, error) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(tag))); p {
	case ProviderOllama, ProviderOpenAI:
		return p, nil
	default:
		return "", &ConfigError{Field: "llm.provider", Value: tag, Err: ErrUnknownProvider}
	}
}

// BackendConfig is the resolved backend selection. Treat as read-only.
type BackendConfig struct {
	Provider      Provider
	Model         string
	APIKey        string
	BaseURL       string
	OllamaHost    string
	ContextLength int
	RemoteLive    bool
}

// LookupFunc reads one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// settingsFile mirrors configs/config.yaml. Numeric and boolean fields are decoded as
// strings so a malformed value degrades to the default instead of failing the load.
type settingsFile struct {
	LLM struct {
		Provider      string `yaml:"provider"`
		APIKey        string `yaml:"api_key"`
		Model         string `yaml:"model"`
		BaseURL       string `yaml:"base_url"`
		ContextLength string `yaml:"context_length"`
		RemoteLive    string `yaml:"remote_live"`
	} `yaml:"llm"`
	Ollama struct {
		Host string `yaml:"host"`
	} `yaml:"ollama"`
}

func loadSettingsFile(path string) (*settingsFile, error) {
	var sf settingsFile
	if path == "" {
		return &sf, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &sf, nil
	}
	if err != nil {
		return nil, &ConfigError{Field: "settings file", Value: path, Err: err}
	}
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, &ConfigError{Field: "settings file", Value: path, Err: err}
	}
	return &sf, nil
}

// ResolveBackend resolves the backend configuration from defaults, the settings file at
// path (a missing file contributes nothing) and environment overrides read via lookup.
func ResolveBackend(path string, lookup LookupFunc) (BackendConfig, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	logger := logx.NewLogger("config")

	sf, err := loadSettingsFile(path)
	if err != nil {
		return BackendConfig{}, err
	}

	pick := func(envKey, fileValue, def string) string {
		if v, ok := lookup(envKey); ok && v != "" {
			return v
		}
		if fileValue != "" {
			return fileValue
		}
		return def
	}

	provider, err := ParseProvider(pick(EnvBackend, sf.LLM.Provider, string(DefaultProvider)))
	if err != nil {
		return BackendConfig{}, err
	}

	cfg := BackendConfig{
		Provider:      provider,
		Model:         pick(EnvModel, sf.LLM.Model, DefaultModel),
		APIKey:        pick(EnvAPIKey, sf.LLM.APIKey, ""),
		BaseURL:       pick(EnvBaseURL, sf.LLM.BaseURL, ""),
		OllamaHost:    pick(EnvOllamaURL, sf.Ollama.Host, DefaultOllamaHost),
		ContextLength: DefaultContextLength,
	}

	for _, layer := range []struct{ field, value string }{
		{"llm.context_length", sf.LLM.ContextLength},
		{EnvContextLength, envValue(lookup, EnvContextLength)},
	} {
		if layer.value == "" {
			continue
		}
		n, convErr := strconv.Atoi(strings.TrimSpace(layer.value))
		if convErr != nil || n <= 0 {
			logger.Warn("Ignoring invalid %s=%q, keeping %d", layer.field, layer.value, cfg.ContextLength)
			continue
		}
		cfg.ContextLength = n
	}

	for _, layer := range []struct{ field, value string }{
		{"llm.remote_live", sf.LLM.RemoteLive},
		{EnvRemoteLive, envValue(lookup, EnvRemoteLive)},
	} {
		if layer.value == "" {
			continue
		}
		b, convErr := strconv.ParseBool(strings.TrimSpace(layer.value))
		if convErr != nil {
			logger.Warn("Ignoring invalid %s=%q", layer.field, layer.value)
			continue
		}
		cfg.RemoteLive = b
	}

	// The local model never authenticates.
	if cfg.Provider == ProviderOllama {
		cfg.APIKey = ""
		if err := validateHostURL(cfg.OllamaHost); err != nil {
			return BackendConfig{}, &ConfigError{Field: "ollama.host", Value: cfg.OllamaHost, Err: err}
		}
	}

	return cfg, nil
}

// validateHostURL requires an absolute http(s) URL with a host, e.g. http://localhost:11434.
func validateHostURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return errors.New("host is missing")
	}
	return nil
}

func envValue(lookup LookupFunc, key string) string {
	v, _ := lookup(key)
	return v
}
