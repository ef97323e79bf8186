// Package llm provides the backend client used by the recon workflow: one textual
// query in, one textual response or a classified failure out.
package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"strix/pkg/config"
	"strix/pkg/llm/internal/ollama"
	"strix/pkg/llm/internal/remote"
	"strix/pkg/llmerrors"
	"strix/pkg/logx"
	"strix/pkg/metrics"
)

// DefaultQueryTimeout bounds every backend call.
const DefaultQueryTimeout = 60 * time.Second

// previewChars is how much of each prompt the per-call log line shows.
const previewChars = 50

// Client sends a prompt to a backend and returns its answer.
type Client interface {
	// Query returns the backend's response text. Failures are *llmerrors.Error values;
	// transport, timeout and protocol problems are ErrorTypeBackendUnreachable.
	Query(ctx context.Context, prompt string) (string, error)

	Provider() config.Provider
	Model() string
}

// backend is what each provider implementation offers.
type backend interface {
	Query(ctx context.Context, prompt string) (string, error)
}

// Option customises NewClient.
type Option func(*client)

// WithTimeout overrides DefaultQueryTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *client) { c.timeout = d }
}

// WithHTTPClient sets the HTTP client used by network backends.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) { c.httpClient = hc }
}

// WithRecorder records per-query metrics.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *client) { c.recorder = r }
}

// WithTokenCounter enables context-length enforcement with the given counter.
func WithTokenCounter(tc *TokenCounter) Option {
	return func(c *client) { c.tokens = tc }
}

type client struct {
	backend    backend
	recorder   metrics.Recorder
	tokens     *TokenCounter
	httpClient *http.Client
	logger     *logx.Logger
	provider   config.Provider
	model      string
	contextLen int
	timeout    time.Duration
}

// NewClient builds the client for cfg.Provider.
func NewClient(cfg config.BackendConfig, opts ...Option) (Client, error) {
	c := &client{
		recorder:   metrics.Nop(),
		logger:     logx.NewLogger("llm"),
		provider:   cfg.Provider,
		model:      cfg.Model,
		contextLen: cfg.ContextLength,
		timeout:    DefaultQueryTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	hc := c.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: c.timeout}
	}

	switch cfg.Provider {
	case config.ProviderOllama:
		oc := ollama.NewClient(cfg.OllamaHost, cfg.Model, cfg.ContextLength, hc)
		c.logger.Debug("Local model %s at %s", cfg.Model, oc.Host())
		c.backend = oc
	case config.ProviderOpenAI:
		rc := remote.NewClient(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.RemoteLive, hc)
		if rc.Live() {
			c.logger.Info("Remote-api live mode enabled for %s", cfg.Model)
		}
		c.backend = rc
	default:
		return nil, &config.ConfigError{Field: "llm.provider", Value: string(cfg.Provider), Err: config.ErrUnknownProvider}
	}
	return c, nil
}

func (c *client) Provider() config.Provider { return c.provider }

func (c *client) Model() string { return c.model }

// Query logs the call, enforces the context budget and the timeout, then delegates.
func (c *client) Query(ctx context.Context, prompt string) (string, error) {
	c.logger.Info("Querying %s (%s) with prompt: %s...", c.provider, c.model, llmerrors.Preview(prompt, previewChars))

	if prompt == "" {
		return "", llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "prompt is empty")
	}

	promptTokens := 0
	if c.tokens != nil {
		promptTokens = c.tokens.Count(prompt)
		if c.contextLen > 0 && promptTokens > c.contextLen {
			c.logger.Warn("Prompt has %d tokens, truncating to context length %d", promptTokens, c.contextLen)
			prompt = c.tokens.TruncateToLimit(prompt, c.contextLen)
			promptTokens = c.tokens.Count(prompt)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.backend.Query(ctx, prompt)
	duration := time.Since(start)

	errorType := ""
	if err != nil {
		errorType = llmerrors.TypeOf(err).String()
		logx.Debug(logx.WithComponent(ctx, "llm"), "backend", "query failed after %s: %v", duration, err)
	}
	c.recorder.ObserveQuery(string(c.provider), c.model, promptTokens, err == nil, errorType, duration)

	if err != nil {
		return "", fmt.Errorf("%s query: %w", c.provider, err)
	}
	return resp, nil
}
