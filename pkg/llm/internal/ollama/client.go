// Package ollama provides the local-model backend on top of the Ollama generate API.
package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"

	"strix/pkg/llmerrors"
)

// NoResponse is returned when the model answers with an empty response field.
const NoResponse = "No response"

const defaultHost = "http://localhost:11434"

// Client sends single-shot generate requests to an Ollama server.
type Client struct {
	client        *api.Client
	model         string
	hostURL       string
	contextLength int
}

// NewClient creates a client for hostURL (e.g. "http://localhost:11434").
// httpClient carries the transport timeout; nil uses http.DefaultClient.
func NewClient(hostURL, model string, contextLength int, httpClient *http.Client) *Client {
	parsedURL, err := url.Parse(hostURL)
	if err != nil || parsedURL.Scheme == "" || parsedURL.Host == "" {
		parsedURL, _ = url.Parse(defaultHost)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		client:        api.NewClient(parsedURL, httpClient),
		model:         model,
		hostURL:       parsedURL.String(),
		contextLength: contextLength,
	}
}

// Query posts prompt to /api/generate without streaming and returns the response text.
// Every failure is reported as BackendUnreachable.
func (o *Client) Query(ctx context.Context, prompt string) (string, error) {
	stream := false
	req := &api.GenerateRequest{
		Model:  o.model,
		Prompt: prompt,
		Stream: &stream,
	}
	if o.contextLength > 0 {
		req.Options = map[string]any{"num_ctx": o.contextLength}
	}

	var out strings.Builder
	err := o.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", llmerrors.NewUnreachable(err, fmt.Sprintf("Ollama connection failed (%s)", o.hostURL))
	}

	if out.Len() == 0 {
		return NoResponse, nil
	}
	return out.String(), nil
}

// Host returns the resolved server URL.
func (o *Client) Host() string {
	return o.hostURL
}
