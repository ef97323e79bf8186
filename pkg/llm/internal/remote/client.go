// Package remote provides the remote-api backend. By default it is a placeholder that
// answers every query with a fixed string; live mode sends real chat completions through
// the official OpenAI client to any OpenAI-compatible endpoint.
package remote

import (
	"context"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"strix/pkg/llmerrors"
	"strix/pkg/logx"
)

// Placeholder is the answer of the not-yet-implemented remote path.
const Placeholder = "Remote LLM response (OpenAI mock)"

// NoResponse is returned when a live completion carries no content.
const NoResponse = "No response"

// Client answers queries for the remote-api provider.
type Client struct {
	client openai.Client
	logger *logx.Logger
	model  string
	live   bool
}

// NewClient creates a remote client. When live is false no network call is ever made.
func NewClient(apiKey, baseURL, model string, live bool, httpClient *http.Client) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Client{
		client: openai.NewClient(opts...),
		logger: logx.NewLogger("llm-remote"),
		model:  model,
		live:   live,
	}
}

// Live reports whether queries reach the network.
func (c *Client) Live() bool {
	return c.live
}

// Query returns the placeholder unless live mode is enabled.
func (c *Client) Query(ctx context.Context, prompt string) (string, error) {
	if !c.live {
		c.logger.Warn("remote-api backend not implemented, returning placeholder (set LLM_REMOTE_LIVE=1 to call %s)", c.model)
		return Placeholder, nil
	}

	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", llmerrors.NewUnreachable(err, "remote completion failed")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return NoResponse, nil
	}
	return resp.Choices[0].Message.Content, nil
}
