// Package anthropic wraps the official SDK in the narrow client the
// cloud executor needs: one-shot Messages calls with typed errors.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultModel is pinned to a dated release so CI runs are reproducible.
const defaultModel = "claude-sonnet-4-5-20250929"

const defaultMaxTokens = 4096

// Sentinel errors for callers that branch on the failure class.
var (
	ErrRateLimited = errors.New("anthropic: rate limited")
	ErrUnavailable = errors.New("anthropic: service unavailable")
)

// Config holds the client settings.
type Config struct {
	// APIKey authenticates against the Messages API. Falls back to
	// the ANTHROPIC_API_KEY environment variable.
	APIKey string

	// Model defaults to defaultModel.
	Model string

	// BaseURL overrides the API endpoint. Used in tests.
	BaseURL string

	// MaxTokens bounds each completion. Default 4096.
	MaxTokens int
}

// Client is a one-shot completion client over the Messages API.
type Client struct {
	api       *sdkanthropic.Client
	model     string
	maxTokens int64
}

// NewClient builds a client, resolving the API key from the environment
// when the config leaves it empty.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return nil, errors.New("anthropic: API key required (set ANTHROPIC_API_KEY)")
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	// SDK-level retries off; rerunning the workflow is the retry path.
	opts = append(opts, option.WithMaxRetries(0))

	api := sdkanthropic.NewClient(opts...)
	return &Client{
		api:       &api,
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one user prompt under a system prompt and returns the
// concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []sdkanthropic.MessageParam{
			sdkanthropic.NewUserMessage(sdkanthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []sdkanthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return "", mapError(err)
	}
	return textContent(msg), nil
}

// textContent joins the text blocks of a message, skipping tool-use and
// other non-text blocks.
func textContent(msg *sdkanthropic.Message) string {
	var content string
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if content != "" {
				content += "\n"
			}
			content += text.Text
		}
	}
	return content
}

// mapError converts an SDK error into a sentinel where the caller can
// act on the class. Context errors pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *sdkanthropic.Error
	if !errors.As(err, &apiErr) {
		return err
	}

	switch apiErr.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Error())
	case 529, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Error())
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("anthropic: auth error (HTTP %d): %w", apiErr.StatusCode, err)
	default:
		return fmt.Errorf("anthropic: API error (HTTP %d): %w", apiErr.StatusCode, err)
	}
}
