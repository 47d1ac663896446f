// Package github provides a small typed client for the GitHub REST API,
// covering the endpoints cloud execution needs. Requests carry a Bearer
// token, the vnd.github+json media type, and a pinned API version; rate
// limited responses are retried once after the advertised backoff.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// apiVersion pins the GitHub REST API version header so behavior stays
// stable as GitHub evolves the API.
const apiVersion = "2022-11-28"

// defaultBaseURL is the base URL for the public GitHub API.
const defaultBaseURL = "https://api.github.com"

// defaultTimeout bounds a single HTTP round trip when no client is
// supplied.
const defaultTimeout = 30 * time.Second

// maxResponseSize is the maximum response body size (1 MB). GitHub
// error bodies are small; anything larger is truncated.
const maxResponseSize = 1 << 20

// Config holds the settings for creating a Client.
type Config struct {
	// BaseURL is the root URL for API requests. Defaults to
	// "https://api.github.com". Must use HTTPS.
	BaseURL string

	// Token is a personal access token or fine-grained token.
	// Required.
	Token string

	// HTTPClient is used for all requests. Defaults to a client with a
	// 30-second timeout.
	HTTPClient *http.Client

	// Logger receives backoff notices. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a typed GitHub REST API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger

	// sleep waits out a rate limit backoff. Injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a GitHub API client from the given configuration. Returns
// an error when the token is missing or the base URL is not HTTPS.
func New(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("github: base URL must use HTTPS (got %q)", baseURL)
	}
	if cfg.Token == "" {
		return nil, errors.New("github: token is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    baseURL,
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     logger,
		sleep:      sleepContext,
	}, nil
}

// do executes an authenticated request against the API. The path is
// relative to the base URL. A nil payload sends no body. On a rate
// limited response the client backs off for the duration the response
// advertises and retries once; every other non-2xx response is returned
// as an *APIError.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body, status, header, err := c.doOnce(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if status >= 200 && status < 300 {
		return body, nil
	}

	if isRateLimitResponse(status, body) {
		if delay := retryAfter(header); delay > 0 {
			c.logger.Warn("github: rate limited, backing off",
				"delay", delay,
				"method", method,
				"path", path,
			)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}

			body, status, _, err = c.doOnce(ctx, method, path, payload)
			if err != nil {
				return nil, err
			}
			if status >= 200 && status < 300 {
				return body, nil
			}
		}
	}

	return nil, parseAPIError(status, body)
}

// doOnce performs a single round trip and returns the raw outcome.
func (c *Client) doOnce(ctx context.Context, method, path string, payload any) ([]byte, int, http.Header, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("github: encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("github: creating request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("github: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, resp.StatusCode, resp.Header, fmt.Errorf("github: reading response body: %w", err)
	}

	return respBody, resp.StatusCode, resp.Header, nil
}

// retryAfter reads the backoff hint from a rate limited response.
// Secondary rate limits send Retry-After in seconds. Returns zero when
// the header is absent or malformed, which disables the retry.
func retryAfter(header http.Header) time.Duration {
	value := header.Get("Retry-After")
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// sleepContext blocks for d or until the context is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
