package github

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// APIError represents a non-2xx response from the GitHub REST API.
// GitHub returns structured JSON error bodies with a message, optional
// documentation URL, and optional field-level validation errors.
type APIError struct {
	// StatusCode is the HTTP response status code.
	StatusCode int

	// Message is the top-level error description from GitHub.
	Message string

	// DocumentationURL points to the relevant API documentation.
	DocumentationURL string

	// Errors contains field-level validation failures. Present only on
	// 422 Unprocessable Entity responses.
	Errors []ValidationError
}

// ValidationError describes a specific validation failure on a resource
// field. Returned by GitHub on 422 responses.
type ValidationError struct {
	Resource string `json:"resource"`
	Code     string `json:"code"`
	Field    string `json:"field"`
	Message  string `json:"message"`
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "github: HTTP %d: %s", e.StatusCode, e.Message)
	for _, ve := range e.Errors {
		if ve.Message != "" {
			fmt.Fprintf(&b, "; %s.%s: %s", ve.Resource, ve.Field, ve.Message)
		} else {
			fmt.Fprintf(&b, "; %s.%s: %s", ve.Resource, ve.Field, ve.Code)
		}
	}
	return b.String()
}

// IsNotFound reports whether err is a GitHub API 404 response. GitHub
// also answers 404 when the token lacks access to a private repository.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 404
}

// IsRateLimited reports whether err is a GitHub API rate limit
// response. GitHub returns 403 when the primary rate limit is exceeded
// and 429 for secondary (abuse) rate limits.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == 429 ||
		(apiErr.StatusCode == 403 && isRateLimitMessage(apiErr.Message))
}

// IsValidationFailed reports whether err is a GitHub API 422 response.
func IsValidationFailed(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 422
}

// isRateLimitMessage checks whether a 403 body indicates a rate limit
// rather than a permission problem. GitHub's rate limit responses
// contain recognizable phrases.
func isRateLimitMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "abuse detection")
}

// isRateLimitResponse reports whether a raw status code and body form a
// rate limit response worth retrying.
func isRateLimitResponse(statusCode int, body []byte) bool {
	if statusCode == 429 {
		return true
	}
	return statusCode == 403 && isRateLimitMessage(string(body))
}

// parseAPIError builds an *APIError from a status code and response
// body. Bodies that are not the documented JSON shape are kept verbatim
// as the message.
func parseAPIError(statusCode int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: statusCode}

	var wire struct {
		Message          string            `json:"message"`
		DocumentationURL string            `json:"documentation_url"`
		Errors           []ValidationError `json:"errors"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiErr.Message = wire.Message
		apiErr.DocumentationURL = wire.DocumentationURL
		apiErr.Errors = wire.Errors
	} else {
		apiErr.Message = strings.TrimSpace(string(body))
	}

	return apiErr
}
