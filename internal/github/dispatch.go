package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// DispatchRequest is the body of a repository_dispatch event.
type DispatchRequest struct {
	// EventType names the event. Workflows filter on it via
	// `on: repository_dispatch: types: [...]`.
	EventType string `json:"event_type"`

	// ClientPayload is an arbitrary JSON object handed to the workflow
	// as `github.event.client_payload`. GitHub caps it at 10 top-level
	// properties.
	ClientPayload any `json:"client_payload,omitempty"`
}

// CreateRepositoryDispatch triggers a repository_dispatch event on
// owner/repo. GitHub answers 204 No Content on success; the workflow
// run it starts must be discovered out of band.
func (c *Client) CreateRepositoryDispatch(ctx context.Context, owner, repo string, req DispatchRequest) error {
	if owner == "" || repo == "" {
		return errors.New("github: owner and repo are required")
	}
	if req.EventType == "" {
		return errors.New("github: event type is required")
	}

	path := fmt.Sprintf("/repos/%s/%s/dispatches", url.PathEscape(owner), url.PathEscape(repo))
	if _, err := c.do(ctx, http.MethodPost, path, req); err != nil {
		return fmt.Errorf("dispatching %s to %s/%s: %w", req.EventType, owner, repo, err)
	}
	return nil
}
