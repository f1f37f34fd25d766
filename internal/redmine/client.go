// Package redmine provides the client used to talk to the Redmine REST API.
// All operations fail closed on authentication rejection and build no retry
// policy of their own.
package redmine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrUnauthorized is returned when Redmine rejects the supplied API key.
var ErrUnauthorized = errors.New("redmine rejected the api key")

// listPageSize is the page size used when listing time entries.
const listPageSize = 100

// dateLayout is the calendar date format Redmine uses on the wire.
const dateLayout = "2006-01-02"

// TimeEntry is a time entry as reported by Redmine.
type TimeEntry struct {
	ID       int64
	IssueID  int64
	SpentOn  string
	Hours    float64
	Comments string
}

// Issue is an issue as reported by Redmine.
type Issue struct {
	ID   int64
	Name string
}

// Client defines the four tracker operations the bot depends on.
type Client interface {
	// Authenticate reports whether the given API key is accepted by Redmine.
	Authenticate(ctx context.Context, authkey string) bool

	// CreateTimeEntry creates a remote time entry and returns the id Redmine
	// assigned to it. It returns ErrUnauthorized when the key is rejected.
	CreateTimeEntry(ctx context.Context, authkey string, issueID int64, spentOn string, hours float64, comments string) (int64, error)

	// ListTimeEntries returns the authenticated user's time entries,
	// optionally filtered to a single spent-on date (empty means all).
	ListTimeEntries(ctx context.Context, authkey string, spentOn string) ([]TimeEntry, error)

	// GetIssue fetches a single issue by id.
	GetIssue(ctx context.Context, authkey string, issueID int64) (*Issue, error)
}

// httpClient implements Client against the Redmine REST API.
type httpClient struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewClient creates a Redmine client for the given base URL. When hc is nil a
// default client with the given timeout is used.
func NewClient(baseURL string, timeout time.Duration, hc *http.Client, logger *slog.Logger) (Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("redmine base url cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	} else if hc.Timeout == 0 {
		hc.Timeout = timeout
	}

	return &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  hc,
		logger:  logger.With("component", "redmine_client"),
	}, nil
}

// Authenticate checks the key against the current-user endpoint.
func (c *httpClient) Authenticate(ctx context.Context, authkey string) bool {
	var resp struct {
		User struct {
			ID int64 `json:"id"`
		} `json:"user"`
	}

	err := c.get(ctx, authkey, "/users/current.json", nil, &resp)
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			c.logger.WarnContext(ctx, "Auth check failed", "error", err)
		}
		return false
	}
	return true
}

// CreateTimeEntry creates a remote time entry and returns its Redmine id.
func (c *httpClient) CreateTimeEntry(ctx context.Context, authkey string, issueID int64, spentOn string, hours float64, comments string) (int64, error) {
	if _, err := time.Parse(dateLayout, spentOn); err != nil {
		return 0, fmt.Errorf("invalid spent_on date %q: %w", spentOn, err)
	}

	reqBody := map[string]any{
		"time_entry": map[string]any{
			"issue_id": issueID,
			"hours":    hours,
			"spent_on": spentOn,
			"comments": comments,
		},
	}

	var resp struct {
		TimeEntry struct {
			ID int64 `json:"id"`
		} `json:"time_entry"`
	}

	if err := c.post(ctx, authkey, "/time_entries.json", reqBody, &resp); err != nil {
		return 0, err
	}
	if resp.TimeEntry.ID == 0 {
		return 0, fmt.Errorf("redmine returned no time entry id")
	}

	c.logger.DebugContext(ctx, "Created remote time entry",
		"entry_id", resp.TimeEntry.ID, "issue_id", issueID, "hours", hours)
	return resp.TimeEntry.ID, nil
}

// wireTimeEntry is the shape of a time entry in Redmine list responses.
type wireTimeEntry struct {
	ID    int64 `json:"id"`
	Issue struct {
		ID int64 `json:"id"`
	} `json:"issue"`
	SpentOn  string  `json:"spent_on"`
	Hours    float64 `json:"hours"`
	Comments string  `json:"comments"`
}

// ListTimeEntries pages through the authenticated user's time entries.
func (c *httpClient) ListTimeEntries(ctx context.Context, authkey string, spentOn string) ([]TimeEntry, error) {
	var entries []TimeEntry

	offset := 0
	for {
		params := url.Values{}
		params.Set("user_id", "me")
		params.Set("limit", strconv.Itoa(listPageSize))
		params.Set("offset", strconv.Itoa(offset))
		if spentOn != "" {
			params.Set("spent_on", spentOn)
		}

		var resp struct {
			TimeEntries []wireTimeEntry `json:"time_entries"`
			TotalCount  int             `json:"total_count"`
		}

		if err := c.get(ctx, authkey, "/time_entries.json", params, &resp); err != nil {
			return nil, err
		}

		for _, e := range resp.TimeEntries {
			entries = append(entries, TimeEntry{
				ID:       e.ID,
				IssueID:  e.Issue.ID,
				SpentOn:  e.SpentOn,
				Hours:    e.Hours,
				Comments: e.Comments,
			})
		}

		offset += len(resp.TimeEntries)
		if len(resp.TimeEntries) == 0 || offset >= resp.TotalCount {
			break
		}
	}

	c.logger.DebugContext(ctx, "Listed remote time entries", "count", len(entries), "spent_on", spentOn)
	return entries, nil
}

// GetIssue fetches a single issue by id.
func (c *httpClient) GetIssue(ctx context.Context, authkey string, issueID int64) (*Issue, error) {
	var resp struct {
		Issue struct {
			ID      int64  `json:"id"`
			Subject string `json:"subject"`
		} `json:"issue"`
	}

	path := fmt.Sprintf("/issues/%d.json", issueID)
	if err := c.get(ctx, authkey, path, nil, &resp); err != nil {
		return nil, err
	}

	return &Issue{ID: resp.Issue.ID, Name: resp.Issue.Subject}, nil
}

func (c *httpClient) get(ctx context.Context, authkey, path string, params url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}

	return c.do(req, authkey, out)
}

func (c *httpClient) post(ctx context.Context, authkey, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, authkey, out)
}

func (c *httpClient) do(req *http.Request, authkey string, out any) error {
	req.Header.Set("X-Redmine-API-Key", authkey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("request to %s returned status %d", req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}
