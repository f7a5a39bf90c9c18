// Package productive is a small client for the Productive JSON:API.
package productive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the public Productive API.
	DefaultBaseURL = "https://api.productive.io/api/v2"
	// DefaultTimeout bounds every API request.
	DefaultTimeout = 30 * time.Second

	mediaType = "application/vnd.api+json"
)

// ErrNotConfigured is returned when no token or organization id is set.
var ErrNotConfigured = errors.New("productive API credentials are not configured")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("productive API returned status %d", e.Status)
	}
	return fmt.Sprintf("productive API returned status %d: %s", e.Status, e.Message)
}

// Client talks to one Productive organization.
type Client struct {
	baseURL    string
	token      string
	orgID      string
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a client. An empty baseURL uses DefaultBaseURL and a nil
// httpClient gets one with DefaultTimeout.
func New(baseURL, token, orgID string, logger *zap.Logger, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		orgID:      orgID,
		httpClient: httpClient,
		logger:     logger.Named("productive"),
	}
}

// Fetch performs a GET on endpoint (e.g. "projects" or "projects/42") with
// params as query string and returns the raw response document.
func (c *Client) Fetch(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	if c.token == "" || c.orgID == "" {
		return nil, ErrNotConfigured
	}

	u, err := c.buildURL(endpoint, params)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Auth-Token", c.token)
	req.Header.Set("X-Organization-Id", c.orgID)
	req.Header.Set("Content-Type", mediaType)
	req.Header.Set("Accept", mediaType)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call productive API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("api request",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("productive API returned invalid JSON for %s", endpoint)
	}
	return json.RawMessage(body), nil
}

func (c *Client) buildURL(endpoint string, params map[string]string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	ep := strings.Trim(endpoint, "/")
	if ep == "" {
		return "", fmt.Errorf("endpoint is required")
	}
	u.Path = path.Join(u.Path, ep)

	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// errorMessage extracts the first JSON:API error, falling back to the body.
func errorMessage(body []byte) string {
	var doc struct {
		Errors []struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err == nil && len(doc.Errors) > 0 {
		e := doc.Errors[0]
		switch {
		case e.Detail != "" && e.Title != "":
			return e.Title + ": " + e.Detail
		case e.Detail != "":
			return e.Detail
		default:
			return e.Title
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
