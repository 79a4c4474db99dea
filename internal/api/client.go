// ABOUTME: Shared HTTP plumbing for the remote service clients.
// ABOUTME: JSON request/response handling with bearer auth and error mapping.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultRequestTimeout = 15 * time.Second

// Client talks JSON over HTTP to one remote service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the service at baseURL. The token is
// sent as a bearer credential when non-empty.
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger.With("component", "api"),
	}
}

// SetToken replaces the bearer token, e.g. after a fresh login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// errorBody is the JSON error shape the message service returns.
type errorBody struct {
	Detail string `json:"detail"`
}

// doJSON performs one request. A non-nil body is marshaled as JSON; a
// non-nil out receives the decoded response. HTTP-level failures are
// mapped by mapErr; transport failures become ErrNetworkUnavailable.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, mapErr func(status int, detail string) error) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail := readErrorDetail(resp)
		c.logger.Debug("request failed",
			"method", method,
			"path", path,
			"status", resp.StatusCode,
		)
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
		}
		return mapErr(resp.StatusCode, detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// readErrorDetail extracts the "detail" field from an error response,
// returning "" when the body is not the expected shape.
func readErrorDetail(resp *http.Response) string {
	var eb errorBody
	if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil {
		return ""
	}
	return eb.Detail
}
