// Package client is an HTTP client for the checklist API.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/checklist/storage"
)

// DefaultBaseURL is the address of a locally running checklist API.
const DefaultBaseURL = "http://localhost:3000"

const checklistPath = "/checklist"

// StatusError is returned for any non-200 response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Client talks to the checklist API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the API at baseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get returns the current checklist.
func (c *Client) Get(ctx context.Context) ([]storage.Item, error) {
	body, err := c.do(ctx, http.MethodGet, nil)
	if err != nil {
		return nil, err
	}

	items, err := storage.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("unmarshal response: %w (body: %s)", err, string(body))
	}
	return items, nil
}

// Replace posts items as the new checklist.
func (c *Client) Replace(ctx context.Context, items []storage.Item) error {
	data, err := storage.Encode(items)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPost, data)
	return err
}

// SetChecked fetches the checklist, sets the checked flag of the first item
// called name and posts the result back. It returns the updated checklist.
func (c *Client) SetChecked(ctx context.Context, name string, checked bool) ([]storage.Item, error) {
	items, err := c.Get(ctx)
	if err != nil {
		return nil, err
	}

	found := false
	for i := range items {
		if items[i].Name == name {
			items[i].Checked = checked
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", storage.ErrItemNotFound, name)
	}

	if err := c.Replace(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) do(ctx context.Context, method string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+checklistPath, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}
