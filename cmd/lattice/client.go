package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lattice/internal/items"
)

// Client implements items.Store against a running lattice daemon. All
// category mutations issued by the explorer and the CLI go through this
// client; the daemon owns the actual database.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the daemon on the given port.
func NewClient(port int) *Client {
	return &Client{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", port),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// List fetches the full item list, the single source of truth for every
// tree rebuild.
func (c *Client) List(ctx context.Context) ([]items.Item, error) {
	var list []items.Item
	if err := c.do(ctx, http.MethodGet, "/api/items", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Create adds a new item.
func (c *Client) Create(ctx context.Context, d items.Draft) (*items.Item, error) {
	var it items.Item
	if err := c.do(ctx, http.MethodPost, "/api/items", d, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// Update applies a partial mutation to one item.
func (c *Client) Update(ctx context.Context, id string, u items.Update) (*items.Item, error) {
	var it items.Item
	if err := c.do(ctx, http.MethodPatch, "/api/items/"+id, u, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// Delete removes an item.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/items/"+id, nil, nil)
}

// Ping reports whether the daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
