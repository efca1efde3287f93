// Package chunkstore reads and writes ECG chunk snapshots in a realtime
// JSON tree served over REST. A node is addressed as {base}/{path}.json and
// an absent node reads as null.
package chunkstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/banshee-data/ecg.report/internal/ecg/l1chunks"
	"github.com/banshee-data/ecg.report/internal/httputil"
)

const maxSnapshotBody = 32 << 20

// Client is a REST client for the chunk store.
type Client struct {
	BaseURL string
	// Auth is appended as ?auth= when set.
	Auth    string
	Timeout time.Duration
	HTTP    httputil.HTTPClient
}

// NewClient returns a client for baseURL. A nil hc uses a default client.
func NewClient(baseURL, auth string, timeout time.Duration, hc httputil.HTTPClient) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Auth:    auth,
		Timeout: timeout,
		HTTP:    hc,
	}
}

func (c *Client) nodeURL(path string, extra url.Values) string {
	u := c.BaseURL + "/" + strings.Trim(path, "/") + ".json"
	q := url.Values{}
	for k, v := range extra {
		q[k] = v
	}
	if c.Auth != "" {
		q.Set("auth", c.Auth)
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(ctx, c.Timeout)
	}
	return context.WithCancel(ctx)
}

// Get reads the node at path. A null node returns an empty map.
func (c *Client) Get(ctx context.Context, path string) (l1chunks.ChunkMap, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL(path, nil), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: status %d", path, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSnapshotBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return l1chunks.ChunkMap{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	switch v := raw.(type) {
	case nil:
		return l1chunks.ChunkMap{}, nil
	case map[string]any:
		return l1chunks.ChunkMap(v), nil
	default:
		return nil, fmt.Errorf("node %s is %T, not an object", path, raw)
	}
}

// Put replaces the node at path with v.
func (c *Client) Put(ctx context.Context, path string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.nodeURL(path, url.Values{"print": {"silent"}}), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to write %s: status %d", path, resp.StatusCode)
	}
	return nil
}
