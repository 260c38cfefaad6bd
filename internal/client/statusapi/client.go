package statusapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// Client talks to a running status API.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// NewClient returns a client for the API at addr, given as host:port or a
// full http(s) URL.
func NewClient(addr, token string) *Client {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return &Client{base: strings.TrimRight(addr, "/"), token: token, http: http.DefaultClient}
}

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]StatusView, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header = c.header()
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, e.Error)
	}

	var out []StatusView
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) ([]StatusView, error) {
	return c.do(ctx, http.MethodGet, "/api/v1/status", nil)
}

// Sync runs a sync of every collection and returns the resulting statuses.
func (c *Client) Sync(ctx context.Context, resetLastSync bool) ([]StatusView, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/sync", SyncRequest{ResetLastSync: resetLastSync})
}

func (c *Client) Reset(ctx context.Context) ([]StatusView, error) {
	return c.do(ctx, http.MethodPost, "/api/v1/reset", nil)
}

// Watch streams status messages to fn until ctx ends or the server closes
// the connection.
func (c *Client) Watch(ctx context.Context, fn func(Message)) error {
	url := "ws" + strings.TrimPrefix(c.base, "http") + "/api/v1/watch"
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: c.header()})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		fn(msg)
	}
}
