package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// HTTPClient posts every chunk to the ingress URL.
type HTTPClient struct {
	logger *slog.Logger
	url    string
	token  string
	client *http.Client
}

// NewHTTPClient sends through rt, which should be the page's native
// transport so egress is never observed by the fetch proxy.
func NewHTTPClient(url, token string, rt http.RoundTripper, logger *slog.Logger) *HTTPClient {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &HTTPClient{
		logger: logger,
		url:    url,
		token:  token,
		client: &http.Client{Transport: rt},
	}
}

func (c *HTTPClient) Send(ctx context.Context, chunk []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(chunk))
	if err != nil {
		return fmt.Errorf("build ingress request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post chunk to %s: %w", c.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post chunk to %s: unexpected status %s", c.url, resp.Status)
	}
	return nil
}

func (c *HTTPClient) Close(context.Context) error {
	c.client.CloseIdleConnections()
	return nil
}
