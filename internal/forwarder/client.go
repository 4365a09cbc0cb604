// Package forwarder delivers collected mail to the configured external API.
package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kimghw/GraphAPIQuery-rev3/internal/config"
)

const defaultTimeout = 30 * time.Second

// Result is the raw outcome of one delivery attempt. The caller records it
// in the external call ledger; no retry happens here.
type Result struct {
	StatusCode int
	Body       string
	Success    bool
}

type Client struct {
	endpointURL string
	httpClient  *http.Client
}

func NewClient(cfg config.ExternalAPIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpointURL: cfg.EndpointURL,
		httpClient:  &http.Client{Timeout: timeout},
	}
}

// EndpointURL returns the configured downstream endpoint.
func (c *Client) EndpointURL() string {
	return c.endpointURL
}

// Deliver posts the payload as JSON. Timeouts and transport failures return
// an error; HTTP-level failures come back in the Result so the caller can
// persist the response for the retry sweep.
func (c *Client) Deliver(ctx context.Context, payload map[string]any) (*Result, error) {
	if c.endpointURL == "" {
		return nil, errors.New("external API endpoint is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	return &Result{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
	}, nil
}
