// Package upstream sends a single chat-completion request to the configured
// endpoint and returns its JSON reply.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Defaults for the HTTP transport.
const (
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 10
	DefaultIdleConnTimeout     = 90 * time.Second
	DefaultMaxResponseBytes    = 32 << 20
)

// Config configures a Client.
type Config struct {
	// Endpoint is the full chat completions URL.
	Endpoint string

	// Timeout bounds the whole exchange. Zero means none; the inbound
	// request context still cancels the call.
	Timeout time.Duration

	// MaxIdleConns, MaxIdleConnsPerHost and IdleConnTimeout tune the pooled
	// transport. Zero selects the package defaults.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// MaxResponseBytes caps how much of the upstream body is read.
	MaxResponseBytes int64

	// Transport overrides the pooled transport.
	Transport http.RoundTripper

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Client performs upstream calls. It is safe for concurrent use.
type Client struct {
	endpoint    string
	client      *http.Client
	maxResponse int64
	logger      *slog.Logger
}

// NewClient creates a client with a pooled transport.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("upstream endpoint is empty")
	}

	transport := cfg.Transport
	if transport == nil {
		maxIdle := cfg.MaxIdleConns
		if maxIdle == 0 {
			maxIdle = DefaultMaxIdleConns
		}
		perHost := cfg.MaxIdleConnsPerHost
		if perHost == 0 {
			perHost = DefaultMaxIdleConnsPerHost
		}
		idle := cfg.IdleConnTimeout
		if idle == 0 {
			idle = DefaultIdleConnTimeout
		}
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        maxIdle,
			MaxIdleConnsPerHost: perHost,
			IdleConnTimeout:     idle,
			ForceAttemptHTTP2:   true,
		}
	}

	maxResponse := cfg.MaxResponseBytes
	if maxResponse == 0 {
		maxResponse = DefaultMaxResponseBytes
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint: cfg.Endpoint,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		maxResponse: maxResponse,
		logger:      logger,
	}, nil
}

// Endpoint returns the configured URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Complete POSTs req with the bearer credential and returns the compacted
// JSON body. Exactly one attempt is made. The upstream status is reported
// on the Response, not as an error: any JSON body is a valid reply.
func (c *Client) Complete(ctx context.Context, credential string, req *Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal upstream request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &UnreachableError{Endpoint: c.endpoint, Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+credential)

	c.logger.DebugContext(ctx, "sending request to upstream",
		"endpoint", c.endpoint,
		"model", req.Model,
		"messages", len(req.Messages),
	)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &UnreachableError{Endpoint: c.endpoint, Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponse+1))
	latency := time.Since(start)
	if err != nil {
		return nil, &InvalidResponseError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("failed to read response: %w", err),
		}
	}
	if int64(len(raw)) > c.maxResponse {
		return nil, &InvalidResponseError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("response exceeds %d bytes", c.maxResponse),
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return nil, &InvalidResponseError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Cause:      fmt.Errorf("response is not JSON: %w", err),
		}
	}
	if compact.Len() == 0 {
		return nil, &InvalidResponseError{
			Endpoint:   c.endpoint,
			StatusCode: resp.StatusCode,
			Cause:      errors.New("empty response body"),
		}
	}

	c.logger.DebugContext(ctx, "upstream responded",
		"status", resp.StatusCode,
		"latency", latency,
		"bytes", compact.Len(),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       json.RawMessage(compact.Bytes()),
		Latency:    latency,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
