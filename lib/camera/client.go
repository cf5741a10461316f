// Copyright 2026 The Fridgecam Authors
// SPDX-License-Identifier: Apache-2.0

package camera

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/fridgelab/fridgecam/lib/netutil"
)

// DefaultBaseURL is the camera service's local listen address when no
// override is configured.
const DefaultBaseURL = "http://127.0.0.1:5000"

// Config holds configuration for creating a camera service [Client].
type Config struct {
	// BaseURL is the service's base URL. Empty means [DefaultBaseURL].
	BaseURL string

	// HTTPClient is the HTTP client used for requests. Nil means
	// http.DefaultClient; callers that need a timeout set one here.
	HTTPClient *http.Client

	// Logger receives request diagnostics. Nil means slog.Default().
	Logger *slog.Logger
}

// Client talks to one camera service instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a camera service client from config.
func NewClient(cfg Config) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the base URL the client targets, for report messages.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Liveness probes GET /test. Any 2xx response means the service is up;
// the body is ignored.
func (c *Client) Liveness(ctx context.Context) error {
	resp, body, err := c.get(ctx, "/test", nil)
	if err != nil {
		return err
	}
	return statusErr(resp, body)
}

// Capture fetches a frame from GET /capture using the given API key.
// It returns the frame bytes and the response Content-Type. A 401 or
// 403 yields a [*StatusError] whose Unauthorized method reports true.
func (c *Client) Capture(ctx context.Context, key string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/capture", nil)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", key)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET /capture: %w", err)
	}
	defer resp.Body.Close()

	data, err := netutil.ReadCapture(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading capture body: %w", err)
	}
	if err := statusErr(resp, data); err != nil {
		return nil, "", err
	}
	c.logger.Debug("captured frame",
		"bytes", len(data),
		"content_type", resp.Header.Get("Content-Type"))
	return data, resp.Header.Get("Content-Type"), nil
}

// SetFocus posts a manual focus override to POST /settings/focus using
// the given API key. Value units follow the service (lens dioptres).
// The service acknowledges with a small JSON document; a 2xx answer
// carrying a non-JSON body returns a [*ParseError], since it means
// something other than the camera service answered the route.
func (c *Client) SetFocus(ctx context.Context, key string, value float64) error {
	payload, err := json.Marshal(map[string]float64{"value": value})
	if err != nil {
		return fmt.Errorf("encoding focus payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/settings/focus", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("X-API-Key", key)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST /settings/focus: %w", err)
	}
	defer resp.Body.Close()

	body, err := netutil.ReadResponse(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if err := statusErr(resp, body); err != nil {
		return err
	}
	if len(body) > 0 && !json.Valid(body) {
		return &ParseError{Raw: string(body)}
	}
	return nil
}

// get issues a GET against path and returns the response plus its
// bounded body. Headers may be nil.
func (c *Client) get(ctx context.Context, path string, headers map[string]string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := netutil.ReadResponse(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp, body, nil
}

// RemoteLiveness probes https://<domain>/test through the tunnel
// hostname rather than the local listener. Any 2xx means the public
// route works end to end. The caller supplies the HTTP client so it
// can bound the probe with a timeout; nil means http.DefaultClient.
func RemoteLiveness(ctx context.Context, httpClient *http.Client, domain string) error {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	remoteURL := "https://" + domain + "/test"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", remoteURL, err)
	}
	defer resp.Body.Close()

	body, err := netutil.ReadResponse(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	return statusErr(resp, body)
}
