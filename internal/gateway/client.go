// Package gateway wraps the Journey backend REST API. Each operation is a
// single awaited round trip with no retry; timeouts belong to the injected
// HTTP client.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/journeyapp/journey-client-go/internal/config"
	apperrors "github.com/journeyapp/journey-client-go/internal/errors"
)

// Config wires the base URL and transport for the backend client.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
}

// Client talks to the Journey backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient validates the configuration and returns a ready-to-use Client.
func NewClient(cfg Config) (*Client, error) {
	normalized, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.GatewayRequestTimeout}
	}
	return &Client{
		baseURL:    normalized,
		httpClient: httpClient,
	}, nil
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("gateway: base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("gateway: invalid base URL: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("gateway: base URL missing scheme (http/https)")
	}
	if u.Host == "" {
		return "", errors.New("gateway: base URL missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) newFormRequest(ctx context.Context, path string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// send executes the request and reads the full body. A transport failure maps
// to a NETWORK error; HTTP status classification is left to the caller.
func (c *Client) send(req *http.Request) (int, []byte, error) {
	req.Header.Set("Accept", "application/json")
	// Tunneling artifact: the backend sits behind an ngrok tunnel in dev.
	req.Header.Set("ngrok-skip-browser-warning", "true")
	injectTraceparent(req.Context(), req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, apperrors.Network(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, apperrors.Network(err)
	}
	return resp.StatusCode, body, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

// errorDetail extracts a human-readable message from a non-2xx response body:
// the JSON "detail" field when present, else the HTTP status text.
func errorDetail(status int, body []byte) string {
	if len(body) > 0 {
		var payload struct {
			Detail json.RawMessage `json:"detail"`
		}
		if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
			var s string
			if err := json.Unmarshal(payload.Detail, &s); err == nil {
				return s
			}
			return string(payload.Detail)
		}
	}
	text := http.StatusText(status)
	if text == "" {
		text = fmt.Sprintf("HTTP %d", status)
	}
	return text
}
