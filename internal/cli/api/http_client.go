package api

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

	"github.com/shawn/tankwatch/internal/dispatch"
	"github.com/shawn/tankwatch/internal/tank"
	"github.com/shawn/tankwatch/internal/threshold"
	"github.com/shawn/tankwatch/internal/webhook"
)

// Error is a non-2xx answer from the server.
type Error struct {
	StatusCode int
	Message    string
	Field      string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.StatusCode, e.Message)
}

// HTTPClient talks to tankwatch over HTTP with a bearer token.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	c := &HTTPClient{httpClient: &http.Client{Timeout: 60 * time.Second}}
	c.SetTarget(baseURL, token)
	return c
}

// SetTarget changes the server and token; flags are only known after
// command construction.
func (c *HTTPClient) SetTarget(baseURL, token string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
	c.token = token
}

func (c *HTTPClient) CreateWebhook(ctx context.Context, in webhook.Input) (*webhook.Registration, error) {
	var out webhook.Registration
	if err := c.do(ctx, http.MethodPost, "/api/webhooks", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) ListWebhooks(ctx context.Context) ([]webhook.Registration, error) {
	var out []webhook.Registration
	if err := c.do(ctx, http.MethodGet, "/api/webhooks", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GetWebhook(ctx context.Context, id string) (*webhook.Registration, error) {
	return c.webhookCall(ctx, http.MethodGet, "/api/webhooks/"+url.PathEscape(id), nil)
}

func (c *HTTPClient) UpdateWebhook(ctx context.Context, id string, p webhook.Patch) (*webhook.Registration, error) {
	return c.webhookCall(ctx, http.MethodPatch, "/api/webhooks/"+url.PathEscape(id), p)
}

func (c *HTTPClient) DisableWebhook(ctx context.Context, id string) (*webhook.Registration, error) {
	return c.webhookCall(ctx, http.MethodPost, "/api/webhooks/"+url.PathEscape(id)+"/disable", nil)
}

func (c *HTTPClient) EnableWebhook(ctx context.Context, id string) (*webhook.Registration, error) {
	return c.webhookCall(ctx, http.MethodPost, "/api/webhooks/"+url.PathEscape(id)+"/enable", nil)
}

func (c *HTTPClient) webhookCall(ctx context.Context, method, path string, body any) (*webhook.Registration, error) {
	var out webhook.Registration
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetThresholds(ctx context.Context) (*threshold.Config, error) {
	var out threshold.Config
	if err := c.do(ctx, http.MethodGet, "/api/settings/thresholds", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SetThresholds(ctx context.Context, cfg threshold.Config) (*threshold.Config, error) {
	var out threshold.Config
	if err := c.do(ctx, http.MethodPut, "/api/settings/thresholds", cfg, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) SendInspectionAlerts(ctx context.Context, readings []tank.Reading) (*dispatch.Report, error) {
	var out dispatch.Report
	if err := c.do(ctx, http.MethodPost, "/api/alerts/inspection", readings, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	if c.baseURL == "" {
		return fmt.Errorf("server url is not set (use --server-url or TANKCTL_SERVER_URL)")
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("API call failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		var eb struct {
			Error   string `json:"error"`
			Field   string `json:"field"`
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &eb) == nil && (eb.Error != "" || eb.Message != "") {
			apiErr.Message = eb.Error
			if apiErr.Message == "" {
				apiErr.Message = eb.Message
			}
			apiErr.Field = eb.Field
		} else {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
