// Package dispatch delivers tank alerts to every matching webhook.
//
// A dispatch takes one snapshot of the active registrations, then posts to
// all of them concurrently. Every attempt runs under its own timeout and
// produces exactly one Result; a failing endpoint never affects another.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shawn/tankwatch/internal/apperr"
	"github.com/shawn/tankwatch/internal/auth"
	"github.com/shawn/tankwatch/internal/contacts"
	"github.com/shawn/tankwatch/internal/tank"
	"github.com/shawn/tankwatch/internal/webhook"
)

const (
	defaultTimeout = 10 * time.Second
	// maxResponseBody caps what is kept of a rejected response.
	maxResponseBody = 4 << 10

	MsgNoWater    = "no tanks with water detected"
	MsgNoWebhooks = "no active webhooks for inspection alerts"
)

// Lister returns the active registrations for an event type.
type Lister interface {
	ListActiveFor(ctx context.Context, eventType webhook.EventType) ([]*webhook.Registration, error)
}

// Config tunes a Dispatcher.
type Config struct {
	// Timeout bounds each webhook attempt. Defaults to 10s.
	Timeout time.Duration
	// SlingFlowURL is used for slingflow registrations without a url.
	SlingFlowURL string
	// HTTPClient defaults to a client without its own timeout; attempts
	// are bounded through their context.
	HTTPClient *http.Client
}

// Dispatcher fans alerts out to registered webhooks.
type Dispatcher struct {
	hooks    Lister
	contacts contacts.Directory
	creds    auth.CredentialProvider
	client   *http.Client
	cfg      Config
}

func New(hooks Lister, dir contacts.Directory, creds auth.CredentialProvider, cfg Config) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Dispatcher{hooks: hooks, contacts: dir, creds: creds, client: client, cfg: cfg}
}

// Result is the outcome of one webhook attempt.
type Result struct {
	WebhookID    string              `json:"webhookId"`
	Name         string              `json:"name"`
	Integration  webhook.Integration `json:"integration"`
	Success      bool                `json:"success"`
	StatusCode   int                 `json:"statusCode,omitempty"`
	ResponseBody string              `json:"responseBody,omitempty"`
	ErrorMessage string              `json:"errorMessage,omitempty"`
}

// NetworkFailure reports whether the attempt failed before any HTTP
// response was received (connection error, timeout, unbuildable payload).
func (r Result) NetworkFailure() bool {
	return !r.Success && r.StatusCode == 0
}

// Report aggregates one dispatch. OverallSuccess is true when at least one
// webhook accepted the alert.
type Report struct {
	OverallSuccess bool     `json:"success"`
	Message        string   `json:"message"`
	Results        []Result `json:"resultados"`
}

// SendInspectionAlerts notifies every active inspection_alert webhook
// about the readings that report water. The returned error is non-nil only
// when the registry itself cannot be read; delivery failures are itemized
// in the report.
func (d *Dispatcher) SendInspectionAlerts(ctx context.Context, readings []tank.Reading) (Report, error) {
	contaminated := tank.WithWater(readings)
	if len(contaminated) == 0 {
		return Report{Message: MsgNoWater, Results: []Result{}}, nil
	}

	hooks, err := d.hooks.ListActiveFor(ctx, webhook.EventInspectionAlert)
	if err != nil {
		return Report{}, fmt.Errorf("load webhooks: %w", err)
	}
	if len(hooks) == 0 {
		return Report{Message: MsgNoWebhooks, Results: []Result{}}, nil
	}

	results := make([]Result, len(hooks))
	var wg sync.WaitGroup
	for i, h := range hooks {
		wg.Add(1)
		go func(i int, h *webhook.Registration) {
			defer wg.Done()
			results[i] = d.deliver(ctx, h, contaminated)
		}(i, h)
	}
	wg.Wait()

	return summarize(results), nil
}

func summarize(results []Result) Report {
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	rep := Report{OverallSuccess: ok > 0, Results: results}
	switch {
	case ok == len(results):
		rep.Message = fmt.Sprintf("alert delivered to %d webhook(s)", ok)
	case ok > 0:
		rep.Message = fmt.Sprintf("alert delivered to %d of %d webhooks", ok, len(results))
	default:
		rep.Message = fmt.Sprintf("all %d webhook deliveries failed", len(results))
	}
	return rep
}

// deliver runs one attempt under its own timeout.
func (d *Dispatcher) deliver(ctx context.Context, h *webhook.Registration, tanks []tank.Reading) Result {
	res := Result{WebhookID: h.ID, Name: h.Name, Integration: h.Integration}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	status, err := d.attempt(ctx, h, tanks)
	res.StatusCode = status

	var derr *apperr.DeliveryError
	switch {
	case err == nil:
		res.Success = true
		slog.Info("webhook delivered", "webhook", h.ID, "integration", h.Integration,
			"status", status, "duration", time.Since(start))
		return res
	case errors.As(err, &derr) && derr.StatusCode != 0:
		res.ResponseBody = derr.Body
	default:
		res.ErrorMessage = err.Error()
	}
	slog.Warn("webhook delivery failed", "webhook", h.ID, "integration", h.Integration,
		"status", status, "duration", time.Since(start), "err", err)
	return res
}

// attempt builds the integration payload and posts it once.
func (d *Dispatcher) attempt(ctx context.Context, h *webhook.Registration, tanks []tank.Reading) (int, error) {
	build, ok := payloads[h.Integration]
	if !ok {
		return 0, fmt.Errorf("no payload builder for integration %q", h.Integration)
	}
	target, body, err := build(ctx, d, h, tanks)
	if err != nil {
		return 0, err
	}
	b, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(b))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.creds != nil {
		key, err := d.creds.Credential(ctx, h.Integration)
		if err != nil {
			return 0, fmt.Errorf("credential for %s: %w", h.Integration, err)
		}
		if key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, &apperr.DeliveryError{WebhookID: h.ID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return resp.StatusCode, &apperr.DeliveryError{WebhookID: h.ID, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
	return resp.StatusCode, nil
}
