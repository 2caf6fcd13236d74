package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/shawn/tankwatch/internal/apperr"
	"github.com/shawn/tankwatch/internal/auth"
	"github.com/shawn/tankwatch/internal/dispatch"
	"github.com/shawn/tankwatch/internal/registry"
	"github.com/shawn/tankwatch/internal/settings"
	"github.com/shawn/tankwatch/internal/sophia"
	"github.com/shawn/tankwatch/internal/tank"
	"github.com/shawn/tankwatch/internal/threshold"
	"github.com/shawn/tankwatch/internal/webhook"
)

const maxBodyBytes = 1 << 20

// AlertSender delivers inspection alerts.
type AlertSender interface {
	SendInspectionAlerts(ctx context.Context, readings []tank.Reading) (dispatch.Report, error)
}

// Handler is the tankwatch HTTP API
type Handler struct {
	reg      *registry.Registry
	settings settings.Store
	alerts   AlertSender
	chat     *sophia.Client // nil disables /api/sophia/chat with a ConfigurationError
	authn    *auth.Authenticator
}

func New(reg *registry.Registry, store settings.Store, alerts AlertSender, chat *sophia.Client, authn *auth.Authenticator) *Handler {
	return &Handler{reg: reg, settings: store, alerts: alerts, chat: chat, authn: authn}
}

// Router returns the chi router with all routes registered
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", h.Healthz)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authn.Middleware)

		r.Post("/alerts/inspection", h.SendInspectionAlerts)
		r.Post("/tanks/status", h.TankStatus)

		r.Get("/settings/thresholds", h.GetThresholds)
		r.Put("/settings/thresholds", h.PutThresholds)

		r.Post("/webhooks", h.CreateWebhook)
		r.Get("/webhooks", h.ListWebhooks)
		r.Get("/webhooks/{id}", h.GetWebhook)
		r.Patch("/webhooks/{id}", h.UpdateWebhook)
		r.Post("/webhooks/{id}/disable", h.DisableWebhook)
		r.Post("/webhooks/{id}/enable", h.EnableWebhook)

		r.Post("/sophia/chat", h.SophiaChat)
	})
	return r
}

// Healthz returns 200 OK
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// SendInspectionAlerts dispatches the readings that report water to every
// active inspection_alert webhook. Delivery failures still answer 200 with
// the itemized report.
func (h *Handler) SendInspectionAlerts(w http.ResponseWriter, r *http.Request) {
	readings, err := tank.DecodeBatch(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dispatch.Report{Message: err.Error(), Results: []dispatch.Result{}})
		return
	}
	rep, err := h.alerts.SendInspectionAlerts(r.Context(), readings)
	if err != nil {
		slog.Error("send inspection alerts failed", "owner", auth.OwnerFrom(r.Context()), "err", err)
		writeJSON(w, http.StatusInternalServerError, dispatch.Report{Message: "internal error", Results: []dispatch.Result{}})
		return
	}
	slog.Info("inspection alerts dispatched",
		"owner", auth.OwnerFrom(r.Context()),
		"readings", len(readings),
		"webhooks", len(rep.Results),
		"success", rep.OverallSuccess,
	)
	writeJSON(w, http.StatusOK, rep)
}

// TankStatus classifies readings with the caller's thresholds.
func (h *Handler) TankStatus(w http.ResponseWriter, r *http.Request) {
	readings, err := tank.DecodeBatch(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, err)
		return
	}
	cfg, err := h.settings.Get(r.Context(), auth.OwnerFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	counts, statuses, err := threshold.Summarize(readings, cfg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thresholds": cfg,
		"counts":     counts,
		"tanks":      statuses,
	})
}

// GetThresholds returns the caller's thresholds, creating the defaults on
// first access.
func (h *Handler) GetThresholds(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.settings.Get(r.Context(), auth.OwnerFrom(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PutThresholds replaces the caller's thresholds.
func (h *Handler) PutThresholds(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Critical  *float64 `json:"threshold_critico"`
		Attention *float64 `json:"threshold_atencao"`
	}
	if err := decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Critical == nil {
		writeError(w, apperr.Invalid("threshold_critico", "is required"))
		return
	}
	if req.Attention == nil {
		writeError(w, apperr.Invalid("threshold_atencao", "is required"))
		return
	}
	cfg, err := h.settings.Update(r.Context(), auth.OwnerFrom(r.Context()),
		threshold.Config{CriticalPercent: *req.Critical, AttentionPercent: *req.Attention})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// CreateWebhook registers a webhook
func (h *Handler) CreateWebhook(w http.ResponseWriter, r *http.Request) {
	var in webhook.Input
	if err := decode(w, r, &in); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.reg.Register(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// ListWebhooks returns all registrations in insertion order
func (h *Handler) ListWebhooks(w http.ResponseWriter, r *http.Request) {
	recs, err := h.reg.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*webhook.Registration{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) GetWebhook(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reg.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateWebhook applies a partial update
func (h *Handler) UpdateWebhook(w http.ResponseWriter, r *http.Request) {
	var p webhook.Patch
	if err := decode(w, r, &p); err != nil {
		writeError(w, err)
		return
	}
	rec, err := h.reg.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) DisableWebhook(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reg.Disable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) EnableWebhook(w http.ResponseWriter, r *http.Request) {
	rec, err := h.reg.Enable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// SophiaChat proxies one chat turn to Sophia AI.
func (h *Handler) SophiaChat(w http.ResponseWriter, r *http.Request) {
	if h.chat == nil {
		writeError(w, &apperr.ConfigurationError{Setting: "integrations.sophia_ai.chat_url"})
		return
	}
	var msg sophia.Message
	if err := decode(w, r, &msg); err != nil {
		writeError(w, err)
		return
	}
	reply, err := h.chat.Chat(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return &apperr.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps error kinds to status codes. Unclassified errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, err error) {
	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		ce *apperr.ConfigurationError
		de *apperr.DeliveryError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorBody{Error: nf.Error()})
	case errors.As(err, &ce):
		slog.Error("missing configuration", "setting", ce.Setting)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: ce.Error()})
	case errors.As(err, &de):
		slog.Warn("upstream rejected request", "status", de.StatusCode, "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "upstream error"})
	default:
		slog.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response failed", "status", status, "err", err)
	}
}
