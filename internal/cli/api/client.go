// Package api is the tankctl client for the tankwatch HTTP API.
package api

import (
	"context"

	"github.com/shawn/tankwatch/internal/dispatch"
	"github.com/shawn/tankwatch/internal/tank"
	"github.com/shawn/tankwatch/internal/threshold"
	"github.com/shawn/tankwatch/internal/webhook"
)

// Client is the interface for interacting with the tankwatch API
type Client interface {
	CreateWebhook(ctx context.Context, in webhook.Input) (*webhook.Registration, error)
	ListWebhooks(ctx context.Context) ([]webhook.Registration, error)
	GetWebhook(ctx context.Context, id string) (*webhook.Registration, error)
	UpdateWebhook(ctx context.Context, id string, p webhook.Patch) (*webhook.Registration, error)
	DisableWebhook(ctx context.Context, id string) (*webhook.Registration, error)
	EnableWebhook(ctx context.Context, id string) (*webhook.Registration, error)

	GetThresholds(ctx context.Context) (*threshold.Config, error)
	SetThresholds(ctx context.Context, cfg threshold.Config) (*threshold.Config, error)

	SendInspectionAlerts(ctx context.Context, readings []tank.Reading) (*dispatch.Report, error)
}
