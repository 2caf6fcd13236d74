package api

import (
	"context"

	"github.com/shawn/tankwatch/internal/dispatch"
	"github.com/shawn/tankwatch/internal/tank"
	"github.com/shawn/tankwatch/internal/threshold"
	"github.com/shawn/tankwatch/internal/webhook"
)

// MockClient for testing
type MockClient struct {
	CreateWebhookFunc        func(ctx context.Context, in webhook.Input) (*webhook.Registration, error)
	ListWebhooksFunc         func(ctx context.Context) ([]webhook.Registration, error)
	GetWebhookFunc           func(ctx context.Context, id string) (*webhook.Registration, error)
	UpdateWebhookFunc        func(ctx context.Context, id string, p webhook.Patch) (*webhook.Registration, error)
	DisableWebhookFunc       func(ctx context.Context, id string) (*webhook.Registration, error)
	EnableWebhookFunc        func(ctx context.Context, id string) (*webhook.Registration, error)
	GetThresholdsFunc        func(ctx context.Context) (*threshold.Config, error)
	SetThresholdsFunc        func(ctx context.Context, cfg threshold.Config) (*threshold.Config, error)
	SendInspectionAlertsFunc func(ctx context.Context, readings []tank.Reading) (*dispatch.Report, error)
}

func (m *MockClient) CreateWebhook(ctx context.Context, in webhook.Input) (*webhook.Registration, error) {
	if m.CreateWebhookFunc != nil {
		return m.CreateWebhookFunc(ctx, in)
	}
	return nil, nil
}

func (m *MockClient) ListWebhooks(ctx context.Context) ([]webhook.Registration, error) {
	if m.ListWebhooksFunc != nil {
		return m.ListWebhooksFunc(ctx)
	}
	return nil, nil
}

func (m *MockClient) GetWebhook(ctx context.Context, id string) (*webhook.Registration, error) {
	if m.GetWebhookFunc != nil {
		return m.GetWebhookFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockClient) UpdateWebhook(ctx context.Context, id string, p webhook.Patch) (*webhook.Registration, error) {
	if m.UpdateWebhookFunc != nil {
		return m.UpdateWebhookFunc(ctx, id, p)
	}
	return nil, nil
}

func (m *MockClient) DisableWebhook(ctx context.Context, id string) (*webhook.Registration, error) {
	if m.DisableWebhookFunc != nil {
		return m.DisableWebhookFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockClient) EnableWebhook(ctx context.Context, id string) (*webhook.Registration, error) {
	if m.EnableWebhookFunc != nil {
		return m.EnableWebhookFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockClient) GetThresholds(ctx context.Context) (*threshold.Config, error) {
	if m.GetThresholdsFunc != nil {
		return m.GetThresholdsFunc(ctx)
	}
	return nil, nil
}

func (m *MockClient) SetThresholds(ctx context.Context, cfg threshold.Config) (*threshold.Config, error) {
	if m.SetThresholdsFunc != nil {
		return m.SetThresholdsFunc(ctx, cfg)
	}
	return nil, nil
}

func (m *MockClient) SendInspectionAlerts(ctx context.Context, readings []tank.Reading) (*dispatch.Report, error) {
	if m.SendInspectionAlertsFunc != nil {
		return m.SendInspectionAlertsFunc(ctx, readings)
	}
	return nil, nil
}
