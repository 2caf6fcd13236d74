package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/shawn/tankwatch/internal/apperr"
	"github.com/shawn/tankwatch/internal/contacts"
	"github.com/shawn/tankwatch/internal/tank"
	"github.com/shawn/tankwatch/internal/webhook"
)

// payloadFunc returns the target url and the JSON body for one webhook.
type payloadFunc func(ctx context.Context, d *Dispatcher, h *webhook.Registration, tanks []tank.Reading) (string, any, error)

var payloads = map[webhook.Integration]payloadFunc{
	webhook.IntegrationGeneric:   genericPayload,
	webhook.IntegrationSlingFlow: slingflowPayload,
	webhook.IntegrationSophiaAI:  sophiaPayload,
}

// generic endpoints receive the tank array as submitted.
func genericPayload(_ context.Context, _ *Dispatcher, h *webhook.Registration, tanks []tank.Reading) (string, any, error) {
	return h.URL, tanks, nil
}

type slingflowBody struct {
	Event      string             `json:"event"`
	Message    string             `json:"message"`
	Tanks      []tank.Reading     `json:"tanks"`
	Recipients []contacts.Contact `json:"recipients"`
	ContactIDs []string           `json:"contactIds"`
}

func slingflowPayload(ctx context.Context, d *Dispatcher, h *webhook.Registration, tanks []tank.Reading) (string, any, error) {
	target := h.URL
	if target == "" {
		target = d.cfg.SlingFlowURL
	}
	if target == "" {
		return "", nil, &apperr.ConfigurationError{Setting: "integrations.slingflow.url"}
	}
	var recipients []contacts.Contact
	if d.contacts != nil {
		var err error
		recipients, err = d.contacts.Resolve(ctx, h.ContactIDs)
		if err != nil {
			return "", nil, fmt.Errorf("resolve recipients: %w", err)
		}
	}
	if recipients == nil {
		recipients = []contacts.Contact{}
	}
	return target, slingflowBody{
		Event:      string(webhook.EventInspectionAlert),
		Message:    alertText(tanks),
		Tanks:      tanks,
		Recipients: recipients,
		ContactIDs: h.ContactIDs,
	}, nil
}

type sophiaBody struct {
	Event   string         `json:"event"`
	Message string         `json:"message"`
	Tanks   []tank.Reading `json:"tanks"`
	Context sophiaContext  `json:"context"`
}

type sophiaContext struct {
	Source         string        `json:"source"`
	ConversationID string        `json:"conversationId"`
	Language       string        `json:"language"`
	Summary        sophiaSummary `json:"summary"`
}

type sophiaSummary struct {
	TanksWithWater int      `json:"tanksWithWater"`
	TotalWater     float64  `json:"totalWater"`
	Stations       []string `json:"stations"`
}

func sophiaPayload(_ context.Context, _ *Dispatcher, h *webhook.Registration, tanks []tank.Reading) (string, any, error) {
	var total float64
	var stations []string
	seen := make(map[string]bool)
	for _, t := range tanks {
		total += t.WaterAmount
		if t.StationName != "" && !seen[t.StationName] {
			seen[t.StationName] = true
			stations = append(stations, t.StationName)
		}
	}
	if stations == nil {
		stations = []string{}
	}
	return h.URL, sophiaBody{
		Event:   string(webhook.EventInspectionAlert),
		Message: alertText(tanks),
		Tanks:   tanks,
		Context: sophiaContext{
			Source:         "tankwatch",
			ConversationID: "inspection-" + h.ID,
			Language:       "pt-BR",
			Summary: sophiaSummary{
				TanksWithWater: len(tanks),
				TotalWater:     total,
				Stations:       stations,
			},
		},
	}, nil
}

// alertText is the human readable summary sent to messaging integrations.
func alertText(tanks []tank.Reading) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alerta de inspeção: %d tanque(s) com água detectada", len(tanks))
	for _, t := range tanks {
		b.WriteString("\n- ")
		if t.StationName != "" {
			b.WriteString(t.StationName + " / ")
		}
		fmt.Fprintf(&b, "tanque %s", t.TankID)
		if t.ProductName != "" {
			fmt.Fprintf(&b, " (%s)", t.ProductName)
		}
		fmt.Fprintf(&b, ": %g de água", t.WaterAmount)
	}
	return b.String()
}
