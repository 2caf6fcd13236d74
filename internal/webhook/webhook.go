// Package webhook defines webhook registrations and the per-integration
// rules they must satisfy.
//
// Each integration is a variant with one validation function. Register and
// Update both run Validate against the complete record, so a partial update
// can never leave a registration that would have been refused at creation.
package webhook

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shawn/tankwatch/internal/apperr"
)

// Integration is the payload dialect a webhook endpoint expects.
type Integration string

const (
	IntegrationGeneric   Integration = "generic"
	IntegrationSlingFlow Integration = "slingflow"
	IntegrationSophiaAI  Integration = "sophia_ai"
)

// EventType selects which dispatches a webhook receives.
type EventType string

const (
	EventInspectionAlert EventType = "inspection_alert"
	EventOrderPlaced     EventType = "order_placed"
	EventSophia          EventType = "sophia"
	EventSophiaAIOrder   EventType = "sophia_ai_order"
)

var eventTypes = map[EventType]bool{
	EventInspectionAlert: true,
	EventOrderPlaced:     true,
	EventSophia:          true,
	EventSophiaAIOrder:   true,
}

// Registration is a stored webhook endpoint.
type Registration struct {
	ID          string      `json:"id" dynamodbav:"id"`
	Name        string      `json:"name" dynamodbav:"name"`
	URL         string      `json:"url" dynamodbav:"url"`
	Integration Integration `json:"integration" dynamodbav:"integration"`
	EventType   EventType   `json:"eventType" dynamodbav:"event_type"`
	ContactIDs  []string    `json:"contactIds" dynamodbav:"contact_ids,omitempty"`
	Active      bool        `json:"active" dynamodbav:"active"`
	CreatedAt   time.Time   `json:"createdAt" dynamodbav:"created_at"`
	UpdatedAt   time.Time   `json:"updatedAt" dynamodbav:"updated_at"`
}

// Input is the body accepted when registering a webhook.
type Input struct {
	Name        string      `json:"name"`
	URL         string      `json:"url"`
	Integration Integration `json:"integration"`
	EventType   EventType   `json:"eventType"`
	ContactIDs  []string    `json:"contactIds,omitempty"`
	Active      *bool       `json:"active,omitempty"`
}

// Patch is a partial update; nil fields are left unchanged.
type Patch struct {
	Name        *string      `json:"name,omitempty"`
	URL         *string      `json:"url,omitempty"`
	Integration *Integration `json:"integration,omitempty"`
	EventType   *EventType   `json:"eventType,omitempty"`
	ContactIDs  *[]string    `json:"contactIds,omitempty"`
	Active      *bool        `json:"active,omitempty"`
}

// variant holds the rules for one integration.
type variant struct {
	validate func(Registration) error
}

var variants = map[Integration]variant{
	IntegrationGeneric: {validate: func(r Registration) error {
		return requireURL(r.URL)
	}},
	IntegrationSlingFlow: {validate: func(r Registration) error {
		if len(r.ContactIDs) == 0 {
			return apperr.Invalid("contactIds", "slingflow webhooks need at least one recipient contact")
		}
		for _, id := range r.ContactIDs {
			if strings.TrimSpace(id) == "" {
				return apperr.Invalid("contactIds", "contact ids must not be blank")
			}
		}
		// url is optional, the configured SlingFlow endpoint is used when empty
		if r.URL != "" {
			return requireURL(r.URL)
		}
		return nil
	}},
	IntegrationSophiaAI: {validate: func(r Registration) error {
		if strings.TrimSpace(r.URL) == "" {
			return apperr.Invalid("url", "sophia_ai webhooks need the Sophia AI endpoint url")
		}
		return requireURL(r.URL)
	}},
}

// Integrations lists the known integrations in a stable order.
func Integrations() []Integration {
	out := make([]Integration, 0, len(variants))
	for k := range variants {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Known reports whether i is a registered integration.
func (i Integration) Known() bool {
	_, ok := variants[i]
	return ok
}

// Known reports whether e is a supported event type.
func (e EventType) Known() bool {
	return eventTypes[e]
}

// Validate checks the common fields and then the integration's own rules.
func Validate(r Registration) error {
	if strings.TrimSpace(r.Name) == "" {
		return apperr.Invalid("name", "is required")
	}
	v, ok := variants[r.Integration]
	if !ok {
		return apperr.Invalid("integration", "unknown integration %q (expected one of %v)", r.Integration, Integrations())
	}
	if !r.EventType.Known() {
		return apperr.Invalid("eventType", "unknown event type %q", r.EventType)
	}
	return v.validate(r)
}

// NewRegistration builds an unsaved registration from in. Integration
// defaults to generic and event type to inspection_alert. New
// registrations are active unless the caller says otherwise.
func NewRegistration(in Input) Registration {
	r := Registration{
		Name:        strings.TrimSpace(in.Name),
		URL:         strings.TrimSpace(in.URL),
		Integration: in.Integration,
		EventType:   in.EventType,
		ContactIDs:  cloneIDs(in.ContactIDs),
		Active:      true,
	}
	if r.Integration == "" {
		r.Integration = IntegrationGeneric
	}
	if r.EventType == "" {
		r.EventType = EventInspectionAlert
	}
	if in.Active != nil {
		r.Active = *in.Active
	}
	return r
}

// Apply returns r with the non-nil fields of p merged in.
func (p Patch) Apply(r Registration) Registration {
	out := r
	out.ContactIDs = cloneIDs(r.ContactIDs)
	if p.Name != nil {
		out.Name = strings.TrimSpace(*p.Name)
	}
	if p.URL != nil {
		out.URL = strings.TrimSpace(*p.URL)
	}
	if p.Integration != nil {
		out.Integration = *p.Integration
	}
	if p.EventType != nil {
		out.EventType = *p.EventType
	}
	if p.ContactIDs != nil {
		out.ContactIDs = cloneIDs(*p.ContactIDs)
	}
	if p.Active != nil {
		out.Active = *p.Active
	}
	return out
}

// Clone returns a deep copy of r.
func (r Registration) Clone() Registration {
	r.ContactIDs = cloneIDs(r.ContactIDs)
	return r
}

func requireURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return apperr.Invalid("url", "is required")
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return apperr.Invalid("url", "must be an absolute http(s) url, got %q", raw)
	}
	return nil
}

func cloneIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
