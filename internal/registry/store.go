package registry

import (
	"context"

	"github.com/shawn/tankwatch/internal/webhook"
)

// Store persists webhook registrations.
type Store interface {
	// Get returns nil, nil when id does not exist.
	Get(ctx context.Context, id string) (*webhook.Registration, error)
	// Create fails with *ConditionalCheckFailed if id is taken.
	Create(ctx context.Context, r *webhook.Registration) error
	// Put replaces an existing record; *ConditionalCheckFailed if it is gone.
	Put(ctx context.Context, r *webhook.Registration) error
	// List returns every registration in insertion order.
	List(ctx context.Context) ([]*webhook.Registration, error)
}

// ConditionalCheckFailed is returned when a conditional write fails
type ConditionalCheckFailed struct {
	ID     string
	Exists bool
}

func (e *ConditionalCheckFailed) Error() string {
	if e.Exists {
		return "webhook already exists: " + e.ID
	}
	return "webhook does not exist: " + e.ID
}
