// Package registry stores webhook registrations and enforces their
// lifecycle: created -> active <-> disabled. Registrations are never hard
// deleted here, so dispatch results stay attributable.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shawn/tankwatch/internal/apperr"
	"github.com/shawn/tankwatch/internal/contacts"
	"github.com/shawn/tankwatch/internal/webhook"
)

const idPrefix = "wh-"

// Registry is the validated CRUD surface over a Store.
type Registry struct {
	store    Store
	contacts contacts.Directory
	nowFn    func() time.Time
	newID    func() string
}

// New creates a Registry. dir is consulted whenever a registration is
// (re-)activated.
func New(store Store, dir contacts.Directory) *Registry {
	return &Registry{
		store:    store,
		contacts: dir,
		nowFn:    func() time.Time { return time.Now().UTC() },
		newID:    func() string { return idPrefix + uuid.NewString() },
	}
}

// Register validates in and persists it. New registrations are active
// unless in.Active is explicitly false.
func (r *Registry) Register(ctx context.Context, in webhook.Input) (*webhook.Registration, error) {
	rec := webhook.NewRegistration(in)
	if err := webhook.Validate(rec); err != nil {
		return nil, err
	}
	now := r.nowFn()
	rec.ID = r.newID()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if err := r.store.Create(ctx, &rec); err != nil {
		return nil, fmt.Errorf("create webhook: %w", err)
	}
	slog.Info("webhook registered", "id", rec.ID, "integration", rec.Integration, "event_type", rec.EventType)
	return &rec, nil
}

// Get returns the registration or a NotFoundError.
func (r *Registry) Get(ctx context.Context, id string) (*webhook.Registration, error) {
	rec, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get webhook %s: %w", id, err)
	}
	if rec == nil {
		return nil, &apperr.NotFoundError{Kind: "webhook", ID: id}
	}
	return rec, nil
}

// Update merges p onto the stored record and validates the merged result.
// Turning an inactive registration active runs the same checks as Enable.
func (r *Registry) Update(ctx context.Context, id string, p webhook.Patch) (*webhook.Registration, error) {
	cur, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	merged := p.Apply(*cur)
	if err := webhook.Validate(merged); err != nil {
		return nil, err
	}
	if merged.Active && !cur.Active {
		if err := r.checkContacts(ctx, merged); err != nil {
			return nil, err
		}
	}
	merged.UpdatedAt = r.nowFn()
	if err := r.save(ctx, &merged); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Disable marks the registration inactive. Disabling an inactive
// registration is a no-op.
func (r *Registry) Disable(ctx context.Context, id string) (*webhook.Registration, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Active {
		return rec, nil
	}
	rec.Active = false
	rec.UpdatedAt = r.nowFn()
	if err := r.save(ctx, rec); err != nil {
		return nil, err
	}
	slog.Info("webhook disabled", "id", id)
	return rec, nil
}

// Enable re-validates the registration, including that every referenced
// contact still exists, before marking it active.
func (r *Registry) Enable(ctx context.Context, id string) (*webhook.Registration, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := webhook.Validate(*rec); err != nil {
		return nil, err
	}
	if err := r.checkContacts(ctx, *rec); err != nil {
		return nil, err
	}
	if rec.Active {
		return rec, nil
	}
	rec.Active = true
	rec.UpdatedAt = r.nowFn()
	if err := r.save(ctx, rec); err != nil {
		return nil, err
	}
	slog.Info("webhook enabled", "id", id)
	return rec, nil
}

// List returns every registration in insertion order.
func (r *Registry) List(ctx context.Context) ([]*webhook.Registration, error) {
	recs, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list webhooks: %w", err)
	}
	return recs, nil
}

// ListActiveFor returns the active registrations subscribed to eventType,
// in insertion order.
func (r *Registry) ListActiveFor(ctx context.Context, eventType webhook.EventType) ([]*webhook.Registration, error) {
	recs, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*webhook.Registration, 0, len(recs))
	for _, rec := range recs {
		if rec.Active && rec.EventType == eventType {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *Registry) checkContacts(ctx context.Context, rec webhook.Registration) error {
	if len(rec.ContactIDs) == 0 || r.contacts == nil {
		return nil
	}
	_, err := r.contacts.Resolve(ctx, rec.ContactIDs)
	var unknown *contacts.UnknownError
	if errors.As(err, &unknown) {
		return apperr.Invalid("contactIds", "%s no longer exist", unknown.Error())
	}
	if err != nil {
		return fmt.Errorf("resolve contacts for %s: %w", rec.ID, err)
	}
	return nil
}

func (r *Registry) save(ctx context.Context, rec *webhook.Registration) error {
	err := r.store.Put(ctx, rec)
	var ccf *ConditionalCheckFailed
	if errors.As(err, &ccf) {
		return &apperr.NotFoundError{Kind: "webhook", ID: rec.ID}
	}
	if err != nil {
		return fmt.Errorf("save webhook %s: %w", rec.ID, err)
	}
	return nil
}
