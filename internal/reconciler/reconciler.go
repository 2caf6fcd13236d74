package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shawn/tankwatch/internal/contacts"
	"github.com/shawn/tankwatch/internal/lock"
	"github.com/shawn/tankwatch/internal/registry"
)

const lockName = "reconciler"

// Reconciler periodically checks for drift between the webhook registry and
// the contact directory. An active registration that references a contact
// which no longer exists is disabled; re-enabling it later goes through the
// registry's contact re-check.
type Reconciler struct {
	reg      *registry.Registry
	dir      contacts.Directory
	locker   lock.Locker
	interval time.Duration
}

// New creates a new Reconciler. locker may be nil for a single replica.
func New(reg *registry.Registry, dir contacts.Directory, locker lock.Locker, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reconciler{reg: reg, dir: dir, locker: locker, interval: interval}
}

// Run starts the reconciliation loop. It blocks until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	slog.Info("reconciler: starting", "interval", r.interval)

	r.reconcile(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconciler: shutting down")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile performs a single pass and returns the ids it disabled.
func (r *Reconciler) reconcile(ctx context.Context) []string {
	if r.locker != nil {
		// a completed pass leaves the lock to expire so other replicas skip this interval
		ok, err := r.locker.Acquire(ctx, lockName, r.interval/2)
		if err != nil {
			slog.Error("reconciler: lock failed", "err", err)
			return nil
		}
		if !ok {
			slog.Debug("reconciler: another replica holds the lock")
			return nil
		}
	}

	hooks, err := r.reg.List(ctx)
	if err != nil {
		slog.Error("reconciler: failed to list webhooks", "err", err)
		// nothing was checked; let another replica retry on its next tick
		r.release(ctx)
		return nil
	}

	var disabled []string
	for _, h := range hooks {
		if ctx.Err() != nil {
			r.release(ctx)
			return disabled
		}
		if !h.Active || len(h.ContactIDs) == 0 {
			continue
		}
		_, err := r.dir.Resolve(ctx, h.ContactIDs)
		var unknown *contacts.UnknownError
		if err == nil {
			continue
		}
		if !errors.As(err, &unknown) {
			slog.Error("reconciler: failed to resolve contacts", "webhook", h.ID, "err", err)
			continue
		}

		slog.Warn("reconciler: contacts missing, disabling webhook",
			"webhook", h.ID,
			"name", h.Name,
			"missing", unknown.IDs,
		)
		if _, err := r.reg.Disable(ctx, h.ID); err != nil {
			slog.Error("reconciler: failed to disable webhook", "webhook", h.ID, "err", err)
			continue
		}
		disabled = append(disabled, h.ID)
	}
	return disabled
}

func (r *Reconciler) release(ctx context.Context) {
	if r.locker == nil {
		return
	}
	if err := r.locker.Release(context.WithoutCancel(ctx), lockName); err != nil {
		slog.Warn("reconciler: lock release failed", "err", err)
	}
}
