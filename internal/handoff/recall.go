package handoff

import (
	"context"
	"errors"
	"time"

	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/storage"
)

// Recall is the long-lived contact scope for anonymous visitors. It is never
// read or written for authenticated riders.
type Recall struct {
	store storage.ContactStore
	ttl   time.Duration
	now   func() time.Time
}

func NewRecall(store storage.ContactStore, ttl time.Duration) *Recall {
	return &Recall{store: store, ttl: ttl, now: time.Now}
}

// Remember stores c for visitorID, refreshing the expiry.
func (r *Recall) Remember(ctx context.Context, who models.Identity, visitorID string, c models.ContactInfo) error {
	if who.Authenticated || visitorID == "" || c.IsZero() {
		return nil
	}
	return r.store.SaveContact(ctx, visitorID, c, r.now().Add(r.ttl))
}

// Offer returns the remembered contact, if any. The caller decides whether
// to apply it; nothing here applies it.
func (r *Recall) Offer(ctx context.Context, who models.Identity, visitorID string) (models.ContactInfo, bool, error) {
	if who.Authenticated || visitorID == "" {
		return models.ContactInfo{}, false, nil
	}
	c, err := r.store.LoadContact(ctx, visitorID)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorrupt) {
		return models.ContactInfo{}, false, nil
	}
	if err != nil {
		return models.ContactInfo{}, false, err
	}
	return c, !c.IsZero(), nil
}

func (r *Recall) Forget(ctx context.Context, visitorID string) error {
	if visitorID == "" {
		return nil
	}
	err := r.store.DeleteContact(ctx, visitorID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}
