package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/itinerary"
	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/observability"
	"github.com/example/rental-checkout/internal/storage"
)

// Bundles is the short-lived booking-attempt scope: one bundle per tab
// session, written by the quoting step and read by checkout.
type Bundles struct {
	scope *storage.Scope
}

func NewBundles(kv storage.KV, ttl time.Duration) *Bundles {
	return &Bundles{scope: storage.NewScope(kv, "handoff", ttl)}
}

func (b *Bundles) Write(ctx context.Context, session string, bundle models.HandoffBundle) error {
	if err := b.scope.Write(ctx, session, bundle); err != nil {
		return fmt.Errorf("write handoff bundle: %w", err)
	}
	return nil
}

// Read returns the bundle or an EntryGuardError when it is absent, does not
// decode, or is internally inconsistent. Unusable bundles are cleared.
func (b *Bundles) Read(ctx context.Context, session string) (models.HandoffBundle, error) {
	var bundle models.HandoffBundle
	err := b.scope.Read(ctx, session, &bundle)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		observability.EntryGuardTotal.Inc()
		return bundle, apperr.EntryGuardError{Reason: "No booking in progress. Please start from the quote page.", Err: err}
	case errors.Is(err, storage.ErrCorrupt):
		observability.EntryGuardTotal.Inc()
		_ = b.scope.Clear(ctx, session)
		return bundle, apperr.EntryGuardError{Reason: "Your booking details could not be read. Please start again from the quote page.", Err: err}
	default:
		return bundle, fmt.Errorf("read handoff bundle: %w", err)
	}
	if reason := check(bundle); reason != "" {
		observability.EntryGuardTotal.Inc()
		_ = b.scope.Clear(ctx, session)
		return models.HandoffBundle{}, apperr.EntryGuardError{Reason: reason}
	}
	return bundle, nil
}

func check(b models.HandoffBundle) string {
	if len(b.Itinerary.Segments) == 0 {
		return "Your booking has no trips. Please start again from the quote page."
	}
	if b.Quote.Fingerprint != itinerary.Fingerprint(b.Itinerary) {
		return "Your price quote no longer matches your trip. Please start again from the quote page."
	}
	return ""
}

func (b *Bundles) Clear(ctx context.Context, session string) error {
	return b.scope.Clear(ctx, session)
}
