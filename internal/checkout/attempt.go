package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/storage"
)

var ErrNoAttempt = errors.New("no checkout attempt")

// Attempt is one tab's checkout. Bundle is the handoff bundle as it was read
// on entry; later changes to the quoting draft do not reach it. It is dropped
// once the attempt reaches Redirected or Failed.
type Attempt struct {
	SessionID    string                  `json:"sessionId"`
	State        State                   `json:"state"`
	Bundle       *models.HandoffBundle   `json:"bundle,omitempty"`
	RideFor      models.RideFor          `json:"rideFor"`
	Gateway      models.Gateway          `json:"gateway,omitempty"`
	Contact      models.ContactInfo      `json:"contact"`
	Recipient    models.ContactInfo      `json:"recipient"`
	Locked       bool                    `json:"identityLocked"`
	// LockedFields names the contact fields taken from the rider's profile.
	LockedFields []string                `json:"lockedFields,omitempty"`
	BookingID    string                  `json:"bookingId,omitempty"`
	RedirectURL  string                  `json:"redirectUrl,omitempty"`
	LastError    string                  `json:"lastError,omitempty"`
	Errors       apperr.ValidationErrors `json:"errors,omitempty"`
	UpdatedAt    time.Time               `json:"updatedAt"`
}

// EffectiveRecipient is the recipient a booking would be made for.
func (a Attempt) EffectiveRecipient() models.ContactInfo {
	if a.RideFor == models.RideForOthers {
		return a.Recipient
	}
	return a.Contact
}

// Attempts persists attempts in the tab-session scope.
type Attempts struct {
	scope *storage.Scope
}

func NewAttempts(kv storage.KV, ttl time.Duration) *Attempts {
	return &Attempts{scope: storage.NewScope(kv, "attempt", ttl)}
}

func (s *Attempts) Load(ctx context.Context, session string) (Attempt, error) {
	var a Attempt
	err := s.scope.Read(ctx, session, &a)
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrCorrupt) {
		return Attempt{}, ErrNoAttempt
	}
	if err != nil {
		return Attempt{}, fmt.Errorf("load attempt: %w", err)
	}
	return a, nil
}

func (s *Attempts) Save(ctx context.Context, a Attempt) error {
	if err := s.scope.Write(ctx, a.SessionID, a); err != nil {
		return fmt.Errorf("save attempt: %w", err)
	}
	return nil
}

func (s *Attempts) Clear(ctx context.Context, session string) error {
	return s.scope.Clear(ctx, session)
}
