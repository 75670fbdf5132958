package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/booking"
	"github.com/example/rental-checkout/internal/events"
	"github.com/example/rental-checkout/internal/handoff"
	"github.com/example/rental-checkout/internal/inflight"
	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/observability"
)

const (
	PaymentFallback = "We could not start your payment, please try again"
	FailedMessage   = "This booking cannot be completed. Please start again from the quote page."
)

type BookingCreator interface {
	Create(ctx context.Context, draft models.BookingDraft) (string, error)
}

type PaymentInitiator interface {
	Initiate(ctx context.Context, gateway models.Gateway, bookingID string) (string, error)
	Supports(gateway models.Gateway) bool
}

// Notifier pushes state changes to the tab that owns the attempt.
type Notifier interface {
	Notify(session string, v any) error
}

// DraftDiscarder drops the quoting page's itinerary once it has been booked.
type DraftDiscarder interface {
	Discard(ctx context.Context, session string) error
}

// StateChange is what the tab receives on every transition.
type StateChange struct {
	Type        string `json:"type"`
	Session     string `json:"session"`
	From        State  `json:"from"`
	To          State  `json:"to"`
	BookingID   string `json:"bookingId,omitempty"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Form is the rider's contact input for one attempt.
type Form struct {
	RideFor   models.RideFor     `json:"rideFor"`
	Gateway   models.Gateway     `json:"gateway"`
	Contact   models.ContactInfo `json:"contact"`
	Recipient models.ContactInfo `json:"recipient"`
}

// Orchestrator drives one booking attempt per tab session through
// Entering, ValidatingContact, AwaitingBookingCreation, AwaitingPayment and
// Redirected. All rider-facing failures leave the attempt in a retryable
// state except entry-guard and draft assembly failures.
type Orchestrator struct {
	Bundles  *handoff.Bundles
	Recall   *handoff.Recall
	Attempts *Attempts
	Drafts   DraftDiscarder
	Bookings BookingCreator
	Payments PaymentInitiator
	Events   events.Publisher
	Notifier Notifier
	Guard    *inflight.Guard
	Logger   *slog.Logger

	now func() time.Time
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Handoff stores the bundle for the tab and forgets any earlier attempt so
// the next Enter starts fresh.
func (o *Orchestrator) Handoff(ctx context.Context, session string, b models.HandoffBundle) error {
	if err := o.Bundles.Write(ctx, session, b); err != nil {
		return err
	}
	return o.Attempts.Clear(ctx, session)
}

// Enter is the checkout page load. A live attempt is resumed as is;
// otherwise the handoff bundle is read once and a new attempt begins.
func (o *Orchestrator) Enter(ctx context.Context, session string, who models.Identity) (Attempt, error) {
	if session == "" {
		return Attempt{}, apperr.ValidationError{Field: "session", Msg: "missing tab session"}
	}
	a, err := o.Attempts.Load(ctx, session)
	switch {
	case err == nil && !a.State.IsTerminal() && a.State != StateEntering:
		lockIdentity(&a, who)
		return a, nil
	case err != nil && !errors.Is(err, ErrNoAttempt):
		return Attempt{}, err
	}

	a = Attempt{SessionID: session, State: StateEntering, RideFor: models.RideForMyself}
	bundle, err := o.Bundles.Read(ctx, session)
	if err != nil {
		if apperr.IsEntryGuard(err) {
			a.LastError = apperr.UserMessage(err, "")
			if terr := o.transition(ctx, &a, StateInvalidEntry); terr != nil {
				return a, terr
			}
		}
		return a, err
	}
	a.Bundle = &bundle
	lockIdentity(&a, who)
	if err := o.transition(ctx, &a, StateValidatingContact); err != nil {
		return a, err
	}
	o.publish(ctx, events.Event{
		Type:          events.CheckoutEntered,
		SessionID:     session,
		CalculationID: bundle.Quote.CalculationID,
		Amount:        bundle.Quote.Total(),
		State:         a.State.String(),
	})
	return a, nil
}

// lockIdentity makes the profile authoritative for signed-in riders. Only
// the fields the profile actually has are locked; the rest stay editable.
func lockIdentity(a *Attempt, who models.Identity) {
	a.Locked = false
	a.LockedFields = nil
	if !who.Authenticated {
		return
	}
	p := who.Profile
	for _, f := range []struct {
		name string
		val  string
		dst  *string
	}{
		{"fullName", p.FullName, &a.Contact.FullName},
		{"email", p.Email, &a.Contact.Email},
		{"phoneNumber", p.PhoneNumber, &a.Contact.PhoneNumber},
	} {
		if strings.TrimSpace(f.val) == "" {
			continue
		}
		*f.dst = f.val
		a.LockedFields = append(a.LockedFields, f.name)
	}
	a.Locked = len(a.LockedFields) > 0
}

// UpdateContact records form edits while contact entry is open. Anonymous
// riders' edits are also written to the recall scope. Edits are refused with
// ErrInFlight while a submit is running for the tab.
func (o *Orchestrator) UpdateContact(ctx context.Context, session, visitorID string, who models.Identity, f Form) (Attempt, error) {
	release, err := o.Guard.Acquire(session, inflight.Book)
	if err != nil {
		return Attempt{SessionID: session}, err
	}
	defer release()

	a, err := o.live(ctx, session, StateValidatingContact)
	if err != nil {
		return a, err
	}
	if err := applyForm(&a, f, who); err != nil {
		return a, err
	}
	a.UpdatedAt = o.clock()
	if err := o.Attempts.Save(ctx, a); err != nil {
		return a, err
	}
	if err := o.Recall.Remember(ctx, who, visitorID, a.Contact); err != nil {
		o.log().Warn("contact recall write failed", "session", session, "error", err)
	}
	return a, nil
}

// ApplyRecall copies the remembered contact into the attempt. It is only
// called on the rider's explicit confirmation.
func (o *Orchestrator) ApplyRecall(ctx context.Context, session, visitorID string, who models.Identity) (Attempt, bool, error) {
	release, err := o.Guard.Acquire(session, inflight.Book)
	if err != nil {
		return Attempt{SessionID: session}, false, err
	}
	defer release()

	a, err := o.live(ctx, session, StateValidatingContact)
	if err != nil {
		return a, false, err
	}
	c, ok, err := o.Recall.Offer(ctx, who, visitorID)
	if err != nil || !ok {
		return a, false, err
	}
	a.Contact = c
	a.Errors = nil
	a.UpdatedAt = o.clock()
	if err := o.Attempts.Save(ctx, a); err != nil {
		return a, false, err
	}
	return a, true, nil
}

// Submit validates the form, creates the booking and starts payment on the
// chosen gateway. On success the attempt is Redirected and RedirectURL is
// set.
func (o *Orchestrator) Submit(ctx context.Context, session, visitorID string, who models.Identity, f Form) (Attempt, error) {
	release, err := o.Guard.Acquire(session, inflight.Book)
	if err != nil {
		return Attempt{SessionID: session}, err
	}
	defer release()

	a, err := o.live(ctx, session, StateValidatingContact)
	if err != nil {
		return a, err
	}
	if err := applyForm(&a, f, who); err != nil {
		return a, err
	}
	if err := o.Recall.Remember(ctx, who, visitorID, a.Contact); err != nil {
		o.log().Warn("contact recall write failed", "session", session, "error", err)
	}
	if err := o.validate(a); err != nil {
		var verrs apperr.ValidationErrors
		if errors.As(err, &verrs) {
			a.Errors = verrs
		}
		a.UpdatedAt = o.clock()
		if serr := o.Attempts.Save(ctx, a); serr != nil {
			return a, serr
		}
		return a, err
	}
	a.Errors = nil
	a.LastError = ""

	if a.Bundle == nil {
		return a, apperr.EntryGuardError{Reason: "No booking in progress. Please start from the quote page."}
	}
	draft, err := BuildDraft(*a.Bundle, a.RideFor, a.Contact, a.EffectiveRecipient(), who)
	if err != nil {
		return o.fail(ctx, a, err)
	}
	if err := o.transition(ctx, &a, StateAwaitingBooking); err != nil {
		return a, err
	}

	id, err := o.Bookings.Create(ctx, draft)
	if err != nil {
		a.LastError = apperr.UserMessage(err, booking.FallbackMessage)
		o.log().Warn("booking creation failed", "session", session, "error", err)
		o.publish(ctx, events.Event{Type: events.BookingFailed, SessionID: session, CalculationID: draft.CalculationID, Message: a.LastError})
		if terr := o.transition(ctx, &a, StateValidatingContact); terr != nil {
			return a, terr
		}
		return a, err
	}
	a.BookingID = id
	if err := o.transition(ctx, &a, StateAwaitingPayment); err != nil {
		return a, err
	}
	o.publish(ctx, events.Event{Type: events.BookingCreated, SessionID: session, BookingID: id, CalculationID: draft.CalculationID, Amount: a.Bundle.Quote.Total()})
	if o.Drafts != nil {
		if err := o.Drafts.Discard(ctx, session); err != nil {
			o.log().Warn("discard itinerary draft failed", "session", session, "error", err)
		}
	}
	return o.pay(ctx, a)
}

// RetryPayment starts payment again for the booking already created, on the
// gateway chosen at submit time.
func (o *Orchestrator) RetryPayment(ctx context.Context, session string) (Attempt, error) {
	release, err := o.Guard.Acquire(session, inflight.Pay)
	if err != nil {
		return Attempt{SessionID: session}, err
	}
	defer release()

	a, err := o.live(ctx, session, StateAwaitingPayment)
	if err != nil {
		return a, err
	}
	return o.pay(ctx, a)
}

func (o *Orchestrator) pay(ctx context.Context, a Attempt) (Attempt, error) {
	if a.BookingID == "" {
		return a, fmt.Errorf("%w: no booking to pay for", apperr.IllegalTransitionError)
	}
	url, err := o.Payments.Initiate(ctx, a.Gateway, a.BookingID)
	if err != nil {
		a.LastError = apperr.UserMessage(err, PaymentFallback)
		a.UpdatedAt = o.clock()
		o.log().Warn("payment initiation failed", "session", a.SessionID, "booking_id", a.BookingID, "gateway", a.Gateway, "error", err)
		o.publish(ctx, events.Event{Type: events.PaymentFailed, SessionID: a.SessionID, BookingID: a.BookingID, Gateway: string(a.Gateway), Message: a.LastError})
		if serr := o.Attempts.Save(ctx, a); serr != nil {
			return a, serr
		}
		o.notify(a, a.State, a.State)
		return a, err
	}
	var amount float64
	if a.Bundle != nil {
		amount = a.Bundle.Quote.Total()
	}
	a.RedirectURL = url
	a.LastError = ""
	a.Bundle = nil
	if err := o.Bundles.Clear(ctx, a.SessionID); err != nil {
		o.log().Warn("clear handoff bundle failed", "session", a.SessionID, "error", err)
	}
	if err := o.transition(ctx, &a, StateRedirected); err != nil {
		return a, err
	}
	o.publish(ctx, events.Event{Type: events.PaymentInitiated, SessionID: a.SessionID, BookingID: a.BookingID, Gateway: string(a.Gateway), Amount: amount})
	return a, nil
}

// Restart abandons the attempt and its handoff bundle. The rider goes back
// to quoting.
func (o *Orchestrator) Restart(ctx context.Context, session string) error {
	if err := o.Bundles.Clear(ctx, session); err != nil {
		return err
	}
	if err := o.Attempts.Clear(ctx, session); err != nil {
		return err
	}
	o.log().Info("checkout restarted", "session", session)
	return nil
}

// live loads the attempt and checks it is in want.
func (o *Orchestrator) live(ctx context.Context, session string, want State) (Attempt, error) {
	a, err := o.Attempts.Load(ctx, session)
	if errors.Is(err, ErrNoAttempt) {
		return Attempt{SessionID: session}, apperr.EntryGuardError{Reason: "No booking in progress. Please start from the quote page.", Err: err}
	}
	if err != nil {
		return a, err
	}
	if a.State != want {
		return a, fmt.Errorf("%w: attempt is %s, not %s", apperr.IllegalTransitionError, a.State, want)
	}
	return a, nil
}

func (o *Orchestrator) validate(a Attempt) error {
	errs := apperr.ValidationErrors{}
	if err := ValidateContact(a.RideFor, a.Contact, a.Recipient); err != nil {
		errs = append(errs, err.(apperr.ValidationErrors)...)
	}
	if a.Gateway == "" || !o.Payments.Supports(a.Gateway) {
		errs = append(errs, apperr.ValidationError{Field: "gateway", Msg: MsgGatewayRequired})
	}
	return errs.OrNil()
}

func applyForm(a *Attempt, f Form, who models.Identity) error {
	rideFor, ok := models.ParseRideFor(string(f.RideFor))
	if !ok {
		return apperr.ValidationError{Field: "rideFor", Msg: "rideFor must be myself or others"}
	}
	if f.Gateway != "" {
		gw, ok := models.ParseGateway(string(f.Gateway))
		if !ok {
			return apperr.ValidationError{Field: "gateway", Msg: MsgGatewayRequired}
		}
		a.Gateway = gw
	}
	a.RideFor = rideFor
	a.Contact = f.Contact
	if rideFor == models.RideForOthers {
		a.Recipient = f.Recipient
	} else {
		a.Recipient = models.ContactInfo{}
	}
	lockIdentity(a, who)
	return nil
}

// fail ends the attempt for a problem the rider cannot fix here. The bundle
// that caused it is cleared with it.
func (o *Orchestrator) fail(ctx context.Context, a Attempt, cause error) (Attempt, error) {
	if apperr.IsStaleQuote(cause) {
		a.LastError = cause.Error()
	} else {
		a.LastError = FailedMessage
	}
	o.log().Error("checkout attempt failed", "session", a.SessionID, "error", cause)
	a.Bundle = nil
	if err := o.Bundles.Clear(ctx, a.SessionID); err != nil {
		o.log().Warn("clear handoff bundle failed", "session", a.SessionID, "error", err)
	}
	if err := o.transition(ctx, &a, StateFailed); err != nil {
		return a, err
	}
	return a, cause
}

// transition moves a to next, persists it, and tells the tab.
func (o *Orchestrator) transition(ctx context.Context, a *Attempt, next State) error {
	from := a.State
	if !from.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", apperr.IllegalTransitionError, from, next)
	}
	a.State = next
	a.UpdatedAt = o.clock()
	if err := o.Attempts.Save(ctx, *a); err != nil {
		a.State = from
		return err
	}
	observability.StateTransitions.WithLabelValues(next.String()).Inc()
	o.log().Info("checkout transition", "session", a.SessionID, "from", from, "to", next, "booking_id", a.BookingID)
	o.notify(*a, from, next)
	return nil
}

func (o *Orchestrator) notify(a Attempt, from, to State) {
	if o.Notifier == nil {
		return
	}
	_ = o.Notifier.Notify(a.SessionID, StateChange{
		Type:        "checkout.state",
		Session:     a.SessionID,
		From:        from,
		To:          to,
		BookingID:   a.BookingID,
		RedirectURL: a.RedirectURL,
		Message:     a.LastError,
	})
}

func (o *Orchestrator) publish(ctx context.Context, e events.Event) {
	if o.Events == nil {
		return
	}
	e.At = o.clock()
	if err := o.Events.Publish(ctx, e); err != nil {
		o.log().Warn("publish event failed", "type", e.Type, "session", e.SessionID, "error", err)
	}
}
