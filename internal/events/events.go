package events

import (
	"context"
	"time"
)

type Type string

const (
	QuoteEstimated   Type = "quote.estimated"
	CheckoutEntered  Type = "checkout.entered"
	BookingCreated   Type = "booking.created"
	BookingFailed    Type = "booking.failed"
	PaymentInitiated Type = "payment.initiated"
	PaymentFailed    Type = "payment.failed"
)

// Event is one step of a booking attempt's lifecycle.
type Event struct {
	Type          Type      `json:"type"`
	SessionID     string    `json:"session_id"`
	BookingID     string    `json:"booking_id,omitempty"`
	CalculationID string    `json:"calculation_id,omitempty"`
	Gateway       string    `json:"gateway,omitempty"`
	State         string    `json:"state,omitempty"`
	Amount        float64   `json:"amount,omitempty"`
	Message       string    `json:"message,omitempty"`
	At            time.Time `json:"at"`
}

// Key partitions events so one attempt's events stay ordered.
func (e Event) Key() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.BookingID
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
