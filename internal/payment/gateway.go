package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/observability"
)

type Poster interface {
	PostJSON(ctx context.Context, op, path string, body, out any) error
}

// Gateway starts a hosted checkout for an existing booking and returns the
// URL the rider must be sent to.
type Gateway interface {
	Name() models.Gateway
	Initiate(ctx context.Context, bookingID string) (string, error)
}

// Dispatcher routes an initiation to exactly one gateway. It never falls
// back to another gateway on failure.
type Dispatcher struct {
	gateways map[models.Gateway]Gateway
}

func NewDispatcher(gws ...Gateway) *Dispatcher {
	d := &Dispatcher{gateways: make(map[models.Gateway]Gateway, len(gws))}
	for _, g := range gws {
		d.gateways[g.Name()] = g
	}
	return d
}

// Initiate returns the hosted checkout URL for bookingID on gateway.
func (d *Dispatcher) Initiate(ctx context.Context, gateway models.Gateway, bookingID string) (string, error) {
	g, ok := d.gateways[gateway]
	if !ok {
		return "", apperr.ValidationError{Field: "gateway", Msg: fmt.Sprintf("unsupported payment gateway %q", gateway)}
	}
	if strings.TrimSpace(bookingID) == "" {
		return "", apperr.ValidationError{Field: "bookingId", Msg: "booking id is required to start payment"}
	}
	url, err := g.Initiate(ctx, bookingID)
	observability.PaymentInitiated.WithLabelValues(string(gateway), observability.Result(err)).Inc()
	return url, err
}

// Supports reports whether gateway is configured.
func (d *Dispatcher) Supports(gateway models.Gateway) bool {
	_, ok := d.gateways[gateway]
	return ok
}

func failure(op, msg string, err error) error {
	return apperr.NetworkError{Op: op, Message: msg, Err: err}
}
