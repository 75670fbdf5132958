package booking

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/observability"
)

const (
	ChannelWebsite  = "WEBSITE"
	PaymentOnline   = "ONLINE"
	FallbackMessage = "We could not create your booking, please try again"
)

type Poster interface {
	PostJSON(ctx context.Context, op, path string, body, out any) error
}

// Client creates bookings on the booking service.
type Client struct {
	api Poster
}

func NewClient(api Poster) *Client { return &Client{api: api} }

// Create sends draft and returns the new booking's id.
func (c *Client) Create(ctx context.Context, draft models.BookingDraft) (string, error) {
	var raw json.RawMessage
	if err := c.api.PostJSON(ctx, "create booking", "/bookings", draft, &raw); err != nil {
		observability.BookingsCreated.WithLabelValues("error").Inc()
		return "", err
	}
	id := bookingID(raw)
	if id == "" {
		observability.BookingsCreated.WithLabelValues("empty").Inc()
		return "", apperr.NetworkError{Op: "create booking", Err: apperr.ErrEmptyResponse}
	}
	observability.BookingsCreated.WithLabelValues("ok").Inc()
	return id, nil
}

// bookingID finds the id at the top level or under data, as bookingId or id.
func bookingID(raw json.RawMessage) string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return ""
	}
	if id := idField(top); id != "" {
		return id
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(top["data"], &data); err != nil {
		return ""
	}
	return idField(data)
}

func idField(m map[string]json.RawMessage) string {
	for _, k := range []string{"bookingId", "id"} {
		v, ok := m[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return strings.TrimSpace(s)
		}
		var n json.Number
		if err := json.Unmarshal(v, &n); err == nil {
			return n.String()
		}
	}
	return ""
}
