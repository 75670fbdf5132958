package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/itinerary"
	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/observability"
)

const (
	MsgInvalidPickup  = "Please select a valid pickup location"
	MsgInvalidDropoff = "Please select a valid dropoff location"
	MsgNoCatalog      = "Please choose a vehicle or service before estimating"
	FallbackMessage   = "Unable to estimate the price right now, please try again"
)

// Poster is the slice of backend.Client the pricing client needs.
type Poster interface {
	PostJSON(ctx context.Context, op, path string, body, out any) error
}

type Request struct {
	ServicePricingID string               `json:"servicePricingId,omitempty"`
	VehicleID        string               `json:"vehicleId,omitempty"`
	Segments         []models.TripSegment `json:"segments"`
	CouponCode       string               `json:"couponCode,omitempty"`
}

// Client prices an itinerary against the pricing engine.
type Client struct {
	api Poster
	now func() time.Time
}

func NewClient(api Poster) *Client {
	return &Client{api: api, now: time.Now}
}

// Validate checks everything that must hold before the itinerary may be sent
// for pricing. Pickup and dropoff problems are reported separately.
func Validate(mode itinerary.Mode, it models.Itinerary) error {
	var errs apperr.ValidationErrors
	if mode.ServicePricingID == "" && mode.VehicleID == "" {
		errs = append(errs, apperr.ValidationError{Field: "mode", Msg: MsgNoCatalog})
	}
	if len(it.Segments) == 0 {
		errs = append(errs, apperr.ValidationError{Field: "segments", Msg: "Add at least one trip"})
	}
	for i, s := range it.Segments {
		prefix := fmt.Sprintf("segments[%d].", i)
		if s.BookingTypeID == "" {
			errs = append(errs, apperr.ValidationError{Field: prefix + "bookingTypeId", Msg: "Please choose a booking type"})
		}
		if s.StartDate == "" {
			errs = append(errs, apperr.ValidationError{Field: prefix + "startDate", Msg: "Please choose a start date"})
		}
		if s.StartTime == "" {
			errs = append(errs, apperr.ValidationError{Field: prefix + "startTime", Msg: "Please choose a start time"})
		}
		if !s.PickupLocation.Resolved() {
			errs = append(errs, apperr.ValidationError{Field: prefix + "pickupLocation", Msg: MsgInvalidPickup})
		}
		if s.Destination() == nil {
			errs = append(errs, apperr.ValidationError{Field: prefix + "dropoffLocation", Msg: MsgInvalidDropoff})
		}
	}
	return errs.OrNil()
}

// Estimate validates locally, then asks the pricing engine for a quote. The
// returned quote carries the fingerprint of it so callers can detect
// staleness.
func (c *Client) Estimate(ctx context.Context, mode itinerary.Mode, it models.Itinerary) (models.Quote, error) {
	if err := Validate(mode, it); err != nil {
		observability.EstimatesTotal.WithLabelValues("invalid").Inc()
		return models.Quote{}, err
	}
	req := Request{
		ServicePricingID: mode.ServicePricingID,
		Segments:         it.Segments,
		CouponCode:       it.CouponCode,
	}
	path := "/pricing/service-pricing/calculate"
	if mode.ServicePricingID == "" {
		req.VehicleID = mode.VehicleID
		path = "/pricing/vehicles/" + url.PathEscape(mode.VehicleID) + "/calculate"
	}

	start := c.now()
	var raw json.RawMessage
	err := c.api.PostJSON(ctx, "estimate price", path, req, &raw)
	observability.EstimateLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.EstimatesTotal.WithLabelValues("error").Inc()
		return models.Quote{}, err
	}
	q, err := decodeQuote(raw)
	if err != nil {
		observability.EstimatesTotal.WithLabelValues("error").Inc()
		return models.Quote{}, err
	}
	q.Fingerprint = itinerary.Fingerprint(it)
	q.EstimatedAt = c.now()
	observability.EstimatesTotal.WithLabelValues("ok").Inc()
	return q, nil
}

// decodeQuote accepts the quote either bare or wrapped in {"data": ...}.
func decodeQuote(raw json.RawMessage) (models.Quote, error) {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	body := raw
	if err := json.Unmarshal(raw, &env); err == nil && len(env.Data) > 0 && bytes.HasPrefix(bytes.TrimSpace(env.Data), []byte("{")) {
		body = env.Data
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return models.Quote{}, apperr.NetworkError{Op: "estimate price", Err: fmt.Errorf("%w: %v", apperr.ErrEmptyResponse, err)}
	}
	if !hasPrice(fields) {
		return models.Quote{}, apperr.NetworkError{Op: "estimate price", Err: apperr.ErrEmptyResponse}
	}
	var q models.Quote
	if err := json.Unmarshal(body, &q); err != nil {
		return models.Quote{}, apperr.NetworkError{Op: "estimate price", Err: fmt.Errorf("%w: %v", apperr.ErrEmptyResponse, err)}
	}
	return q, nil
}

// hasPrice reports whether the body carries a price at all. A zero price is
// a real quote.
func hasPrice(fields map[string]json.RawMessage) bool {
	for _, k := range []string{"basePrice", "finalPrice", "totalPrice"} {
		if v, ok := fields[k]; ok && !bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			return true
		}
	}
	return false
}
