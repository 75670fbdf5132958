package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/models"
)

var ErrSegmentNotFound = errors.New("segment not found")

// Field names a mutable TripSegment field.
type Field string

const (
	FieldBookingTypeID   Field = "bookingTypeId"
	FieldStartDate       Field = "startDate"
	FieldStartTime       Field = "startTime"
	FieldPickupLocation  Field = "pickupLocation"
	FieldDropoffLocation Field = "dropoffLocation"
	FieldAreaOfUse       Field = "areaOfUse"
)

func (f Field) isLocation() bool {
	return f == FieldPickupLocation || f == FieldDropoffLocation || f == FieldAreaOfUse
}

// Mode says which pricing catalog the itinerary is priced against.
type Mode struct {
	ServicePricingID string `json:"servicePricingId,omitempty"`
	YearRangeID      string `json:"yearRangeId,omitempty"`
	VehicleID        string `json:"vehicleId,omitempty"`
}

// Draft is the serialisable state of a Store.
type Draft struct {
	Mode      Mode             `json:"mode"`
	Itinerary models.Itinerary `json:"itinerary"`
	Quote     *models.Quote    `json:"quote,omitempty"`
	Expanded  map[string]bool  `json:"expanded,omitempty"`
}

// Store holds the itinerary being edited. Every successful mutation drops
// the held quote; nothing re-estimates implicitly.
type Store struct {
	d     Draft
	newID func() string
}

// New returns a store with a single empty segment.
func New(mode Mode) *Store {
	s := &Store{d: Draft{Mode: mode, Expanded: map[string]bool{}}, newID: uuid.NewString}
	s.AddSegment()
	return s
}

// FromDraft restores a store saved with Snapshot.
func FromDraft(d Draft) *Store {
	if d.Expanded == nil {
		d.Expanded = map[string]bool{}
	}
	s := &Store{d: d, newID: uuid.NewString}
	if len(s.d.Itinerary.Segments) == 0 {
		s.AddSegment()
	}
	return s
}

func (s *Store) Snapshot() Draft {
	out := Draft{Mode: s.d.Mode, Itinerary: s.d.Itinerary.Clone(), Expanded: make(map[string]bool, len(s.d.Expanded))}
	for k, v := range s.d.Expanded {
		out.Expanded[k] = v
	}
	if s.d.Quote != nil {
		q := *s.d.Quote
		out.Quote = &q
	}
	return out
}

func (s *Store) Mode() Mode { return s.d.Mode }

func (s *Store) Itinerary() models.Itinerary { return s.d.Itinerary.Clone() }

func (s *Store) Segments() []models.TripSegment { return s.Itinerary().Segments }

func (s *Store) invalidate() { s.d.Quote = nil }

// AddSegment appends an empty, expanded segment and returns it.
func (s *Store) AddSegment() models.TripSegment {
	seg := models.TripSegment{ID: s.newID()}
	s.d.Itinerary.Segments = append(s.d.Itinerary.Segments, seg)
	s.d.Expanded[seg.ID] = true
	s.invalidate()
	return seg
}

// RemoveSegment deletes a segment. It is a no-op, returning false, for an
// unknown id or when id is the last remaining segment.
func (s *Store) RemoveSegment(id string) bool {
	segs := s.d.Itinerary.Segments
	if len(segs) <= 1 {
		return false
	}
	for i := range segs {
		if segs[i].ID == id {
			s.d.Itinerary.Segments = append(segs[:i:i], segs[i+1:]...)
			delete(s.d.Expanded, id)
			s.invalidate()
			return true
		}
	}
	return false
}

// UpdateSegment sets one field. String fields take a string; location fields
// take a *models.Location, a models.Location or nil to clear.
func (s *Store) UpdateSegment(id string, field Field, value any) error {
	seg := s.find(id)
	if seg == nil {
		return ErrSegmentNotFound
	}
	if field.isLocation() {
		loc, err := asLocation(field, value)
		if err != nil {
			return err
		}
		switch field {
		case FieldPickupLocation:
			seg.PickupLocation = loc
		case FieldDropoffLocation:
			seg.DropoffLocation = loc
		case FieldAreaOfUse:
			seg.AreaOfUse = loc
		}
		s.invalidate()
		return nil
	}
	str, ok := value.(string)
	if !ok {
		return apperr.ValidationError{Field: string(field), Msg: fmt.Sprintf("%s must be a string", field)}
	}
	switch field {
	case FieldBookingTypeID:
		seg.BookingTypeID = str
	case FieldStartDate:
		seg.StartDate = str
	case FieldStartTime:
		seg.StartTime = str
	default:
		return apperr.ValidationError{Field: string(field), Msg: fmt.Sprintf("unknown segment field %q", field)}
	}
	s.invalidate()
	return nil
}

func asLocation(field Field, value any) (*models.Location, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case *models.Location:
		return v.Clone(), nil
	case models.Location:
		return v.Clone(), nil
	default:
		return nil, apperr.ValidationError{Field: string(field), Msg: fmt.Sprintf("%s must be a location", field)}
	}
}

// DecodeValue turns a raw JSON value into what UpdateSegment expects for field.
func DecodeValue(field Field, raw json.RawMessage) (any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		if field.isLocation() {
			return nil, nil
		}
		return "", nil
	}
	if field.isLocation() {
		var loc models.Location
		if err := json.Unmarshal(raw, &loc); err != nil {
			return nil, apperr.ValidationError{Field: string(field), Msg: fmt.Sprintf("%s must be a location", field)}
		}
		return &loc, nil
	}
	var str string
	if err := json.Unmarshal(raw, &str); err != nil {
		return nil, apperr.ValidationError{Field: string(field), Msg: fmt.Sprintf("%s must be a string", field)}
	}
	return str, nil
}

// SetCoupon changes the coupon code; an unchanged code keeps the quote.
func (s *Store) SetCoupon(code string) {
	if s.d.Itinerary.CouponCode == code {
		return
	}
	s.d.Itinerary.CouponCode = code
	s.invalidate()
}

// IsComplete is the AND of every segment's completeness.
func (s *Store) IsComplete() bool {
	if len(s.d.Itinerary.Segments) == 0 {
		return false
	}
	for _, seg := range s.d.Itinerary.Segments {
		if !seg.Complete() {
			return false
		}
	}
	return true
}

// ToggleExpanded flips the UI expansion flag. It does not touch the quote.
func (s *Store) ToggleExpanded(id string) (bool, error) {
	if s.find(id) == nil {
		return false, ErrSegmentNotFound
	}
	s.d.Expanded[id] = !s.d.Expanded[id]
	return s.d.Expanded[id], nil
}

func (s *Store) Expanded(id string) bool { return s.d.Expanded[id] }

// AcceptQuote stores q if it was computed for the current itinerary.
func (s *Store) AcceptQuote(q models.Quote) error {
	if q.Fingerprint != Fingerprint(s.d.Itinerary) {
		return apperr.StaleQuoteError{Reason: "itinerary changed while the price was being estimated, please estimate again"}
	}
	s.d.Quote = &q
	return nil
}

// ClearQuote drops the held quote, e.g. after a failed estimate.
func (s *Store) ClearQuote() { s.invalidate() }

// Quote returns the held quote, if any.
func (s *Store) Quote() (models.Quote, bool) {
	if s.d.Quote == nil {
		return models.Quote{}, false
	}
	return *s.d.Quote, true
}

// FreshQuote returns the quote only if it still matches the itinerary.
func (s *Store) FreshQuote() (models.Quote, error) {
	q, ok := s.Quote()
	if !ok {
		return models.Quote{}, apperr.StaleQuoteError{Reason: "please estimate the price before continuing"}
	}
	if q.Fingerprint != Fingerprint(s.d.Itinerary) {
		return models.Quote{}, apperr.StaleQuoteError{}
	}
	return q, nil
}

func (s *Store) find(id string) *models.TripSegment {
	for i := range s.d.Itinerary.Segments {
		if s.d.Itinerary.Segments[i].ID == id {
			return &s.d.Itinerary.Segments[i]
		}
	}
	return nil
}
