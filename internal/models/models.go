package models

import "time"

// SentinelCoord is the placeholder the location autocomplete returns for an
// unresolved selection. It must never be priced or booked.
const SentinelCoord = 0.1

// Location is a resolved place from the autocomplete collaborator.
// Lat/Lng are nil until a place has been picked.
type Location struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
}

// Loc builds a Location with both coordinates set.
func Loc(name string, lat, lng float64) *Location {
	return &Location{Name: name, Lat: &lat, Lng: &lng}
}

// Resolved reports whether l carries real coordinates.
func (l *Location) Resolved() bool {
	if l == nil || l.Lat == nil || l.Lng == nil {
		return false
	}
	return !(*l.Lat == SentinelCoord && *l.Lng == SentinelCoord)
}

func (l *Location) Clone() *Location {
	if l == nil {
		return nil
	}
	out := &Location{Name: l.Name}
	if l.Lat != nil {
		v := *l.Lat
		out.Lat = &v
	}
	if l.Lng != nil {
		v := *l.Lng
		out.Lng = &v
	}
	return out
}

// TripSegment is one leg of an itinerary.
type TripSegment struct {
	ID              string    `json:"id"`
	BookingTypeID   string    `json:"bookingTypeId"`
	StartDate       string    `json:"startDate"`
	StartTime       string    `json:"startTime"`
	PickupLocation  *Location `json:"pickupLocation"`
	DropoffLocation *Location `json:"dropoffLocation"`
	AreaOfUse       *Location `json:"areaOfUse,omitempty"`
}

// Destination returns the dropoff, or the area of use for open-ended bookings.
func (s TripSegment) Destination() *Location {
	if s.DropoffLocation.Resolved() {
		return s.DropoffLocation
	}
	if s.AreaOfUse.Resolved() {
		return s.AreaOfUse
	}
	return nil
}

// Complete reports whether every field required for pricing is present.
func (s TripSegment) Complete() bool {
	return s.BookingTypeID != "" &&
		s.StartDate != "" &&
		s.StartTime != "" &&
		s.PickupLocation.Resolved() &&
		s.Destination() != nil
}

func (s TripSegment) Clone() TripSegment {
	s.PickupLocation = s.PickupLocation.Clone()
	s.DropoffLocation = s.DropoffLocation.Clone()
	s.AreaOfUse = s.AreaOfUse.Clone()
	return s
}

// Itinerary is the ordered set of segments being priced, plus an optional coupon.
type Itinerary struct {
	Segments   []TripSegment `json:"segments"`
	CouponCode string        `json:"couponCode,omitempty"`
}

func (it Itinerary) Clone() Itinerary {
	out := Itinerary{CouponCode: it.CouponCode, Segments: make([]TripSegment, len(it.Segments))}
	for i, s := range it.Segments {
		out.Segments[i] = s.Clone()
	}
	return out
}

// Quote is the pricing engine's answer for one itinerary snapshot.
type Quote struct {
	BasePrice            float64  `json:"basePrice"`
	PlatformFeeAmount    float64  `json:"platformFeeAmount"`
	VatAmount            float64  `json:"vatAmount"`
	VatPercentage        float64  `json:"vatPercentage"`
	DiscountAmount       float64  `json:"discountAmount"`
	CouponDiscountAmount float64  `json:"couponDiscountAmount"`
	GeofenceSurcharge    float64  `json:"geofenceSurcharge"`
	AppliedGeofenceNames []string `json:"appliedGeofenceNames"`
	AppliedCouponCode    string   `json:"appliedCouponCode,omitempty"`
	FinalPrice           float64  `json:"finalPrice"`
	TotalPrice           float64  `json:"totalPrice"`
	CalculationID        string   `json:"calculationId,omitempty"`

	// Fingerprint identifies the itinerary snapshot that was priced.
	Fingerprint uint64    `json:"fingerprint"`
	EstimatedAt time.Time `json:"estimatedAt"`
}

// Total is the amount the backend says will be charged.
func (q Quote) Total() float64 {
	if q.FinalPrice != 0 {
		return q.FinalPrice
	}
	return q.TotalPrice
}

type RideFor string

const (
	RideForMyself RideFor = "myself"
	RideForOthers RideFor = "others"
)

func ParseRideFor(s string) (RideFor, bool) {
	switch RideFor(s) {
	case RideForMyself, RideForOthers:
		return RideFor(s), true
	case "":
		return RideForMyself, true
	default:
		return "", false
	}
}

// ContactInfo is the payer's (or recipient's) identity for a booking.
type ContactInfo struct {
	FullName             string `json:"fullName"`
	Email                string `json:"email"`
	PhoneNumber          string `json:"phoneNumber"`
	SecondaryPhoneNumber string `json:"secondaryPhoneNumber,omitempty"`
}

func (c ContactInfo) IsZero() bool { return c == ContactInfo{} }

// Gateway names an external hosted payment processor.
type Gateway string

const (
	GatewayPaystack Gateway = "PAYSTACK"
	GatewayMonnify  Gateway = "MONNIFY"
)

func ParseGateway(s string) (Gateway, bool) {
	switch Gateway(s) {
	case GatewayPaystack, GatewayMonnify:
		return Gateway(s), true
	default:
		return "", false
	}
}

// HandoffBundle is what the quoting step hands to checkout.
type HandoffBundle struct {
	Itinerary        Itinerary `json:"itinerary"`
	Quote            Quote     `json:"quote"`
	ServicePricingID string    `json:"servicePricingId,omitempty"`
	YearRangeID      string    `json:"yearRangeId,omitempty"`
	VehicleID        string    `json:"vehicleId,omitempty"`
}

// BookingDraft is the booking-creation payload. It is built right before the
// call and never stored.
type BookingDraft struct {
	BookingTypeID        string   `json:"bookingTypeId"`
	ServicePricingID     string   `json:"servicePricingId,omitempty"`
	YearRangeID          string   `json:"yearRangeId,omitempty"`
	VehicleID            string   `json:"vehicleId,omitempty"`
	StartDate            string   `json:"startDate"`
	StartTime            string   `json:"startTime"`
	PickupLocation       string   `json:"pickupLocation"`
	PickupLatitude       float64  `json:"pickupLatitude"`
	PickupLongitude      float64  `json:"pickupLongitude"`
	DropoffLocation      string   `json:"dropoffLocation"`
	DropoffLatitude      float64  `json:"dropoffLatitude"`
	DropoffLongitude     float64  `json:"dropoffLongitude"`
	AreaOfUse            string   `json:"areaOfUse,omitempty"`
	AreaOfUseLatitude    *float64 `json:"areaOfUseLatitude,omitempty"`
	AreaOfUseLongitude   *float64 `json:"areaOfUseLongitude,omitempty"`
	CouponCode           string   `json:"couponCode,omitempty"`
	CalculationID        string   `json:"calculationId,omitempty"`
	PrimaryPhoneNumber   string   `json:"primaryPhoneNumber"`
	SecondaryPhoneNumber string   `json:"secondaryPhoneNumber,omitempty"`
	GuestFullName        string   `json:"guestFullName,omitempty"`
	GuestEmail           string   `json:"guestEmail,omitempty"`
	GuestPhoneNumber     string   `json:"guestPhoneNumber,omitempty"`
	IsBookingForOthers   bool     `json:"isBookingForOthers"`
	RecipientFullName    string   `json:"recipientFullName"`
	RecipientEmail       string   `json:"recipientEmail"`
	RecipientPhoneNumber string   `json:"recipientPhoneNumber"`
	Channel              string   `json:"channel"`
	PaymentMethod        string   `json:"paymentMethod"`
}

// Identity is what the auth collaborator tells us about the caller.
type Identity struct {
	Authenticated bool        `json:"authenticated"`
	UserID        string      `json:"userId,omitempty"`
	Profile       ContactInfo `json:"profile"`
}
