package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/booking"
	"github.com/example/rental-checkout/internal/itinerary"
	"github.com/example/rental-checkout/internal/models"
)

// ErrUnbookable marks a bundle that passed the entry guard but still cannot
// be turned into a booking. The attempt fails rather than guessing.
var ErrUnbookable = errors.New("itinerary cannot be booked")

var (
	dateLayouts = []string{"2006-01-02", time.RFC3339, "02/01/2006", "2006/01/02"}
	timeLayouts = []string{"15:04:05", "15:04", "3:04 PM", "3:04PM", "3:04 pm", "3:04pm"}
)

// BuildDraft assembles the booking payload from the first segment of the
// bundle's itinerary. Later segments are not booked.
func BuildDraft(b models.HandoffBundle, rideFor models.RideFor, contact, recipient models.ContactInfo, who models.Identity) (models.BookingDraft, error) {
	if len(b.Itinerary.Segments) == 0 {
		return models.BookingDraft{}, fmt.Errorf("%w: no segments", ErrUnbookable)
	}
	if b.Quote.Fingerprint != itinerary.Fingerprint(b.Itinerary) {
		return models.BookingDraft{}, apperr.StaleQuoteError{}
	}
	seg := b.Itinerary.Segments[0]
	if !seg.Complete() {
		return models.BookingDraft{}, fmt.Errorf("%w: first segment is incomplete", ErrUnbookable)
	}
	date, err := normalise(seg.StartDate, dateLayouts, "2006-01-02")
	if err != nil {
		return models.BookingDraft{}, fmt.Errorf("%w: start date %q", ErrUnbookable, seg.StartDate)
	}
	clock, err := normalise(seg.StartTime, timeLayouts, "15:04:05")
	if err != nil {
		return models.BookingDraft{}, fmt.Errorf("%w: start time %q", ErrUnbookable, seg.StartTime)
	}

	dest := seg.Destination()
	d := models.BookingDraft{
		BookingTypeID:        seg.BookingTypeID,
		ServicePricingID:     b.ServicePricingID,
		YearRangeID:          b.YearRangeID,
		VehicleID:            b.VehicleID,
		StartDate:            date,
		StartTime:            clock,
		PickupLocation:       seg.PickupLocation.Name,
		PickupLatitude:       *seg.PickupLocation.Lat,
		PickupLongitude:      *seg.PickupLocation.Lng,
		DropoffLocation:      dest.Name,
		DropoffLatitude:      *dest.Lat,
		DropoffLongitude:     *dest.Lng,
		CouponCode:           b.Itinerary.CouponCode,
		CalculationID:        b.Quote.CalculationID,
		PrimaryPhoneNumber:   contact.PhoneNumber,
		SecondaryPhoneNumber: contact.SecondaryPhoneNumber,
		IsBookingForOthers:   rideFor == models.RideForOthers,
		Channel:              booking.ChannelWebsite,
		PaymentMethod:        booking.PaymentOnline,
	}
	if area := seg.AreaOfUse; area.Resolved() {
		lat, lng := *area.Lat, *area.Lng
		d.AreaOfUse = area.Name
		d.AreaOfUseLatitude = &lat
		d.AreaOfUseLongitude = &lng
	}
	if !who.Authenticated {
		d.GuestFullName = contact.FullName
		d.GuestEmail = contact.Email
		d.GuestPhoneNumber = contact.PhoneNumber
	}
	r := contact
	if rideFor == models.RideForOthers {
		r = recipient
	}
	d.RecipientFullName = r.FullName
	d.RecipientEmail = r.Email
	d.RecipientPhoneNumber = r.PhoneNumber
	return d, nil
}

func normalise(v string, layouts []string, out string) (string, error) {
	v = strings.TrimSpace(v)
	for _, l := range layouts {
		if t, err := time.Parse(l, v); err == nil {
			return t.Format(out), nil
		}
	}
	return "", fmt.Errorf("unrecognised value %q", v)
}
