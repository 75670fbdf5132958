package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/itinerary"
	"github.com/example/rental-checkout/internal/models"
)

func testBundle() models.HandoffBundle {
	it := models.Itinerary{Segments: []models.TripSegment{
		{
			ID: "s1", BookingTypeID: "bt-daily", StartDate: "2025-03-01", StartTime: "10:00",
			PickupLocation:  models.Loc("Ikeja", 6.45, 3.40),
			DropoffLocation: models.Loc("Lekki", 6.60, 3.35),
		},
		{
			ID: "s2", BookingTypeID: "bt-hourly", StartDate: "2025-03-02", StartTime: "08:30",
			PickupLocation:  models.Loc("Yaba", 6.51, 3.37),
			DropoffLocation: models.Loc("Ajah", 6.47, 3.57),
		},
	}}
	return models.HandoffBundle{
		Itinerary:        it,
		Quote:            models.Quote{BasePrice: 50000, FinalPrice: 55437.5, CalculationID: "calc-42", Fingerprint: itinerary.Fingerprint(it)},
		ServicePricingID: "sp-1",
		YearRangeID:      "yr-2020",
	}
}

func TestBuildDraft_FirstSegmentOnly(t *testing.T) {
	d, err := BuildDraft(testBundle(), models.RideForMyself, validPayer, models.ContactInfo{}, models.Identity{})
	require.NoError(t, err)

	assert.Equal(t, "bt-daily", d.BookingTypeID)
	assert.Equal(t, "2025-03-01", d.StartDate)
	assert.Equal(t, "10:00:00", d.StartTime)
	assert.Equal(t, 6.45, d.PickupLatitude)
	assert.Equal(t, 3.40, d.PickupLongitude)
	assert.Equal(t, "Lekki", d.DropoffLocation)
	assert.Equal(t, 3.35, d.DropoffLongitude)
	assert.Equal(t, "calc-42", d.CalculationID)
	assert.Equal(t, "sp-1", d.ServicePricingID)
	assert.Equal(t, "yr-2020", d.YearRangeID)
	assert.Equal(t, "WEBSITE", d.Channel)
	assert.Equal(t, "ONLINE", d.PaymentMethod)
}

func TestBuildDraft_MyselfRecipientEqualsContact(t *testing.T) {
	other := models.ContactInfo{FullName: "Ignored", Email: "x@example.com", PhoneNumber: "09000000000"}
	d, err := BuildDraft(testBundle(), models.RideForMyself, validPayer, other, models.Identity{})
	require.NoError(t, err)
	assert.False(t, d.IsBookingForOthers)
	assert.Equal(t, validPayer.FullName, d.RecipientFullName)
	assert.Equal(t, validPayer.Email, d.RecipientEmail)
	assert.Equal(t, validPayer.PhoneNumber, d.RecipientPhoneNumber)
	assert.Equal(t, validPayer.PhoneNumber, d.PrimaryPhoneNumber)
}

func TestBuildDraft_OthersAndGuestFields(t *testing.T) {
	recipient := models.ContactInfo{FullName: "Chidi", Email: "chidi@example.com", PhoneNumber: "08098765432"}

	anon, err := BuildDraft(testBundle(), models.RideForOthers, validPayer, recipient, models.Identity{})
	require.NoError(t, err)
	assert.True(t, anon.IsBookingForOthers)
	assert.Equal(t, "Chidi", anon.RecipientFullName)
	assert.Equal(t, validPayer.Email, anon.GuestEmail)

	known, err := BuildDraft(testBundle(), models.RideForOthers, validPayer, recipient, models.Identity{Authenticated: true, UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, known.GuestFullName)
	assert.Empty(t, known.GuestEmail)
}

func TestBuildDraft_AreaOfUse(t *testing.T) {
	b := testBundle()
	b.Itinerary.Segments[0].DropoffLocation = nil
	b.Itinerary.Segments[0].AreaOfUse = models.Loc("Lagos Island", 6.45, 3.39)
	b.Quote.Fingerprint = itinerary.Fingerprint(b.Itinerary)

	d, err := BuildDraft(b, models.RideForMyself, validPayer, models.ContactInfo{}, models.Identity{})
	require.NoError(t, err)
	assert.Equal(t, "Lagos Island", d.AreaOfUse)
	require.NotNil(t, d.AreaOfUseLatitude)
	assert.Equal(t, 6.45, *d.AreaOfUseLatitude)
	assert.Equal(t, 3.39, d.DropoffLongitude)
}

func TestBuildDraft_TimeFormats(t *testing.T) {
	for in, want := range map[string]string{"10:00": "10:00:00", "07:15:30": "07:15:30", "3:45 PM": "15:45:00"} {
		b := testBundle()
		b.Itinerary.Segments[0].StartTime = in
		b.Quote.Fingerprint = itinerary.Fingerprint(b.Itinerary)
		d, err := BuildDraft(b, models.RideForMyself, validPayer, models.ContactInfo{}, models.Identity{})
		require.NoError(t, err, in)
		assert.Equal(t, want, d.StartTime, in)
	}
}

func TestBuildDraft_Rejections(t *testing.T) {
	stale := testBundle()
	stale.Itinerary.CouponCode = "LATE"
	_, err := BuildDraft(stale, models.RideForMyself, validPayer, models.ContactInfo{}, models.Identity{})
	assert.True(t, apperr.IsStaleQuote(err))

	badDate := testBundle()
	badDate.Itinerary.Segments[0].StartDate = "someday"
	badDate.Quote.Fingerprint = itinerary.Fingerprint(badDate.Itinerary)
	_, err = BuildDraft(badDate, models.RideForMyself, validPayer, models.ContactInfo{}, models.Identity{})
	assert.ErrorIs(t, err, ErrUnbookable)

	sentinel := testBundle()
	sentinel.Itinerary.Segments[0].PickupLocation = models.Loc("", 0.1, 0.1)
	sentinel.Quote.Fingerprint = itinerary.Fingerprint(sentinel.Itinerary)
	_, err = BuildDraft(sentinel, models.RideForMyself, validPayer, models.ContactInfo{}, models.Identity{})
	assert.ErrorIs(t, err, ErrUnbookable)
}
