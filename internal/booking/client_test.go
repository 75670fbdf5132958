package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/backend"
	"github.com/example/rental-checkout/internal/models"
)

func TestCreate_ReturnsBookingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bookings", r.URL.Path)
		var d models.BookingDraft
		_ = json.NewDecoder(r.Body).Decode(&d)
		assert.Equal(t, ChannelWebsite, d.Channel)
		assert.Equal(t, "calc-1", d.CalculationID)
		_, _ = w.Write([]byte(`{"data":{"id":"bk-77"}}`))
	}))
	defer srv.Close()

	c := NewClient(backend.NewClient(srv.URL, "", time.Second, 0))
	id, err := c.Create(context.Background(), models.BookingDraft{Channel: ChannelWebsite, CalculationID: "calc-1"})
	require.NoError(t, err)
	assert.Equal(t, "bk-77", id)
}

func TestCreate_MissingIDIsEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c := NewClient(backend.NewClient(srv.URL, "", time.Second, 0))
	_, err := c.Create(context.Background(), models.BookingDraft{})
	assert.ErrorIs(t, err, apperr.ErrEmptyResponse)
	assert.Equal(t, FallbackMessage, apperr.UserMessage(err, FallbackMessage))
}

func TestBookingIDShapes(t *testing.T) {
	assert.Equal(t, "a1", bookingID(json.RawMessage(`{"bookingId":"a1"}`)))
	assert.Equal(t, "12", bookingID(json.RawMessage(`{"data":{"bookingId":12}}`)))
	assert.Equal(t, "", bookingID(json.RawMessage(`{"data":"x"}`)))
	assert.Equal(t, "", bookingID(json.RawMessage(`[]`)))
}
