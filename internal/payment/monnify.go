package payment

import (
	"context"
	"strings"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/models"
)

const MonnifyFailed = "Monnify payment initialization failed"

// Monnify initiates with POST /payments/initiate {bookingId} and answers with
// authorizationUrl.
type Monnify struct {
	api Poster
}

func NewMonnify(api Poster) *Monnify { return &Monnify{api: api} }

func (m *Monnify) Name() models.Gateway { return models.GatewayMonnify }

func (m *Monnify) Initiate(ctx context.Context, bookingID string) (string, error) {
	body := struct {
		BookingID string `json:"bookingId"`
	}{BookingID: bookingID}
	var resp struct {
		AuthorizationURL *string `json:"authorizationUrl"`
	}
	if err := m.api.PostJSON(ctx, "monnify initiate", "/payments/initiate", body, &resp); err != nil {
		return "", failure("monnify initiate", apperr.UserMessage(err, MonnifyFailed), err)
	}
	if resp.AuthorizationURL == nil || strings.TrimSpace(*resp.AuthorizationURL) == "" {
		return "", failure("monnify initiate", MonnifyFailed, apperr.ErrEmptyResponse)
	}
	return *resp.AuthorizationURL, nil
}
