package payment

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/models"
)

const PaystackFailed = "Paystack payment initialization failed"

// Paystack initializes a transaction with POST /payments/initialize/{id} and
// an empty body. The authorization URL comes back as a bare string in data.
type Paystack struct {
	api Poster
}

func NewPaystack(api Poster) *Paystack { return &Paystack{api: api} }

func (p *Paystack) Name() models.Gateway { return models.GatewayPaystack }

func (p *Paystack) Initiate(ctx context.Context, bookingID string) (string, error) {
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	err := p.api.PostJSON(ctx, "paystack initialize", "/payments/initialize/"+url.PathEscape(bookingID), nil, &resp)
	if err != nil {
		return "", failure("paystack initialize", apperr.UserMessage(err, PaystackFailed), err)
	}
	var link string
	if err := json.Unmarshal(resp.Data, &link); err != nil || strings.TrimSpace(link) == "" {
		return "", failure("paystack initialize", PaystackFailed, apperr.ErrEmptyResponse)
	}
	return link, nil
}
