package httpapi

import (
	"net/http"

	"github.com/example/rental-checkout/internal/booking"
	"github.com/example/rental-checkout/internal/checkout"
	"github.com/example/rental-checkout/internal/models"
)

// attemptView is what the checkout page renders. The recipient is shown as
// the contact when the ride is for the payer.
type attemptView struct {
	checkout.Attempt
	Recipient models.ContactInfo `json:"recipient"`
}

func viewAttempt(a checkout.Attempt) attemptView {
	return attemptView{Attempt: a, Recipient: a.EffectiveRecipient()}
}

func (s *Server) handleEnterCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.Checkout.Enter(ctx, sessionFrom(ctx), identityFrom(ctx))
	if err != nil {
		s.writeError(w, r, err, "", viewAttempt(a))
		return
	}
	writeJSON(w, http.StatusOK, viewAttempt(a))
}

func (s *Server) handleUpdateContact(w http.ResponseWriter, r *http.Request) {
	var f checkout.Form
	if err := decode(r, &f); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	ctx := r.Context()
	a, err := s.Checkout.UpdateContact(ctx, sessionFrom(ctx), visitorFrom(ctx), identityFrom(ctx), f)
	if err != nil {
		s.writeError(w, r, err, "", viewAttempt(a))
		return
	}
	writeJSON(w, http.StatusOK, viewAttempt(a))
}

// handleBook runs validation, booking creation and payment initiation. On
// success the client must navigate to redirectUrl.
func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var f checkout.Form
	if err := decode(r, &f); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	ctx := r.Context()
	a, err := s.Checkout.Submit(ctx, sessionFrom(ctx), visitorFrom(ctx), identityFrom(ctx), f)
	if err != nil {
		fallback := booking.FallbackMessage
		if a.State == checkout.StateAwaitingPayment {
			fallback = checkout.PaymentFallback
		}
		s.writeError(w, r, err, fallback, viewAttempt(a))
		return
	}
	writeJSON(w, http.StatusOK, viewAttempt(a))
}

func (s *Server) handleRetryPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := s.Checkout.RetryPayment(ctx, sessionFrom(ctx))
	if err != nil {
		s.writeError(w, r, err, checkout.PaymentFallback, viewAttempt(a))
		return
	}
	writeJSON(w, http.StatusOK, viewAttempt(a))
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.Checkout.Restart(ctx, sessionFrom(ctx)); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"redirectTo": s.QuotePagePath})
}

// handleOfferRecall tells an anonymous rider whether details from an earlier
// visit are available. Nothing is applied here.
func (s *Server) handleOfferRecall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, ok, err := s.Recall.Offer(ctx, identityFrom(ctx), visitorFrom(ctx))
	if err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"available": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": true, "contact": c})
}

func (s *Server) handleApplyRecall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, applied, err := s.Checkout.ApplyRecall(ctx, sessionFrom(ctx), visitorFrom(ctx), identityFrom(ctx))
	if err != nil {
		s.writeError(w, r, err, "", viewAttempt(a))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applied": applied, "attempt": viewAttempt(a)})
}

func (s *Server) handleForgetRecall(w http.ResponseWriter, r *http.Request) {
	if err := s.Recall.Forget(r.Context(), visitorFrom(r.Context())); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
