package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/events"
	"github.com/example/rental-checkout/internal/inflight"
	"github.com/example/rental-checkout/internal/itinerary"
	"github.com/example/rental-checkout/internal/models"
	"github.com/example/rental-checkout/internal/pricing"
)

type segmentView struct {
	models.TripSegment
	Expanded bool `json:"expanded"`
	Complete bool `json:"complete"`
}

type itineraryView struct {
	Mode       itinerary.Mode `json:"mode"`
	Segments   []segmentView  `json:"segments"`
	CouponCode string         `json:"couponCode,omitempty"`
	Complete   bool           `json:"complete"`
	Quote      *models.Quote  `json:"quote,omitempty"`
}

func viewOf(st *itinerary.Store) itineraryView {
	v := itineraryView{Mode: st.Mode(), CouponCode: st.Itinerary().CouponCode, Complete: st.IsComplete()}
	for _, seg := range st.Segments() {
		v.Segments = append(v.Segments, segmentView{TripSegment: seg, Expanded: st.Expanded(seg.ID), Complete: seg.Complete()})
	}
	if q, ok := st.Quote(); ok {
		v.Quote = &q
	}
	return v
}

// edit loads the tab's draft, applies fn and saves it back.
func (s *Server) edit(w http.ResponseWriter, r *http.Request, status int, fn func(st *itinerary.Store) error) {
	ctx := r.Context()
	session := sessionFrom(ctx)
	st, err := s.Drafts.Load(ctx, session)
	if err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	if err := fn(st); err != nil {
		s.writeError(w, r, err, "", viewOf(st))
		return
	}
	if err := s.Drafts.Save(ctx, session, st); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	writeJSON(w, status, viewOf(st))
}

func (s *Server) handleCreateItinerary(w http.ResponseWriter, r *http.Request) {
	var mode itinerary.Mode
	if err := decode(r, &mode); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	if mode.ServicePricingID == "" && mode.VehicleID == "" {
		s.writeError(w, r, apperr.ValidationError{Field: "mode", Msg: pricing.MsgNoCatalog}, "", nil)
		return
	}
	st := itinerary.New(mode)
	if err := s.Drafts.Save(r.Context(), sessionFrom(r.Context()), st); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(st))
}

func (s *Server) handleGetItinerary(w http.ResponseWriter, r *http.Request) {
	st, err := s.Drafts.Load(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(st))
}

func (s *Server) handleAddSegment(w http.ResponseWriter, r *http.Request) {
	s.edit(w, r, http.StatusCreated, func(st *itinerary.Store) error {
		st.AddSegment()
		return nil
	})
}

type updateSegmentRequest struct {
	Field itinerary.Field `json:"field"`
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleUpdateSegment(w http.ResponseWriter, r *http.Request) {
	var req updateSegmentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	id := mux.Vars(r)["id"]
	s.edit(w, r, http.StatusOK, func(st *itinerary.Store) error {
		v, err := itinerary.DecodeValue(req.Field, req.Value)
		if err != nil {
			return err
		}
		return st.UpdateSegment(id, req.Field, v)
	})
}

// handleRemoveSegment is a no-op for the last remaining segment.
func (s *Server) handleRemoveSegment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.edit(w, r, http.StatusOK, func(st *itinerary.Store) error {
		st.RemoveSegment(id)
		return nil
	})
}

func (s *Server) handleToggleSegment(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.edit(w, r, http.StatusOK, func(st *itinerary.Store) error {
		_, err := st.ToggleExpanded(id)
		return err
	})
}

func (s *Server) handleSetCoupon(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CouponCode string `json:"couponCode"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	s.edit(w, r, http.StatusOK, func(st *itinerary.Store) error {
		st.SetCoupon(req.CouponCode)
		return nil
	})
}

// handleEstimate prices the draft as it stands. The quote is only kept if
// the draft did not change while the call was in flight; on failure the
// draft keeps no quote.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionFrom(ctx)
	release, err := s.Guard.Acquire(session, inflight.Estimate)
	if err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	defer release()

	st, err := s.Drafts.Load(ctx, session)
	if err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	q, estErr := s.Pricing.Estimate(ctx, st.Mode(), st.Itinerary())

	st, err = s.Drafts.Load(ctx, session)
	if err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	if estErr == nil {
		estErr = st.AcceptQuote(q)
	}
	if estErr != nil {
		st.ClearQuote()
	}
	if err := s.Drafts.Save(ctx, session, st); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	if estErr != nil {
		s.writeError(w, r, estErr, pricing.FallbackMessage, viewOf(st))
		return
	}
	s.publish(r, events.Event{Type: events.QuoteEstimated, SessionID: session, CalculationID: q.CalculationID, Amount: q.Total()})
	writeJSON(w, http.StatusOK, viewOf(st))
}

// handleProceed hands the priced itinerary to checkout.
func (s *Server) handleProceed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	session := sessionFrom(ctx)
	st, err := s.Drafts.Load(ctx, session)
	if err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	if err := pricing.Validate(st.Mode(), st.Itinerary()); err != nil {
		s.writeError(w, r, err, "", viewOf(st))
		return
	}
	q, err := st.FreshQuote()
	if err != nil {
		s.writeError(w, r, err, "", viewOf(st))
		return
	}
	mode := st.Mode()
	bundle := models.HandoffBundle{
		Itinerary:        st.Itinerary(),
		Quote:            q,
		ServicePricingID: mode.ServicePricingID,
		YearRangeID:      mode.YearRangeID,
		VehicleID:        mode.VehicleID,
	}
	if err := s.Checkout.Handoff(ctx, session, bundle); err != nil {
		s.writeError(w, r, err, "", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"redirectTo": "/checkout", "quote": q})
}

func (s *Server) publish(r *http.Request, e events.Event) {
	e.At = time.Now().UTC()
	if err := s.Events.Publish(r.Context(), e); err != nil {
		s.logger.Warn("publish event failed", "type", e.Type, "error", err)
	}
}
