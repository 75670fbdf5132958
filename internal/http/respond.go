package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/example/rental-checkout/internal/apperr"
	"github.com/example/rental-checkout/internal/itinerary"
)

type errorBody struct {
	Error      string                  `json:"error"`
	Fields     apperr.ValidationErrors `json:"fields,omitempty"`
	RedirectTo string                  `json:"redirectTo,omitempty"`
	State      any                     `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error kind to a status. state, when not nil, is the
// attempt or draft as it stands after the failure.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fallback string, state any) {
	body := errorBody{Error: apperr.UserMessage(err, fallback), State: state}
	var status int
	var verrs apperr.ValidationErrors
	var verr apperr.ValidationError
	switch {
	case errors.As(err, &verrs):
		status = http.StatusUnprocessableEntity
		body.Fields = verrs
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
		body.Fields = apperr.ValidationErrors{verr}
	case apperr.IsStaleQuote(err):
		status = http.StatusConflict
	case apperr.IsEntryGuard(err):
		status = http.StatusGone
		body.RedirectTo = s.QuotePagePath
	case apperr.IsNetwork(err):
		status = http.StatusBadGateway
	case errors.Is(err, apperr.ErrInFlight):
		status = http.StatusConflict
		body.Error = "This request is already in progress"
	case errors.Is(err, apperr.IllegalTransitionError):
		status = http.StatusConflict
		body.Error = "This action is not available at this step"
	case errors.Is(err, itinerary.ErrSegmentNotFound):
		status = http.StatusNotFound
		body.Error = "Trip not found"
	case errors.Is(err, itinerary.ErrNoDraft):
		status = http.StatusNotFound
		body.Error = "No itinerary in progress"
		body.RedirectTo = s.QuotePagePath
	default:
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
	} else {
		s.logger.Debug("request rejected", "route", routeTemplate(r), "status", status, "error", err)
	}
	writeJSON(w, status, body)
}

// decode reads a JSON body. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.ValidationError{Field: "body", Msg: "Request body is not valid JSON"}
	}
	return nil
}
