package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse marks an HTTP success that lacks the field we needed.
	ErrEmptyResponse = errors.New("empty response from backend")
	// ErrInFlight is returned when the same action is already running for a session.
	ErrInFlight            = errors.New("request already in progress")
	IllegalTransitionError = errors.New("illegal transition of checkout state")
)

type ValidationError struct {
	Field string `json:"field"`
	Msg   string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

// ValidationErrors reports every failing field at once.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Field returns the message for field, if present.
func (v ValidationErrors) Field(name string) (string, bool) {
	for _, e := range v {
		if e.Field == name {
			return e.Msg, true
		}
	}
	return "", false
}

// OrNil keeps a nil interface when nothing failed.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

type StaleQuoteError struct {
	Reason string
}

func (e StaleQuoteError) Error() string {
	if e.Reason == "" {
		return "quote is out of date, please estimate the price again"
	}
	return e.Reason
}

// EntryGuardError means checkout was reached without a usable handoff bundle.
type EntryGuardError struct {
	Reason string
	Err    error
}

func (e EntryGuardError) Error() string {
	if e.Reason == "" {
		return "booking details are missing, please start again"
	}
	return e.Reason
}

func (e EntryGuardError) Unwrap() error { return e.Err }

// NetworkError is any failed call to the backend.
type NetworkError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e NetworkError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	default:
		return e.Op + " failed"
	}
}

func (e NetworkError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var one ValidationError
	var many ValidationErrors
	return errors.As(err, &one) || errors.As(err, &many)
}

func IsStaleQuote(err error) bool {
	var target StaleQuoteError
	return errors.As(err, &target)
}

func IsEntryGuard(err error) bool {
	var target EntryGuardError
	return errors.As(err, &target)
}

func IsNetwork(err error) bool {
	var target NetworkError
	return errors.As(err, &target)
}

// UserMessage returns the text to show the rider: the backend's own message
// when it sent one, otherwise fallback.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var ne NetworkError
	if errors.As(err, &ne) {
		if ne.Message != "" {
			return ne.Message
		}
		return fallback
	}
	var ve ValidationError
	var ves ValidationErrors
	var ege EntryGuardError
	var sqe StaleQuoteError
	switch {
	case errors.As(err, &ves):
		return ves.Error()
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ege):
		return ege.Error()
	case errors.As(err, &sqe):
		return sqe.Error()
	}
	return fallback
}
