package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserMessage(t *testing.T) {
	backend := NetworkError{Op: "create booking", Status: 400, Message: "Pickup date is in the past"}
	assert.Equal(t, "Pickup date is in the past", UserMessage(fmt.Errorf("submit: %w", backend), "fallback"))

	silent := NetworkError{Op: "create booking", Status: 502}
	assert.Equal(t, "fallback", UserMessage(silent, "fallback"))

	empty := NetworkError{Op: "pay", Err: ErrEmptyResponse}
	assert.Equal(t, "fallback", UserMessage(empty, "fallback"))
	assert.ErrorIs(t, empty, ErrEmptyResponse)

	assert.Equal(t, "Enter a name", UserMessage(ValidationError{Field: "fullName", Msg: "Enter a name"}, "fallback"))
	assert.Equal(t, "fallback", UserMessage(errors.New("boom"), "fallback"))
	assert.Empty(t, UserMessage(nil, "fallback"))
}

func TestValidationErrors(t *testing.T) {
	var none ValidationErrors
	assert.NoError(t, none.OrNil())

	errs := ValidationErrors{{Field: "contact.email", Msg: "bad email"}, {Field: "recipient.phoneNumber", Msg: "bad phone"}}
	err := fmt.Errorf("wrap: %w", errs.OrNil())
	assert.True(t, IsValidation(err))
	assert.Equal(t, "bad email; bad phone", errs.Error())
	msg, ok := errs.Field("recipient.phoneNumber")
	assert.True(t, ok)
	assert.Equal(t, "bad phone", msg)
}

func TestKinds(t *testing.T) {
	assert.True(t, IsStaleQuote(fmt.Errorf("x: %w", StaleQuoteError{})))
	assert.True(t, IsEntryGuard(EntryGuardError{Err: errors.New("missing")}))
	assert.True(t, IsNetwork(NetworkError{Op: "x"}))
	assert.False(t, IsNetwork(ValidationError{}))
	assert.Equal(t, "estimate: status 503", NetworkError{Op: "estimate", Status: 503}.Error())
	assert.NotEmpty(t, EntryGuardError{}.Error())
}
