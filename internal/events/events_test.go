package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPrefersSession(t *testing.T) {
	assert.Equal(t, "tab-1", Event{SessionID: "tab-1", BookingID: "bk-1"}.Key())
	assert.Equal(t, "bk-1", Event{BookingID: "bk-1"}.Key())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), Event{Type: BookingCreated}))
}
