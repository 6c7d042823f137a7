package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusSince(t *testing.T) {
	bus := NewEventBus(10)
	bus.Publish(Event{SessionID: "a", Message: "1"})
	bus.Publish(Event{SessionID: "b", Message: "2"})
	bus.Publish(Event{SessionID: "a", Message: "3"})

	events := bus.Since("a", 1)
	require.Len(t, events, 1)
	assert.Equal(t, int64(3), events[0].Seq)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Len(t, bus.Since("", 0), 3)
	assert.Equal(t, int64(3), bus.LastSeq())
}

func TestEventBusCapsHistory(t *testing.T) {
	bus := NewEventBus(2)
	bus.Publish(Event{Message: "1"})
	bus.Publish(Event{Message: "2"})
	bus.Publish(Event{Message: "3"})

	events := bus.Since("", 0)
	require.Len(t, events, 2)
	assert.Equal(t, "2", events[0].Message)
	assert.Equal(t, "3", events[1].Message)
}
