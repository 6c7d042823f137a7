package pipeline

import (
	"sync"
	"time"

	"video-to-text/pkg/models"
)

type EventType string

const (
	EventTypeStatus    EventType = "status"
	EventTypeResult    EventType = "result"
	EventTypeCancelled EventType = "cancelled"
	EventTypeError     EventType = "error"
)

// Event is a sequenced progress notification for one session.
type Event struct {
	Seq       int64                   `json:"seq"`
	Timestamp time.Time               `json:"timestamp"`
	SessionID string                  `json:"sessionId"`
	RunID     string                  `json:"runId"`
	Type      EventType               `json:"type"`
	Progress  models.Progress         `json:"progress"`
	Result    *models.ProcessedResult `json:"result,omitempty"`
	Message   string                  `json:"message,omitempty"`
}

// EventBus keeps a bounded history of events for incremental reads.
type EventBus struct {
	mu        sync.RWMutex
	nextSeq   int64
	maxEvents int
	events    []Event
}

func NewEventBus(maxEvents int) *EventBus {
	if maxEvents <= 0 {
		maxEvents = 500
	}

	return &EventBus{
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
	}
}

// Publish appends one event and assigns its sequence and timestamp.
func (b *EventBus) Publish(event Event) Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	event.Seq = b.nextSeq
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.events = append(b.events, event)
	if len(b.events) > b.maxEvents {
		trim := len(b.events) - b.maxEvents
		b.events = append([]Event(nil), b.events[trim:]...)
	}

	return event
}

// Since returns the events of session with sequence strictly greater than
// seq. An empty session matches every event.
func (b *EventBus) Since(session string, seq int64) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Event
	for _, event := range b.events {
		if event.Seq <= seq {
			continue
		}
		if session != "" && event.SessionID != session {
			continue
		}
		out = append(out, event)
	}
	return out
}

// LastSeq returns the sequence of the newest published event.
func (b *EventBus) LastSeq() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.nextSeq
}
