package filereader

import (
	"github.com/SteelMorgan/log-forwarder/internal/domain"
)

// Spool accumulates the events of one cycle.
// It never rejects an event; the caller keeps it within capacity.
type Spool struct {
	host   string
	events []domain.Event
}

// NewSpool creates a spool with room for capacity events
func NewSpool(capacity int, host string) *Spool {
	if capacity < 0 {
		capacity = 0
	}
	return &Spool{
		host:   host,
		events: make([]domain.Event, 0, capacity),
	}
}

// Add builds an event for line and appends it
func (s *Spool) Add(state *FileState, offset int64, line string) {
	var fields map[string]string
	if len(state.Fields) > 0 {
		fields = make(map[string]string, len(state.Fields))
		for k, v := range state.Fields {
			fields[k] = v
		}
	}
	s.events = append(s.events, domain.Event{
		Fields: fields,
		File:   state.Path,
		Offset: offset,
		Line:   line,
		Host:   s.host,
	})
}

// Len returns the number of spooled events
func (s *Spool) Len() int {
	return len(s.events)
}

// Events returns the spooled events in insertion order.
// The slice is only valid until the next Reset.
func (s *Spool) Events() []domain.Event {
	return s.events
}

// Reset drops all events, clearing references so they can be collected
func (s *Spool) Reset() {
	clear(s.events)
	s.events = s.events[:0]
}
