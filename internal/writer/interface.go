package writer

import (
	"context"
	"errors"
	"fmt"

	"github.com/SteelMorgan/log-forwarder/internal/domain"
)

// ErrClosed is returned by adapters used after Close
var ErrClosed = errors.New("adapter is closed")

// Adapter ships batches of events to an output
type Adapter interface {
	// SendEvents delivers the events in order.
	// A nil error means the whole batch was accepted.
	// The slice must not be retained after SendEvents returns.
	SendEvents(ctx context.Context, events []domain.Event) error

	// Close releases the adapter's resources
	Close() error
}

// AdapterError reports a failed delivery
type AdapterError struct {
	Adapter string
	Events  int
	Err     error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s adapter failed to send %d events: %v", e.Adapter, e.Events, e.Err)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}
