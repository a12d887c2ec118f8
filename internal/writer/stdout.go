package writer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/SteelMorgan/log-forwarder/internal/domain"
	"github.com/SteelMorgan/log-forwarder/internal/metrics"
)

// StdoutWriter writes events as newline-delimited JSON
type StdoutWriter struct {
	mu     sync.Mutex
	out    *bufio.Writer
	closed bool
}

// NewStdoutWriter creates a writer for w (usually os.Stdout)
func NewStdoutWriter(w io.Writer) *StdoutWriter {
	return &StdoutWriter{out: bufio.NewWriter(w)}
}

// SendEvents writes one JSON object per event and flushes
func (w *StdoutWriter) SendEvents(ctx context.Context, events []domain.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &AdapterError{Adapter: "stdout", Events: len(events), Err: ErrClosed}
	}

	err := w.write(events)
	metrics.AdapterRequestsTotal.WithLabelValues("stdout", resultLabel(err)).Inc()
	if err != nil {
		return &AdapterError{Adapter: "stdout", Events: len(events), Err: err}
	}
	return nil
}

func (w *StdoutWriter) write(events []domain.Event) error {
	enc := json.NewEncoder(w.out)
	for i := range events {
		if err := enc.Encode(events[i]); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return w.out.Flush()
}

// Close flushes buffered output
func (w *StdoutWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return w.out.Flush()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
