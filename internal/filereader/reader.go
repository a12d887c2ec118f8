package filereader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SteelMorgan/log-forwarder/internal/metrics"
	"github.com/SteelMorgan/log-forwarder/internal/observability"
	"github.com/SteelMorgan/log-forwarder/internal/writer"
)

const tracerName = "github.com/SteelMorgan/log-forwarder/internal/filereader"

// ErrCycleInProgress is returned when ReadFiles is called while a cycle is running
var ErrCycleInProgress = errors.New("read cycle already in progress")

// CycleState is the phase a FileReader is in
type CycleState int32

const (
	StateIdle CycleState = iota
	StateScanning
	StateFlushing
	StateCommitting
)

func (s CycleState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateFlushing:
		return "flushing"
	case StateCommitting:
		return "committing"
	default:
		return fmt.Sprintf("CycleState(%d)", int32(s))
	}
}

// FileReader reads new lines from a set of files and ships them in one batch per cycle.
// Offsets are only moved forward once the adapter has accepted the batch.
type FileReader struct {
	spoolSize int
	host      string
	adapter   writer.Adapter
	sniffer   *Sniffer
	tracer    trace.Tracer

	spool   *Spool
	pending map[*FileState]int64
	state   atomic.Int32
}

// Option configures a FileReader
type Option func(*FileReader)

// WithSignatures replaces the archive signatures used to skip compressed files
func WithSignatures(signatures ...Signature) Option {
	return func(r *FileReader) {
		r.sniffer = NewSniffer(signatures...)
	}
}

// WithTracerProvider sets the provider used for cycle spans instead of the global one
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *FileReader) {
		r.tracer = tp.Tracer(tracerName)
	}
}

// New creates a FileReader shipping at most spoolSize events per cycle.
// host is reported in every event.
func New(spoolSize int, host string, adapter writer.Adapter, opts ...Option) *FileReader {
	if spoolSize <= 0 {
		spoolSize = 1
	}
	r := &FileReader{
		spoolSize: spoolSize,
		host:      host,
		adapter:   adapter,
		sniffer:   NewSniffer(),
		tracer:    otel.Tracer(tracerName),
		spool:     NewSpool(spoolSize, host),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SpoolSize returns the maximum number of events shipped per cycle
func (r *FileReader) SpoolSize() int {
	return r.spoolSize
}

// State returns the current cycle phase
func (r *FileReader) State() CycleState {
	return CycleState(r.state.Load())
}

func (r *FileReader) setState(s CycleState) {
	r.state.Store(int32(s))
}

// ReadFiles runs one cycle over states, in order, and returns the number of
// events shipped. On delivery failure no offset is changed and the error is
// returned; the same lines are read again on the next cycle.
func (r *FileReader) ReadFiles(ctx context.Context, states []*FileState) (shipped int, err error) {
	if !r.state.CompareAndSwap(int32(StateIdle), int32(StateScanning)) {
		return 0, ErrCycleInProgress
	}
	defer r.setState(StateIdle)

	startTime := time.Now()
	batchID := uuid.New()
	ctx = writer.WithBatchID(ctx, batchID)

	ctx, span := r.tracer.Start(ctx, "filereader.ReadFiles",
		trace.WithAttributes(
			attribute.String("batch.id", batchID.String()),
			attribute.Int("files", len(states)),
			attribute.Int("spool_size", r.spoolSize),
		))
	defer func() { observability.EndSpan(span, err, "read cycle") }()

	r.reset(len(states))
	defer r.reset(0)
	defer func() {
		metrics.CycleDurationSeconds.Observe(time.Since(startTime).Seconds())
	}()

	log.Trace().
		Str("batch_id", batchID.String()).
		Int("files", len(states)).
		Msg("Reading files")

	for _, state := range states {
		if _, seen := r.pending[state]; seen {
			continue
		}
		r.readFile(state, r.spoolSize-r.spool.Len())
	}

	eventCount := r.spool.Len()
	span.SetAttributes(attribute.Int("events", eventCount))

	if eventCount > 0 {
		r.setState(StateFlushing)
		if err := r.adapter.SendEvents(ctx, r.spool.Events()); err != nil {
			metrics.CyclesTotal.WithLabelValues("failed").Inc()
			metrics.EventsRedeliverableTotal.Add(float64(eventCount))
			log.Error().
				Err(err).
				Str("batch_id", batchID.String()).
				Int("events", eventCount).
				Msg("Failed to ship batch, offsets not committed")
			return 0, fmt.Errorf("failed to ship batch %s: %w", batchID, err)
		}
		metrics.EventsShippedTotal.Add(float64(eventCount))
		metrics.CyclesTotal.WithLabelValues("shipped").Inc()
	} else {
		metrics.CyclesTotal.WithLabelValues("empty").Inc()
	}

	r.setState(StateCommitting)
	for _, state := range states {
		if offset, ok := r.pending[state]; ok {
			state.Offset = offset
		}
	}

	log.Debug().
		Str("batch_id", batchID.String()).
		Int("events", eventCount).
		Dur("duration", time.Since(startTime)).
		Msg("Read cycle complete")

	return eventCount, nil
}

// reset clears the cycle buffers
func (r *FileReader) reset(files int) {
	r.spool.Reset()
	if files > 0 {
		r.pending = make(map[*FileState]int64, files)
	} else {
		r.pending = nil
	}
}

// readFile computes the next offset of one file, spooling at most spaceLeft lines
func (r *FileReader) readFile(state *FileState, spaceLeft int) {
	log.Trace().
		Str("file", state.Path).
		Int64("offset", state.Offset).
		Int("space_left", spaceLeft).
		Msg("Reading file")

	format, archived, err := r.sniffer.Sniff(state.File)
	if err != nil {
		metrics.ReadErrorsTotal.WithLabelValues("sniff").Inc()
		log.Warn().
			Err(err).
			Str("file", state.Path).
			Msg("Failed to check file format, reading it as text")
	}

	if archived {
		size, err := state.Size()
		if err != nil {
			metrics.ReadErrorsTotal.WithLabelValues("stat").Inc()
			log.Warn().
				Err(err).
				Str("file", state.Path).
				Msg("Failed to get size of archived file, keeping offset")
			r.pending[state] = state.Offset
			return
		}
		metrics.ArchivedFilesTotal.WithLabelValues(format).Inc()
		log.Debug().
			Str("file", state.Path).
			Str("format", format).
			Int64("size", size).
			Msg("Skipping archived file")
		r.pending[state] = size
		return
	}

	r.pending[state] = r.readLines(state, spaceLeft)
}

// readLines spools complete lines of a text file and returns the offset after the last one
func (r *FileReader) readLines(state *FileState, spaceLeft int) int64 {
	lr := NewLineReader(state.File, state.Offset, spaceLeft)
	for line, offset := range lr.Lines() {
		log.Trace().
			Str("file", state.Path).
			Int64("offset", offset).
			Str("line", line).
			Msg("Read line")
		r.spool.Add(state, offset, line)
	}

	if err := lr.Err(); err != nil {
		metrics.ReadErrorsTotal.WithLabelValues("read").Inc()
		log.Warn().
			Err(err).
			Str("file", state.Path).
			Int64("offset", lr.Offset()).
			Msg("Failed to read file, stopping at last complete line")
	}

	if lr.Count() > 0 {
		log.Debug().
			Str("file", state.Path).
			Int("lines", lr.Count()).
			Int64("offset", lr.Offset()).
			Msg("Read new lines")
	}
	return lr.Offset()
}
