package writer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SteelMorgan/log-forwarder/internal/domain"
	"github.com/SteelMorgan/log-forwarder/internal/metrics"
	"github.com/SteelMorgan/log-forwarder/internal/observability"
	"github.com/SteelMorgan/log-forwarder/internal/retry"
)

const (
	clickHouseAdapter = "clickhouse"
	tracerName        = "github.com/SteelMorgan/log-forwarder/internal/writer"
)

// ClickHouseWriter inserts each batch into one table with a single INSERT.
// Rows are keyed by (host, file, offset) in a ReplacingMergeTree so batches
// delivered twice collapse on merge.
type ClickHouseWriter struct {
	conn     clickhouse.Conn
	table    string
	retryCfg retry.Config
	tracer   trace.Tracer
	now      func() time.Time
	closed   bool
}

// NewClickHouseWriter creates a writer for table ("db.table" or "table")
func NewClickHouseWriter(conn clickhouse.Conn, table string, retryCfg retry.Config) *ClickHouseWriter {
	return &ClickHouseWriter{
		conn:     conn,
		table:    table,
		retryCfg: retryCfg,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// EnsureSchema creates the events table if it does not exist
func (w *ClickHouseWriter) EnsureSchema(ctx context.Context) error {
	return retry.Do(ctx, w.retryCfg, func() error {
		return w.conn.Exec(ctx, createTableSQL(w.table))
	})
}

func createTableSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    batch_id UUID,
    event_hash String,
    host LowCardinality(String),
    file LowCardinality(String),
    `+"`offset`"+` UInt64,
    line String,
    field_keys Array(String),
    field_values Array(String),
    ingested_at DateTime64(3)
) ENGINE = ReplacingMergeTree(ingested_at)
ORDER BY (host, file, `+"`offset`"+`)`, table)
}

func insertSQL(table string) string {
	return "INSERT INTO " + table
}

// SendEvents writes events in one batch, retrying transient failures
func (w *ClickHouseWriter) SendEvents(ctx context.Context, events []domain.Event) error {
	if w.closed {
		return &AdapterError{Adapter: clickHouseAdapter, Events: len(events), Err: ErrClosed}
	}
	if len(events) == 0 {
		return nil
	}

	batchID := BatchIDFromContext(ctx)
	ctx, span := w.tracer.Start(ctx, "writer.ClickHouse.SendEvents",
		trace.WithAttributes(
			attribute.String("batch.id", batchID.String()),
			attribute.String("db.table", w.table),
			attribute.Int("events", len(events)),
		))

	startTime := time.Now()
	ingestedAt := w.now()

	err := retry.Do(ctx, w.retryCfg, func() error {
		return w.insert(ctx, batchID, ingestedAt, events)
	})
	metrics.AdapterRequestsTotal.WithLabelValues(clickHouseAdapter, resultLabel(err)).Inc()
	observability.EndSpan(span, err, "insert")
	if err != nil {
		return &AdapterError{Adapter: clickHouseAdapter, Events: len(events), Err: err}
	}

	log.Debug().
		Str("batch_id", batchID.String()).
		Str("table", w.table).
		Int("events", len(events)).
		Dur("duration", time.Since(startTime)).
		Msg("Batch inserted into ClickHouse")
	return nil
}

func (w *ClickHouseWriter) insert(ctx context.Context, batchID uuid.UUID, ingestedAt time.Time, events []domain.Event) error {
	batch, err := w.conn.PrepareBatch(ctx, insertSQL(w.table))
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for i := range events {
		if err := batch.Append(eventRow(batchID, ingestedAt, events[i])...); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %s:%d: %w", events[i].File, events[i].Offset, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	return nil
}

// eventRow returns column values in table order
func eventRow(batchID uuid.UUID, ingestedAt time.Time, event domain.Event) []interface{} {
	keys, values := mapToArrays(event.Fields)
	offset := event.Offset
	if offset < 0 {
		offset = 0
	}
	return []interface{}{
		batchID,
		calculateEventHash(event),
		event.Host,
		event.File,
		uint64(offset),
		event.Line,
		keys,
		values,
		ingestedAt,
	}
}

// mapToArrays converts a map to two arrays (keys, values) sorted by key
func mapToArrays(m map[string]string) ([]string, []string) {
	if len(m) == 0 {
		return []string{}, []string{}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([]string, 0, len(m))
	for _, k := range keys {
		values = append(values, m[k])
	}
	return keys, values
}

// Close marks the writer closed; the connection is owned by the caller
func (w *ClickHouseWriter) Close() error {
	w.closed = true
	return nil
}
