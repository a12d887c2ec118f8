package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/SteelMorgan/log-forwarder/internal/domain"
	"github.com/SteelMorgan/log-forwarder/internal/metrics"
	"github.com/SteelMorgan/log-forwarder/internal/observability"
	"github.com/SteelMorgan/log-forwarder/internal/retry"
)

const cloudWatchAdapter = "cloudwatch"

// PutLogEvents limits
const (
	maxEventsPerPut  = 10000
	maxBytesPerPut   = 1048576
	eventOverhead    = 26
	maxMessageLength = 256*1024 - eventOverhead
)

// cloudWatchAPI is the subset of the CloudWatch Logs client used by the writer
type cloudWatchAPI interface {
	PutLogEvents(ctx context.Context, params *cloudwatchlogs.PutLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.PutLogEventsOutput, error)
	CreateLogStream(ctx context.Context, params *cloudwatchlogs.CreateLogStreamInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.CreateLogStreamOutput, error)
}

// CloudWatchWriter ships events as JSON messages to one CloudWatch log stream
type CloudWatchWriter struct {
	client   cloudWatchAPI
	group    string
	stream   string
	retryCfg retry.Config
	tracer   trace.Tracer
	now      func() time.Time

	mu            sync.Mutex
	streamCreated bool
	closed        bool
}

// NewCloudWatchWriter creates a writer using the default AWS credential chain.
// An empty region falls back to AWS_REGION.
func NewCloudWatchWriter(ctx context.Context, region, group, stream string, retryCfg retry.Config) (*CloudWatchWriter, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info().
		Str("log_group", group).
		Str("log_stream", stream).
		Str("region", cfg.Region).
		Msg("Using CloudWatch Logs output")

	return newCloudWatchWriter(cloudwatchlogs.NewFromConfig(cfg), group, stream, retryCfg), nil
}

func newCloudWatchWriter(client cloudWatchAPI, group, stream string, retryCfg retry.Config) *CloudWatchWriter {
	return &CloudWatchWriter{
		client:   client,
		group:    group,
		stream:   stream,
		retryCfg: retryCfg,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
}

// SendEvents puts events in as few requests as the API limits allow.
// The batch fails as a whole if any request fails.
func (w *CloudWatchWriter) SendEvents(ctx context.Context, events []domain.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return &AdapterError{Adapter: cloudWatchAdapter, Events: len(events), Err: ErrClosed}
	}
	if len(events) == 0 {
		return nil
	}

	batchID := BatchIDFromContext(ctx)
	ctx, span := w.tracer.Start(ctx, "writer.CloudWatch.SendEvents",
		trace.WithAttributes(
			attribute.String("batch.id", batchID.String()),
			attribute.String("aws.log_group", w.group),
			attribute.Int("events", len(events)),
		))

	err := w.send(ctx, events)
	metrics.AdapterRequestsTotal.WithLabelValues(cloudWatchAdapter, resultLabel(err)).Inc()
	observability.EndSpan(span, err, "put log events")
	if err != nil {
		return &AdapterError{Adapter: cloudWatchAdapter, Events: len(events), Err: err}
	}

	log.Debug().
		Str("batch_id", batchID.String()).
		Str("log_group", w.group).
		Str("log_stream", w.stream).
		Int("events", len(events)).
		Msg("Batch sent to CloudWatch Logs")
	return nil
}

func (w *CloudWatchWriter) send(ctx context.Context, events []domain.Event) error {
	if err := w.ensureStream(ctx); err != nil {
		return err
	}

	logEvents, err := toLogEvents(events, w.now().UnixMilli())
	if err != nil {
		return err
	}

	for _, chunk := range chunkLogEvents(logEvents) {
		input := &cloudwatchlogs.PutLogEventsInput{
			LogGroupName:  aws.String(w.group),
			LogStreamName: aws.String(w.stream),
			LogEvents:     chunk,
		}
		err := retry.Do(ctx, w.retryCfg, func() error {
			out, err := w.client.PutLogEvents(ctx, input)
			if err != nil {
				return err
			}
			if out != nil && out.RejectedLogEventsInfo != nil {
				log.Warn().
					Str("log_group", w.group).
					Str("log_stream", w.stream).
					Msg("CloudWatch Logs rejected some events")
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to put %d log events: %w", len(chunk), err)
		}
	}
	return nil
}

// ensureStream creates the log stream once; an existing stream is fine
func (w *CloudWatchWriter) ensureStream(ctx context.Context) error {
	if w.streamCreated {
		return nil
	}

	err := retry.Do(ctx, w.retryCfg, func() error {
		_, err := w.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
			LogGroupName:  aws.String(w.group),
			LogStreamName: aws.String(w.stream),
		})
		var exists *types.ResourceAlreadyExistsException
		if errors.As(err, &exists) {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create log stream %s/%s: %w", w.group, w.stream, err)
	}

	w.streamCreated = true
	return nil
}

// toLogEvents renders events as JSON messages stamped with timestamp (ms)
func toLogEvents(events []domain.Event, timestamp int64) ([]types.InputLogEvent, error) {
	out := make([]types.InputLogEvent, 0, len(events))
	for i := range events {
		data, err := json.Marshal(events[i])
		if err != nil {
			return nil, fmt.Errorf("failed to encode event %s:%d: %w", events[i].File, events[i].Offset, err)
		}
		msg := string(data)
		if len(msg) > maxMessageLength {
			msg = strings.ToValidUTF8(msg[:maxMessageLength], "")
		}
		out = append(out, types.InputLogEvent{
			Message:   aws.String(msg),
			Timestamp: aws.Int64(timestamp),
		})
	}
	return out, nil
}

// chunkLogEvents splits events into request-sized chunks keeping their order
func chunkLogEvents(events []types.InputLogEvent) [][]types.InputLogEvent {
	var chunks [][]types.InputLogEvent
	start, size := 0, 0
	for i := range events {
		eventSize := len(aws.ToString(events[i].Message)) + eventOverhead
		if i > start && (i-start >= maxEventsPerPut || size+eventSize > maxBytesPerPut) {
			chunks = append(chunks, events[start:i])
			start, size = i, 0
		}
		size += eventSize
	}
	if start < len(events) {
		chunks = append(chunks, events[start:])
	}
	return chunks
}

// Close marks the writer closed
func (w *CloudWatchWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
