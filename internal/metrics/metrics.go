package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every forwarder collector. Served on /metrics by cmd/forwarder.
var Registry = prometheus.NewRegistry()

var (
	// CyclesTotal counts read cycles by outcome: "shipped", "empty" or "failed".
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "cycles_total",
			Help:      "Read cycles by outcome.",
		},
		[]string{"result"},
	)

	// EventsShippedTotal is the number of events accepted by the output adapter.
	EventsShippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "events_shipped_total",
			Help:      "Events accepted by the output adapter.",
		},
	)

	// EventsRedeliverableTotal is the number of events read in cycles whose delivery failed.
	EventsRedeliverableTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "events_redeliverable_total",
			Help:      "Events read in failed cycles; they are read again on the next cycle.",
		},
	)

	// ArchivedFilesTotal counts files skipped because they start with an archive signature.
	ArchivedFilesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "archived_files_skipped_total",
			Help:      "Files skipped because they are compressed archives.",
		},
		[]string{"format"},
	)

	// ReadErrorsTotal counts I/O errors while sniffing or reading files.
	ReadErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "read_errors_total",
			Help:      "I/O errors while sniffing or reading log files.",
		},
		[]string{"stage"},
	)

	// CycleDurationSeconds is the time one read cycle takes, delivery included.
	CycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "forwarder",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one read cycle including delivery.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// FilesWatched is the number of files currently tracked.
	FilesWatched = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "forwarder",
			Name:      "files_watched",
			Help:      "Number of log files currently tracked.",
		},
	)

	// AdapterRequestsTotal counts requests made by output adapters, retries included.
	AdapterRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "adapter_requests_total",
			Help:      "Requests made by output adapters, retries included.",
		},
		[]string{"adapter", "result"},
	)

	// OffsetPersistErrorsTotal counts failures to persist committed offsets.
	OffsetPersistErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "forwarder",
			Name:      "offset_persist_errors_total",
			Help:      "Failures to persist committed offsets to the offset store.",
		},
	)
)

func init() {
	Registry.MustRegister(
		CyclesTotal,
		EventsShippedTotal,
		EventsRedeliverableTotal,
		ArchivedFilesTotal,
		ReadErrorsTotal,
		CycleDurationSeconds,
		FilesWatched,
		OffsetPersistErrorsTotal,
		AdapterRequestsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}
