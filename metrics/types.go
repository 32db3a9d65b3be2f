// Package metrics defines the types and constants used for metric collection and reporting.
package metrics

// Policy defines the aggregation policy for metric values.
// It determines how multiple values for the same metric should be combined over a time window.
type Policy int

const (
	Policy_None      Policy = iota // Policy_None indicates no specific aggregation policy. The reporting system may use a default.
	Policy_Set                     // Policy_Set represents an instantaneous value; the last reported value wins.
	Policy_Sum                     // Policy_Sum represents a cumulative value, summing all reported values.
	Policy_Max                     // Policy_Max represents the maximum value among all reported values.
	Policy_Stopwatch               // Policy_Stopwatch is for timing metrics, measuring event durations.
)

// Value represents a metric value as a float64.
type Value float64

// Dimension represents metric dimensions as key-value pairs.
// Dimensions provide contextual information for metrics, such as channel name or sink mode.
type Dimension map[string]string

// Group related constants, prefixed with Group.
const (
	// GroupLogsink is the group name for logsink persistence metrics.
	GroupLogsink = "logsink"
)

// Metric related constants
const (
	// NameWriterLinesTotal: Total number of log lines durably written by the writer.
	// group:logsink dimension:channel
	NameWriterLinesTotal = "writer_lines_total"

	// NameWriterBatchesTotal: Total number of durable write batches executed.
	// group:logsink dimension:channel
	NameWriterBatchesTotal = "writer_batches_total"

	// NameWriterDroppedTotal: Total lines abandoned on non-forced queue overflow.
	// group:logsink dimension:channel
	NameWriterDroppedTotal = "writer_dropped_total"

	// NameWriterFallbackTotal: Total forced writes executed synchronously on the producer
	// because the queue stayed full through the second-chance window.
	// group:logsink dimension:channel
	NameWriterFallbackTotal = "writer_fallback_direct_total"

	// NameWriterSuppressedTotal: Total messages suppressed by duplicate rate control.
	// group:logsink dimension:
	NameWriterSuppressedTotal = "writer_suppressed_total"

	// NameWriterIOErrorsTotal: Total durable write attempts that failed with an I/O error.
	// group:logsink dimension:channel
	NameWriterIOErrorsTotal = "writer_io_errors_total"

	// NameWriterQueueHighWatermark: Maximum observed depth of the writer task queue.
	// group:logsink dimension:
	NameWriterQueueHighWatermark = "writer_queue_high_watermark"

	// NameWriterWriteLatencyMS: Durable write latency in milliseconds.
	// group:logsink dimension:channel
	NameWriterWriteLatencyMS = "writer_write_latency_ms"

	// NameWriterRotationsTotal: Total file generations created by rotation.
	// group:logsink dimension:channel
	NameWriterRotationsTotal = "writer_rotations_total"
)

// Dimension related definitions, must be prefixed with Dim. The comment should include the group.
const (
	// DimChannel is the dimension for the log channel (normal, error).
	// group:logsink
	DimChannel = "channel"
)
