package persist

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/linchenxuan/logsink/metrics"
)

// _latencySampleCap bounds the write latency sample ring. Old samples are
// overwritten once the ring is full.
const _latencySampleCap = 1024

// Telemetry owns the engine's lifetime counters. Counter updates are atomic
// and may come from any goroutine; the latency ring is mutex-guarded since
// samples arrive only from write paths. Every update is mirrored to the
// metrics registry so external reporters see the same numbers.
type Telemetry struct {
	queueHighWatermark   atomic.Int64
	droppedLines         atomic.Uint64
	batchesWritten       atomic.Uint64
	linesWritten         atomic.Uint64
	fallbackDirectWrites atomic.Uint64
	suppressedMessages   atomic.Uint64
	ioErrors             atomic.Uint64
	rotations            atomic.Uint64

	latMu      sync.Mutex
	latSamples []float64
	latNext    int
	latFull    bool
}

// TelemetrySnapshot is a point-in-time copy of the engine counters.
// Percentiles are computed over the retained latency samples with linear
// interpolation; they are zero until a write has been observed.
type TelemetrySnapshot struct {
	QueueHighWatermark   int64
	DroppedLines         uint64
	BatchesWritten       uint64
	LinesWritten         uint64
	FallbackDirectWrites uint64
	SuppressedMessages   uint64
	IOErrors             uint64
	Rotations            uint64
	WriteLatencyP50MS    float64
	WriteLatencyP95MS    float64
}

func newTelemetry() *Telemetry {
	return &Telemetry{latSamples: make([]float64, 0, _latencySampleCap)}
}

func chanDim(ch Channel) metrics.Dimension {
	return metrics.Dimension{metrics.DimChannel: ch.String()}
}

// observeQueueDepth raises the high watermark when depth exceeds it.
func (t *Telemetry) observeQueueDepth(depth int) {
	for {
		cur := t.queueHighWatermark.Load()
		if int64(depth) <= cur {
			return
		}
		if t.queueHighWatermark.CompareAndSwap(cur, int64(depth)) {
			metrics.UpdateMaxGaugeWithGroup(metrics.NameWriterQueueHighWatermark,
				metrics.GroupLogsink, metrics.Value(depth))
			return
		}
	}
}

func (t *Telemetry) addDropped(ch Channel, n int) {
	t.droppedLines.Add(uint64(n))
	metrics.IncrCounterWithDimGroup(metrics.NameWriterDroppedTotal,
		metrics.GroupLogsink, metrics.Value(n), chanDim(ch))
}

// addBatch records one executed durable write batch and its line count.
func (t *Telemetry) addBatch(ch Channel, lines int) {
	t.batchesWritten.Add(1)
	t.linesWritten.Add(uint64(lines))
	dim := chanDim(ch)
	metrics.IncrCounterWithDimGroup(metrics.NameWriterBatchesTotal,
		metrics.GroupLogsink, 1, dim)
	metrics.IncrCounterWithDimGroup(metrics.NameWriterLinesTotal,
		metrics.GroupLogsink, metrics.Value(lines), dim)
}

func (t *Telemetry) incFallback(ch Channel) {
	t.fallbackDirectWrites.Add(1)
	metrics.IncrCounterWithDimGroup(metrics.NameWriterFallbackTotal,
		metrics.GroupLogsink, 1, chanDim(ch))
}

func (t *Telemetry) incSuppressed() {
	t.suppressedMessages.Add(1)
	metrics.IncrCounterWithGroup(metrics.NameWriterSuppressedTotal,
		metrics.GroupLogsink, 1)
}

func (t *Telemetry) incIOError(ch Channel) {
	t.ioErrors.Add(1)
	metrics.IncrCounterWithDimGroup(metrics.NameWriterIOErrorsTotal,
		metrics.GroupLogsink, 1, chanDim(ch))
}

func (t *Telemetry) incRotation(ch Channel) {
	t.rotations.Add(1)
	metrics.IncrCounterWithDimGroup(metrics.NameWriterRotationsTotal,
		metrics.GroupLogsink, 1, chanDim(ch))
}

// observeWriteLatency records the elapsed time of one durable write.
func (t *Telemetry) observeWriteLatency(ch Channel, start time.Time) {
	d := metrics.RecordStopwatchWithDimGroup(metrics.NameWriterWriteLatencyMS,
		metrics.GroupLogsink, start, chanDim(ch))
	ms := float64(d.Microseconds()) / 1000.0

	t.latMu.Lock()
	defer t.latMu.Unlock()
	if !t.latFull && len(t.latSamples) < _latencySampleCap {
		t.latSamples = append(t.latSamples, ms)
		if len(t.latSamples) == _latencySampleCap {
			t.latFull = true
		}
		return
	}
	t.latSamples[t.latNext] = ms
	t.latNext = (t.latNext + 1) % _latencySampleCap
}

// Snapshot returns a consistent copy of all counters and latency percentiles.
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	s := TelemetrySnapshot{
		QueueHighWatermark:   t.queueHighWatermark.Load(),
		DroppedLines:         t.droppedLines.Load(),
		BatchesWritten:       t.batchesWritten.Load(),
		LinesWritten:         t.linesWritten.Load(),
		FallbackDirectWrites: t.fallbackDirectWrites.Load(),
		SuppressedMessages:   t.suppressedMessages.Load(),
		IOErrors:             t.ioErrors.Load(),
		Rotations:            t.rotations.Load(),
	}

	t.latMu.Lock()
	samples := append([]float64(nil), t.latSamples...)
	t.latMu.Unlock()

	if len(samples) > 0 {
		sort.Float64s(samples)
		s.WriteLatencyP50MS = percentile(samples, 0.50)
		s.WriteLatencyP95MS = percentile(samples, 0.95)
	}
	return s
}

// percentile interpolates linearly between the two nearest ranks of an
// ascending sample slice.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := int(rank)
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}
