// Package persist implements the append-only log persistence engine: per
// channel in-memory record buffers, a policy-driven flush evaluator, delta
// cursors, a bounded writer queue, and a single background writer that turns
// accumulated deltas into durable file writes.
package persist

import (
	"errors"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/linchenxuan/logsink/log"
)

// ErrEngineClosed is returned by lifecycle operations after Shutdown.
var ErrEngineClosed = errors.New("persist engine closed")

// Engine is the persistence engine. Producers hand finished lines to Emit,
// which appends under a short critical section and evaluates the flush
// policy; durable writes happen on the background writer except for the
// forced fallback and rotation paths.
//
// Writes are cursor-covering: a write for a task persists everything still
// unwritten (and not dropped) below the task's end, so an out-of-order forced
// fallback keeps files in buffer order and turns overtaken queued tasks into
// no-ops.
type Engine struct {
	cfg      *EngineCfg
	channels [channelCount]*channelState
	policy   atomic.Pointer[FlushPolicy]
	rate     *rateController
	queue    *taskQueue
	writer   *writer
	tel      *Telemetry

	forceWait time.Duration

	// closing is set at the start of Shutdown; new producer calls evaluate
	// to forced flushes from then on. down is set once Shutdown completed.
	closing atomic.Bool
	down    atomic.Bool

	tickStop chan struct{}
	tickDone chan struct{}
}

// NewEngine creates and starts an engine. A nil cfg uses defaults. The
// background writer starts immediately; the idle tick starts unless disabled.
func NewEngine(cfg *EngineCfg) (*Engine, error) {
	if cfg == nil {
		cfg = getDefaultCfg()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		rate:      newRateController(cfg.Rate),
		queue:     newTaskQueue(cfg.QueueCap),
		tel:       newTelemetry(),
		forceWait: time.Duration(cfg.ForceWaitMillSec) * time.Millisecond,
	}
	policy := cfg.Policy
	e.policy.Store(&policy)

	now := time.Now()
	outputs := [channelCount]struct {
		mode SinkMode
		file string
	}{
		ChannelNormal: {cfg.normalMode, cfg.FilePrefix + "_log.txt"},
		ChannelError:  {cfg.errorMode, cfg.FilePrefix + "_error_log.txt"},
	}
	for ch := ChannelNormal; ch < channelCount; ch++ {
		snk, err := newSink(outputs[ch].mode, filepath.Join(cfg.Dir, outputs[ch].file))
		if err != nil {
			for _, st := range e.channels {
				if st != nil {
					_ = st.sink.close()
				}
			}
			return nil, err
		}
		e.channels[ch] = &channelState{
			ch:       ch,
			mode:     outputs[ch].mode,
			gen:      1,
			lastEmit: now,
			sink:     snk,
		}
	}

	e.writer = newWriter(e, e.queue, cfg.WriterBatchCap, cfg.WriterPaceBatchPerSec)
	e.writer.start()

	if cfg.IdleTickMillSec > 0 {
		e.tickStop = make(chan struct{})
		e.tickDone = make(chan struct{})
		go e.idleTick(time.Duration(cfg.IdleTickMillSec) * time.Millisecond)
	}

	log.Info().Str("dir", cfg.Dir).Str("prefix", cfg.FilePrefix).
		Int("queueCap", cfg.QueueCap).Msg("persist engine started")
	return e, nil
}

// Emit appends one finished line to a channel's buffer and applies the flush
// policy. isErr marks error records for the error-immediacy rule. Lines
// emitted after shutdown completion are discarded.
func (e *Engine) Emit(ch Channel, line string, isErr bool) {
	if ch < ChannelNormal || ch >= channelCount {
		return
	}
	if e.down.Load() {
		return
	}
	if !e.rate.allow(line) {
		e.tel.incSuppressed()
		return
	}

	st := e.channels[ch]
	now := time.Now()

	st.mu.Lock()
	st.lines = append(st.lines, line)
	idle := now.Sub(st.lastEmit)
	st.lastEmit = now

	d := evaluateFlush(e.policy.Load(), idle, st.cur.pending(len(st.lines)), isErr, e.closing.Load())
	var task writeTask
	if d != flushNone {
		task = writeTask{
			ch:    ch,
			gen:   st.gen,
			start: st.cur.enqueued,
			end:   len(st.lines),
			force: d == flushForced,
		}
		st.cur.enqueued = len(st.lines)
	}
	needRotate := e.cfg.RotateLineCap > 0 && len(st.lines) >= e.cfg.RotateLineCap
	st.mu.Unlock()

	if d != flushNone {
		e.dispatch(st, task)
	}
	if needRotate {
		e.rotateChannel(st)
	}
}

// dispatch hands a task to the writer queue, applying the backpressure
// ladder: non-forced tasks are abandoned on overflow; forced tasks wait the
// bounded second-chance window and then write synchronously on the caller.
func (e *Engine) dispatch(st *channelState, t writeTask) {
	if t.end <= t.start {
		return
	}

	if e.queue.tryPush(t) {
		e.tel.observeQueueDepth(e.queue.depth())
		return
	}

	if !t.force {
		st.mu.Lock()
		stale := t.gen != st.gen
		if !stale {
			st.cur.markDropped(span{start: t.start, end: t.end})
		}
		st.mu.Unlock()
		// A task from a rotated-away generation was already persisted by
		// the rotation flush; losing it drops nothing.
		if !stale {
			e.tel.addDropped(st.ch, t.end-t.start)
		}
		return
	}

	if e.queue.pushWait(t, e.forceWait) {
		e.tel.observeQueueDepth(e.queue.depth())
		return
	}

	// Second-chance window elapsed with the queue still full: execute the
	// forced write on the calling goroutine.
	e.tel.incFallback(st.ch)
	e.saveRange(t)
}

// saveRange executes the durable write for a task. Cursor-covering: it
// persists every unwritten, non-dropped line below the task's end. Tasks from
// a previous generation are no-ops since rotation already persisted them.
func (e *Engine) saveRange(t writeTask) {
	st := e.channels[t.ch]
	st.wmu.Lock()
	defer st.wmu.Unlock()

	st.mu.Lock()
	if t.gen != st.gen {
		st.mu.Unlock()
		return
	}
	end := t.end
	if end > len(st.lines) {
		end = len(st.lines)
	}
	if end <= st.cur.written {
		st.mu.Unlock()
		return
	}
	delta := st.cur.collect(st.lines, end)
	var full []string
	if st.mode == SinkFullRewrite {
		full = append([]string(nil), st.lines[:end]...)
	}
	st.mu.Unlock()

	startedAt := time.Now()
	err := st.sink.writeDelta(delta, full)
	e.tel.observeWriteLatency(t.ch, startedAt)
	if err != nil {
		// One failed write must not stall the pipeline: count it, report it,
		// and advance past the failed range.
		e.tel.incIOError(t.ch)
		log.Error().Err(err).Str("channel", t.ch.String()).
			Int("end", end).Msg("durable write failed")
	}

	st.mu.Lock()
	if t.gen == st.gen {
		st.cur.advance(end)
	}
	st.mu.Unlock()

	if err == nil && (len(delta) > 0 || full != nil) {
		e.tel.addBatch(t.ch, len(delta))
	}
}

// rotateChannel persists everything pending for the channel, moves the file
// aside to a timestamped backup, and rebases the buffer and cursor for the
// next generation. Runs synchronously on the rotating producer with both
// locks held; the pause is rare and bounded by one write plus one rename.
//
// The buffer is rebased even when the rename fails: by that point the
// pending delta is settled (durably written, or failed and counted), so
// keeping it would only re-append the same lines on the next attempt. A
// failed rename is counted and the generation continues in the current file.
func (e *Engine) rotateChannel(st *channelState) {
	st.wmu.Lock()
	defer st.wmu.Unlock()
	st.mu.Lock()
	defer st.mu.Unlock()

	// Another producer may have rotated while we waited for the locks.
	if e.cfg.RotateLineCap <= 0 || len(st.lines) < e.cfg.RotateLineCap {
		return
	}

	end := len(st.lines)
	st.cur.enqueued = end
	delta := st.cur.collect(st.lines, end)
	var full []string
	if st.mode == SinkFullRewrite {
		full = append([]string(nil), st.lines[:end]...)
	}

	startedAt := time.Now()
	err := st.sink.writeDelta(delta, full)
	e.tel.observeWriteLatency(st.ch, startedAt)
	if err != nil {
		e.tel.incIOError(st.ch)
		log.Error().Err(err).Str("channel", st.ch.String()).Msg("rotation flush failed")
	} else if len(delta) > 0 || full != nil {
		e.tel.addBatch(st.ch, len(delta))
	}
	st.cur.advance(end)

	if err := st.sink.rotate(time.Now()); err != nil {
		e.tel.incIOError(st.ch)
		log.Error().Err(err).Str("channel", st.ch.String()).
			Msg("rotation failed, continuing generation in current file")
	} else {
		e.tel.incRotation(st.ch)
		log.Info().Str("channel", st.ch.String()).Uint64("gen", st.gen+1).Msg("rotated")
	}

	st.gen++
	st.lines = nil
	st.cur.reset()
}

// ConfigureFlushPolicy atomically replaces the flush policy. In-flight
// producer calls finish under the snapshot they read; subsequent calls see
// the new policy in full.
func (e *Engine) ConfigureFlushPolicy(p FlushPolicy) {
	if p.IdleMillSec < 0 {
		p.IdleMillSec = 0
	}
	if p.BufferLineThreshold < 0 {
		p.BufferLineThreshold = 0
	}
	e.policy.Store(&p)
}

// ConfigureRateControl atomically replaces the duplicate-suppression
// configuration and resets its per-message state.
func (e *Engine) ConfigureRateControl(rc RateControl) {
	e.rate.reload(rc)
}

// Telemetry returns a point-in-time snapshot of the engine counters.
func (e *Engine) Telemetry() TelemetrySnapshot {
	return e.tel.Snapshot()
}

// Flush enqueues the pending delta of every channel. With force set, the
// tasks carry the forced delivery obligation and Flush waits for the writer
// to drain before returning.
func (e *Engine) Flush(force bool) {
	for _, st := range e.channels {
		st.mu.Lock()
		t := writeTask{
			ch:    st.ch,
			gen:   st.gen,
			start: st.cur.enqueued,
			end:   len(st.lines),
			force: force,
		}
		st.cur.enqueued = len(st.lines)
		st.mu.Unlock()
		e.dispatch(st, t)
	}
	if force {
		e.WaitIdle(5 * time.Second)
	}
}

// WaitIdle blocks until every enqueued task has finished its durable write,
// or the timeout elapses. Returns true when idle was reached. Tasks are
// accounted from enqueue to write completion, so a dequeued batch still in
// the writer's hands never reads as idle.
func (e *Engine) WaitIdle(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if e.queue.idle() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return e.queue.idle()
}

// Shutdown force-flushes every channel, stops the writer after it drains the
// queue, and closes the sinks. If the writer does not finish within timeout,
// the shutdown path drains the remaining tasks synchronously so no forced
// data is left unwritten. Repeated calls return ErrEngineClosed.
func (e *Engine) Shutdown(timeout time.Duration) error {
	if !e.closing.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}

	if e.tickStop != nil {
		close(e.tickStop)
		<-e.tickDone
	}

	for _, st := range e.channels {
		st.mu.Lock()
		t := writeTask{
			ch:    st.ch,
			gen:   st.gen,
			start: st.cur.enqueued,
			end:   len(st.lines),
			force: true,
		}
		st.cur.enqueued = len(st.lines)
		st.mu.Unlock()
		e.dispatch(st, t)
	}

	close(e.writer.stopCh)
	select {
	case <-e.writer.doneCh:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("writer drain timed out, draining synchronously")
		e.drainQueueSync()
	}

	e.down.Store(true)

	var firstErr error
	for _, st := range e.channels {
		st.wmu.Lock()
		if err := st.sink.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		st.wmu.Unlock()
	}

	log.Info().Msg("persist engine stopped")
	return firstErr
}

// drainQueueSync executes whatever is still queued on the calling goroutine.
// Safe to run concurrently with a stuck writer: saveRange serializes on wmu
// and already-covered tasks degrade to no-ops.
func (e *Engine) drainQueueSync() {
	for {
		select {
		case t := <-e.queue.ch:
			e.saveRange(t)
			e.queue.markDone(1)
		default:
			return
		}
	}
}

// idleTick re-evaluates the idle flush rule for every channel independently
// of producer calls, so a channel that stops receiving lines still gets its
// tail persisted within idle threshold plus one tick. Also prunes stale
// duplicate-suppression state.
func (e *Engine) idleTick(interval time.Duration) {
	defer close(e.tickDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.tickStop:
			return
		case now := <-ticker.C:
			p := e.policy.Load()
			if p.IdleMillSec > 0 {
				idleDur := time.Duration(p.IdleMillSec) * time.Millisecond
				for _, st := range e.channels {
					st.mu.Lock()
					var task writeTask
					flush := st.cur.pending(len(st.lines)) > 0 && now.Sub(st.lastEmit) > idleDur
					if flush {
						task = writeTask{
							ch:    st.ch,
							gen:   st.gen,
							start: st.cur.enqueued,
							end:   len(st.lines),
						}
						st.cur.enqueued = len(st.lines)
					}
					st.mu.Unlock()
					if flush {
						e.dispatch(st, task)
					}
				}
			}
			e.rate.prune(time.Minute)
		}
	}
}
