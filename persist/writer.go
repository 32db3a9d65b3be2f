package persist

import (
	"go.uber.org/ratelimit"
)

// writer is the single background consumer of the task queue. One goroutine
// drains tasks in batches, coalesces ranges per channel and generation, and
// executes the durable writes, so writes for a channel always land in buffer
// order without any cross-producer coordination.
type writer struct {
	eng      *Engine
	queue    *taskQueue
	batchCap int
	// pacer smooths batch execution when configured; nil means unpaced.
	pacer ratelimit.Limiter

	stopCh chan struct{}
	doneCh chan struct{}
}

func newWriter(eng *Engine, queue *taskQueue, batchCap, paceBatchPerSec int) *writer {
	w := &writer{
		eng:      eng,
		queue:    queue,
		batchCap: batchCap,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	if paceBatchPerSec > 0 {
		w.pacer = ratelimit.New(paceBatchPerSec)
	}
	return w
}

func (w *writer) start() {
	go w.loop()
}

func (w *writer) loop() {
	defer close(w.doneCh)
	for {
		select {
		case t := <-w.queue.ch:
			w.runBatch(t)
		case <-w.stopCh:
			// Drain what is already queued, then exit.
			for {
				select {
				case t := <-w.queue.ch:
					w.runBatch(t)
				default:
					return
				}
			}
		}
	}
}

// runBatch drains up to batchCap queued tasks starting from first, coalesces
// them, and executes the resulting writes. The tasks stay accounted in the
// queue until the writes finished, so idle observers never miss in-flight
// work.
func (w *writer) runBatch(first writeTask) {
	if w.pacer != nil {
		w.pacer.Take()
	}

	batch := make([]writeTask, 0, w.batchCap)
	batch = append(batch, first)
collect:
	for len(batch) < w.batchCap {
		select {
		case t := <-w.queue.ch:
			batch = append(batch, t)
		default:
			break collect
		}
	}

	for _, t := range coalesce(batch) {
		w.eng.saveRange(t)
	}
	w.queue.markDone(len(batch))
}
