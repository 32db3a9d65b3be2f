package persist

import (
	"sync/atomic"
	"time"
)

// taskQueue is the bounded FIFO between producers and the single writer.
// A buffered channel gives FIFO hand-off and the non-blocking and
// bounded-wait pushes the backpressure ladder needs.
type taskQueue struct {
	ch chan writeTask

	// outstanding counts tasks from successful enqueue until their durable
	// write finished. Producers increment before the send and roll back on
	// failure; the consumer decrements only after executing, so a zero
	// reading means no queued and no in-flight work.
	outstanding atomic.Int64
}

func newTaskQueue(capacity int) *taskQueue {
	return &taskQueue{ch: make(chan writeTask, capacity)}
}

// tryPush enqueues without blocking. Returns false when the queue is full.
func (q *taskQueue) tryPush(t writeTask) bool {
	q.outstanding.Add(1)
	select {
	case q.ch <- t:
		return true
	default:
		q.outstanding.Add(-1)
		return false
	}
}

// pushWait blocks up to wait for queue space. Used only as the forced path's
// bounded second-chance window.
func (q *taskQueue) pushWait(t writeTask, wait time.Duration) bool {
	q.outstanding.Add(1)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case q.ch <- t:
		return true
	case <-timer.C:
		q.outstanding.Add(-1)
		return false
	}
}

// markDone settles n dequeued tasks after their writes completed.
func (q *taskQueue) markDone(n int) {
	q.outstanding.Add(-int64(n))
}

// idle reports that no enqueued task is waiting or executing.
func (q *taskQueue) idle() bool {
	return q.outstanding.Load() == 0
}

func (q *taskQueue) depth() int {
	return len(q.ch)
}
