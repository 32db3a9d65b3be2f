package persist

import "time"

// flushDecision is the outcome of evaluating the flush policy for one
// producer call.
type flushDecision int

const (
	// flushNone leaves the new line buffered.
	flushNone flushDecision = iota
	// flushNormal enqueues a droppable task for the pending delta.
	flushNormal
	// flushForced enqueues a task that must not be dropped.
	flushForced
)

// evaluateFlush applies the flush decision table for a single appended line.
// Rules are checked in precedence order and the first match wins. The
// function is pure: it reads only its arguments, so the same inputs always
// produce the same decision.
//
// Precedence: lifecycle force, error immediacy, idle gap, buffer threshold.
func evaluateFlush(p *FlushPolicy, idle time.Duration, pending int, isErr, closing bool) flushDecision {
	switch {
	case closing:
		return flushForced
	case isErr && p.ErrorImmediate:
		return flushForced
	case p.IdleMillSec > 0 && idle > time.Duration(p.IdleMillSec)*time.Millisecond:
		return flushNormal
	case p.BufferLineThreshold > 0 && pending >= p.BufferLineThreshold:
		return flushNormal
	}
	return flushNone
}
