package persist

import (
	"sync"
	"time"
)

// Channel identifies one of the independent record streams. Each channel owns
// its buffer, cursor, and output destination.
type Channel int

const (
	// ChannelNormal receives regular log records.
	ChannelNormal Channel = iota
	// ChannelError receives error records, persisted to a separate file.
	ChannelError

	channelCount
)

// String returns the channel name used in file naming, logs, and metric
// dimensions.
func (c Channel) String() string {
	switch c {
	case ChannelNormal:
		return "normal"
	case ChannelError:
		return "error"
	}
	return "unknown"
}

// span is a half-open [start, end) range of buffer indices.
type span struct {
	start int
	end   int
}

// deltaCursor tracks, per generation, how far a channel's buffer has been
// enqueued and durably written, plus the ranges abandoned by queue overflow.
// All fields are guarded by the owning channel's mu.
type deltaCursor struct {
	// enqueued is the index one past the last line handed to a writer task.
	enqueued int
	// written is the index one past the last line durably persisted.
	written int
	// dropped records overflow-abandoned ranges above written, in ascending
	// order. Covering writes skip them so dropped data is never resurrected.
	dropped []span
}

// markDropped records an abandoned range so later covering writes exclude it.
func (c *deltaCursor) markDropped(s span) {
	if s.end <= s.start {
		return
	}
	c.dropped = append(c.dropped, s)
}

// collect copies the unwritten, non-dropped lines in [written, end) in buffer
// order. The caller holds mu; the returned slice is safe to use after release.
func (c *deltaCursor) collect(lines []string, end int) []string {
	if end > len(lines) {
		end = len(lines)
	}
	if end <= c.written {
		return nil
	}

	out := make([]string, 0, end-c.written)
	i := c.written
	for _, d := range c.dropped {
		if d.end <= i {
			continue
		}
		if d.start >= end {
			break
		}
		if d.start > i {
			out = append(out, lines[i:d.start]...)
		}
		if d.end > i {
			i = d.end
		}
		if i >= end {
			return out
		}
	}
	if i < end {
		out = append(out, lines[i:end]...)
	}
	return out
}

// advance moves the written cursor forward and prunes dropped spans that the
// cursor has passed.
func (c *deltaCursor) advance(end int) {
	if end > c.written {
		c.written = end
	}
	if end > c.enqueued {
		c.enqueued = end
	}
	k := 0
	for _, d := range c.dropped {
		if d.end > c.written {
			c.dropped[k] = d
			k++
		}
	}
	c.dropped = c.dropped[:k]
}

// reset rebases the cursor for a fresh generation.
func (c *deltaCursor) reset() {
	c.enqueued = 0
	c.written = 0
	c.dropped = nil
}

// pending returns the count of buffered lines not yet handed to a task.
func (c *deltaCursor) pending(bufLen int) int {
	return bufLen - c.enqueued
}

// channelState is the runtime state of one channel.
//
// Two locks with distinct roles: mu guards the buffer, cursor, and timing
// fields and is only ever held for short in-memory sections; wmu serializes
// durable writes and file rotation. When both are needed, wmu is acquired
// first.
type channelState struct {
	ch   Channel
	mode SinkMode

	mu       sync.Mutex
	lines    []string
	gen      uint64
	cur      deltaCursor
	lastEmit time.Time

	wmu  sync.Mutex
	sink sink
}
