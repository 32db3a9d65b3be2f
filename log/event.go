package log

import (
	"strconv"
	"time"
)

// LogEvent represents a single structured logging event.
// It provides a fluent API for adding key-value pairs to log entries
// and handles the lifecycle of a log message from creation to output.
// A nil *LogEvent is a valid no-op receiver so that disabled levels cost
// nothing beyond the level check.
type LogEvent struct {
	buf    []byte
	logger *Logger
	level  Level
}

// newEvent creates a LogEvent with a pre-allocated buffer. Used internally
// by the logger to obtain reusable event objects from the object pool.
func newEvent(l *Logger) *LogEvent {
	return &LogEvent{
		logger: l,
		buf:    make([]byte, 0, 1024),
	}
}

// reset prepares the LogEvent for reuse by clearing previous state.
// Oversized buffers are released so one huge entry does not pin memory in the pool.
func (e *LogEvent) reset() {
	if cap(e.buf) > 4096 {
		e.buf = make([]byte, 0, 1024)
	}
	e.buf = e.buf[:0]
	e.level = DebugLevel
}

func (e *LogEvent) appendKey(k string) {
	if len(e.buf) > 0 {
		e.buf = append(e.buf, ' ')
	}
	e.buf = append(e.buf, k...)
	e.buf = append(e.buf, '=')
}

// Str appends a string field to the log event.
func (e *LogEvent) Str(k, v string) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(k)
	e.buf = strconv.AppendQuote(e.buf, v)
	return e
}

// Int appends an integer field to the log event.
func (e *LogEvent) Int(k string, v int) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(k)
	e.buf = strconv.AppendInt(e.buf, int64(v), 10)
	return e
}

// Int64 appends a 64-bit integer field to the log event.
func (e *LogEvent) Int64(k string, v int64) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(k)
	e.buf = strconv.AppendInt(e.buf, v, 10)
	return e
}

// Uint64 appends an unsigned 64-bit integer field to the log event.
func (e *LogEvent) Uint64(k string, v uint64) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(k)
	e.buf = strconv.AppendUint(e.buf, v, 10)
	return e
}

// Float64 appends a floating-point field to the log event.
func (e *LogEvent) Float64(k string, v float64) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(k)
	e.buf = strconv.AppendFloat(e.buf, v, 'f', -1, 64)
	return e
}

// Bool appends a boolean field to the log event.
func (e *LogEvent) Bool(k string, v bool) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(k)
	e.buf = strconv.AppendBool(e.buf, v)
	return e
}

// Dur appends a duration field, rendered in milliseconds.
func (e *LogEvent) Dur(k string, v time.Duration) *LogEvent {
	if e == nil {
		return nil
	}
	e.appendKey(k)
	e.buf = strconv.AppendFloat(e.buf, float64(v.Microseconds())/1000, 'f', 3, 64)
	e.buf = append(e.buf, "ms"...)
	return e
}

// Err appends an error field to the log event. A nil error appends nothing.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	return e.Str("error", err.Error())
}

// Msg appends the final message and emits the event to the logger's output.
// The event must not be used after calling Msg.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	if msg != "" {
		e.appendKey("msg")
		e.buf = strconv.AppendQuote(e.buf, msg)
	}
	e.logger.onEventEnd(e)
}

// End emits the event without a trailing message field.
func (e *LogEvent) End() {
	e.Msg("")
}
