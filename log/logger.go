// Package log provides the internal structured logger used by logsink
// components for diagnostics. It is deliberately console-only: the
// persistence engine cannot log through itself, so failures in the durable
// write path are reported here as a log of last resort.
package log

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Logger is a thread-safe leveled logger with a fluent field API.
// Events below the minimum level are discarded before any allocation.
type Logger struct {
	minLevel  atomic.Int32
	out       io.Writer
	mu        sync.Mutex // serializes writes to out
	eventPool sync.Pool
}

// NewLogger creates a Logger writing to out at the given minimum level.
// A nil out defaults to stderr.
func NewLogger(out io.Writer, minLevel Level) *Logger {
	if out == nil {
		out = os.Stderr
	}
	l := &Logger{out: out}
	l.minLevel.Store(int32(minLevel))
	l.eventPool.New = func() any {
		return newEvent(l)
	}
	return l
}

// SetLevel adjusts the minimum level at runtime.
func (l *Logger) SetLevel(level Level) {
	l.minLevel.Store(int32(level))
}

// Debug creates a debug-level log event, or nil if the level is disabled.
func (l *Logger) Debug() *LogEvent {
	return l.log(DebugLevel)
}

// Info creates an info-level log event, or nil if the level is disabled.
func (l *Logger) Info() *LogEvent {
	return l.log(InfoLevel)
}

// Warn creates a warn-level log event, or nil if the level is disabled.
func (l *Logger) Warn() *LogEvent {
	return l.log(WarnLevel)
}

// Error creates an error-level log event, or nil if the level is disabled.
func (l *Logger) Error() *LogEvent {
	return l.log(ErrorLevel)
}

func (l *Logger) log(level Level) *LogEvent {
	if Level(l.minLevel.Load()) > level {
		return nil
	}
	e := l.eventPool.Get().(*LogEvent)
	e.reset()
	e.level = level
	t := time.Now()
	e.buf = t.AppendFormat(e.buf, "2006-01-02 15:04:05.000")
	e.buf = append(e.buf, ' ')
	e.buf = append(e.buf, level.String()...)
	return e
}

// onEventEnd writes the finished event and returns it to the pool.
func (l *Logger) onEventEnd(e *LogEvent) {
	e.buf = append(e.buf, '\n')
	l.mu.Lock()
	_, _ = l.out.Write(e.buf)
	l.mu.Unlock()
	l.eventPool.Put(e)
}

var _defaultLogger atomic.Pointer[Logger]

func init() {
	_defaultLogger.Store(NewLogger(os.Stderr, DebugLevel))
}

// SetDefaultLogger replaces the package-level default logger.
func SetDefaultLogger(l *Logger) {
	if l != nil {
		_defaultLogger.Store(l)
	}
}

// Default returns the package-level default logger.
func Default() *Logger {
	return _defaultLogger.Load()
}

// Debug creates a debug-level log event using the default logger.
func Debug() *LogEvent {
	return Default().Debug()
}

// Info creates an info-level log event using the default logger.
func Info() *LogEvent {
	return Default().Info()
}

// Warn creates a warn-level log event using the default logger.
func Warn() *LogEvent {
	return Default().Warn()
}

// Error creates an error-level log event using the default logger.
func Error() *LogEvent {
	return Default().Error()
}
