package persist

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SinkMode selects how an output destination persists log content.
// It is a closed variant chosen once per destination at configuration time.
type SinkMode int

const (
	// SinkAppendDelta appends exactly the unsaved line range at the tracked
	// end of file. Prior content is never re-read or rewritten.
	SinkAppendDelta SinkMode = iota

	// SinkFullRewrite rewrites the entire file from the full current buffer
	// on every save. Compatibility mode for wrapped report output whose
	// document structure cannot be append-extended. Strictly less efficient.
	SinkFullRewrite
)

// ParseSinkMode converts a string representation to a SinkMode with
// case-insensitive parsing. Returns SinkAppendDelta for empty input.
func ParseSinkMode(s string) (SinkMode, error) {
	switch strings.ToLower(s) {
	case "", "append":
		return SinkAppendDelta, nil
	case "rewrite":
		return SinkFullRewrite, nil
	}
	return SinkAppendDelta, fmt.Errorf("unknown sink mode %q", s)
}

// FlushPolicy controls when a producer call turns buffered lines into a
// writer task. It is runtime-mutable via Engine.ConfigureFlushPolicy and read
// as an atomically swapped snapshot, never field by field.
type FlushPolicy struct {
	// IdleMillSec flushes when the gap since the channel's previous producer
	// call exceeds this many milliseconds. Zero disables idle-based flushing.
	IdleMillSec int `mapstructure:"idleMillSec"`

	// BufferLineThreshold flushes when the count of pending, not yet enqueued
	// lines reaches this value. Zero disables threshold-based flushing.
	BufferLineThreshold int `mapstructure:"bufferLineThreshold"`

	// ErrorImmediate force-flushes every error record. Forced tasks are never
	// dropped; under sustained overload they fall back to a synchronous write
	// on the producer.
	ErrorImmediate bool `mapstructure:"errorImmediate"`
}

// RateControl configures optional duplicate-message suppression layered above
// the enqueue path. At most MaxRepeats identical lines are admitted per
// WindowSec window; the rest are counted as suppressed and discarded.
type RateControl struct {
	Enabled    bool `mapstructure:"enabled"`
	WindowSec  int  `mapstructure:"windowSec"`
	MaxRepeats int  `mapstructure:"maxRepeats"`
}

// EngineCfg represents the persistence engine configuration.
// Validate applies defaults for missing values and rejects inconsistent ones.
type EngineCfg struct {
	// Dir is the directory holding the channel output files.
	// Created on demand with parent directories.
	Dir string `mapstructure:"dir"`

	// FilePrefix names the output files: <prefix>_log.txt for the normal
	// channel and <prefix>_error_log.txt for the error channel.
	FilePrefix string `mapstructure:"filePrefix"`

	// QueueCap bounds the writer task queue. Non-forced tasks that find the
	// queue full are abandoned and counted; forced tasks wait a bounded
	// second-chance window and then write synchronously.
	QueueCap int `mapstructure:"queueCap"`

	// WriterBatchCap limits how many queued tasks the writer drains and
	// coalesces per wake-up.
	WriterBatchCap int `mapstructure:"writerBatchCap"`

	// ForceWaitMillSec is the bounded second-chance window a forced enqueue
	// waits for queue space before falling back to a direct write.
	ForceWaitMillSec int `mapstructure:"forceWaitMillSec"`

	// IdleTickMillSec is the interval of the lifecycle idle tick that
	// re-evaluates the idle flush rule independently of producer calls,
	// bounding worst-case undurable latency to idle + tick. Zero disables
	// the tick.
	IdleTickMillSec int `mapstructure:"idleTickMillSec"`

	// RotateLineCap rotates a channel's file once its buffer reaches this
	// many lines. Zero disables rotation.
	RotateLineCap int `mapstructure:"rotateLineCap"`

	// WriterPaceBatchPerSec smooths disk write bursts by pacing writer
	// batches through a leaky bucket. Zero disables pacing.
	WriterPaceBatchPerSec int `mapstructure:"writerPaceBatchPerSec"`

	// NormalSink and ErrorSink select the durable write mode per destination:
	// "append" (default) or "rewrite".
	NormalSink string `mapstructure:"normalSink"`
	ErrorSink  string `mapstructure:"errorSink"`

	// Policy is the initial flush policy. Mutable at runtime through
	// Engine.ConfigureFlushPolicy.
	Policy FlushPolicy `mapstructure:"policy"`

	// Rate is the initial duplicate-suppression configuration. Mutable at
	// runtime through Engine.ConfigureRateControl.
	Rate RateControl `mapstructure:"rateControl"`

	// Parsed sink modes, populated by Validate.
	normalMode SinkMode
	errorMode  SinkMode
}

// Validate validates the configuration and applies defaults for missing or
// invalid values.
func (cfg *EngineCfg) Validate() error {
	if cfg.Dir == "" {
		cfg.Dir = "./logs"
	}
	cfg.Dir = filepath.Clean(cfg.Dir)

	if cfg.FilePrefix == "" {
		cfg.FilePrefix = "logsink"
	}

	if cfg.QueueCap <= 0 {
		cfg.QueueCap = 1024
	}
	if cfg.WriterBatchCap <= 0 {
		cfg.WriterBatchCap = 32
	}
	if cfg.ForceWaitMillSec <= 0 {
		cfg.ForceWaitMillSec = 50
	}
	if cfg.IdleTickMillSec < 0 {
		return fmt.Errorf("idle tick interval must be non-negative, got %dms", cfg.IdleTickMillSec)
	}
	if cfg.RotateLineCap < 0 {
		return fmt.Errorf("rotate line cap must be non-negative, got %d", cfg.RotateLineCap)
	}
	if cfg.WriterPaceBatchPerSec < 0 {
		return fmt.Errorf("writer pace must be non-negative, got %d", cfg.WriterPaceBatchPerSec)
	}

	if cfg.Policy.IdleMillSec < 0 {
		return fmt.Errorf("idle flush threshold must be non-negative, got %dms", cfg.Policy.IdleMillSec)
	}
	if cfg.Policy.BufferLineThreshold < 0 {
		return fmt.Errorf("buffer line threshold must be non-negative, got %d", cfg.Policy.BufferLineThreshold)
	}

	if cfg.Rate.Enabled {
		if cfg.Rate.WindowSec <= 0 {
			cfg.Rate.WindowSec = 10
		}
		if cfg.Rate.MaxRepeats <= 0 {
			cfg.Rate.MaxRepeats = 5
		}
	}

	var err error
	if cfg.normalMode, err = ParseSinkMode(cfg.NormalSink); err != nil {
		return fmt.Errorf("normal sink: %w", err)
	}
	if cfg.errorMode, err = ParseSinkMode(cfg.ErrorSink); err != nil {
		return fmt.Errorf("error sink: %w", err)
	}

	return nil
}

var _defaultCfg = &EngineCfg{
	Dir:              "./logs",
	FilePrefix:       "logsink",
	QueueCap:         1024,
	WriterBatchCap:   32,
	ForceWaitMillSec: 50,
	IdleTickMillSec:  500,
	RotateLineCap:    100000,
	Policy: FlushPolicy{
		IdleMillSec:         10000,
		BufferLineThreshold: 1000,
		ErrorImmediate:      true,
	},
}

func getDefaultCfg() *EngineCfg {
	cp := *_defaultCfg
	return &cp
}
