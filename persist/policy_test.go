package persist

import (
	"testing"
	"time"
)

func TestEvaluateFlushPrecedence(t *testing.T) {
	p := &FlushPolicy{
		IdleMillSec:         100,
		BufferLineThreshold: 10,
		ErrorImmediate:      true,
	}

	tests := []struct {
		name    string
		idle    time.Duration
		pending int
		isErr   bool
		closing bool
		want    flushDecision
	}{
		{"no rule matches", 10 * time.Millisecond, 1, false, false, flushNone},
		{"closing wins over everything", 10 * time.Millisecond, 1, false, true, flushForced},
		{"error record forces", 10 * time.Millisecond, 1, true, false, flushForced},
		{"idle gap exceeded", 200 * time.Millisecond, 1, false, false, flushNormal},
		{"idle gap exactly at threshold does not flush", 100 * time.Millisecond, 1, false, false, flushNone},
		{"threshold reached", 10 * time.Millisecond, 10, false, false, flushNormal},
		{"threshold exceeded", 10 * time.Millisecond, 15, false, false, flushNormal},
		{"error beats idle", 200 * time.Millisecond, 15, true, false, flushForced},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := evaluateFlush(p, tt.idle, tt.pending, tt.isErr, tt.closing)
			if got != tt.want {
				t.Errorf("evaluateFlush() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateFlushDisabledRules(t *testing.T) {
	p := &FlushPolicy{IdleMillSec: 0, BufferLineThreshold: 0, ErrorImmediate: false}

	if got := evaluateFlush(p, time.Hour, 1000000, false, false); got != flushNone {
		t.Errorf("disabled rules should never flush, got %v", got)
	}
	if got := evaluateFlush(p, 0, 0, true, false); got != flushNone {
		t.Errorf("error record with errorImmediate off should not force, got %v", got)
	}
	if got := evaluateFlush(p, 0, 0, false, true); got != flushForced {
		t.Errorf("closing must force regardless of policy, got %v", got)
	}
}

func TestEvaluateFlushIsPure(t *testing.T) {
	p := &FlushPolicy{IdleMillSec: 50, BufferLineThreshold: 5, ErrorImmediate: true}
	for i := 0; i < 100; i++ {
		if got := evaluateFlush(p, 60*time.Millisecond, 3, false, false); got != flushNormal {
			t.Fatalf("same inputs must yield the same decision, got %v on call %d", got, i)
		}
	}
}
