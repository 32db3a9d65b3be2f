package persist

import (
	"reflect"
	"testing"
)

func TestDeltaCursorCollect(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e"}

	var c deltaCursor
	got := c.collect(lines, 3)
	if !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Errorf("collect from zero = %v", got)
	}

	c.advance(3)
	got = c.collect(lines, 5)
	if !reflect.DeepEqual(got, []string{"d", "e"}) {
		t.Errorf("collect after advance = %v", got)
	}

	// end beyond buffer length is clamped
	got = c.collect(lines, 100)
	if !reflect.DeepEqual(got, []string{"d", "e"}) {
		t.Errorf("collect with clamped end = %v", got)
	}

	// nothing new below an already-written end
	if got := c.collect(lines, 2); got != nil {
		t.Errorf("collect below written cursor = %v, want nil", got)
	}
}

func TestDeltaCursorDroppedExcluded(t *testing.T) {
	lines := []string{"a", "b", "c", "d", "e", "f"}

	var c deltaCursor
	c.advance(1)
	c.markDropped(span{start: 2, end: 4}) // c, d abandoned

	got := c.collect(lines, 6)
	if !reflect.DeepEqual(got, []string{"b", "e", "f"}) {
		t.Errorf("collect must skip dropped spans, got %v", got)
	}

	// A covering write past the dropped span must not resurrect it later.
	c.advance(6)
	if len(c.dropped) != 0 {
		t.Errorf("passed dropped spans should be pruned, got %v", c.dropped)
	}
	if got := c.collect(lines, 6); got != nil {
		t.Errorf("nothing left to collect, got %v", got)
	}
}

func TestDeltaCursorDroppedAtBoundaries(t *testing.T) {
	lines := []string{"a", "b", "c", "d"}

	var c deltaCursor
	c.markDropped(span{start: 0, end: 1}) // leading drop
	c.markDropped(span{start: 3, end: 4}) // trailing drop

	got := c.collect(lines, 4)
	if !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("boundary drops, got %v", got)
	}

	// Entirely dropped range collects nothing but still advances.
	var c2 deltaCursor
	c2.markDropped(span{start: 0, end: 3})
	if got := c2.collect(lines[:3], 3); len(got) != 0 {
		t.Errorf("fully dropped range must collect nothing, got %v", got)
	}
	c2.advance(3)
	if c2.written != 3 {
		t.Errorf("advance over dropped range, written = %d", c2.written)
	}
}

func TestDeltaCursorMarkDroppedEmptySpan(t *testing.T) {
	var c deltaCursor
	c.markDropped(span{start: 3, end: 3})
	c.markDropped(span{start: 5, end: 2})
	if len(c.dropped) != 0 {
		t.Errorf("empty spans must be ignored, got %v", c.dropped)
	}
}

func TestDeltaCursorAdvanceBumpsEnqueued(t *testing.T) {
	var c deltaCursor
	c.enqueued = 2
	c.advance(5)
	if c.written != 5 || c.enqueued != 5 {
		t.Errorf("covering write past enqueued must bump both cursors, written=%d enqueued=%d",
			c.written, c.enqueued)
	}
}

func TestDeltaCursorReset(t *testing.T) {
	var c deltaCursor
	c.enqueued = 4
	c.advance(2)
	c.markDropped(span{start: 2, end: 3})
	c.reset()
	if c.enqueued != 0 || c.written != 0 || c.dropped != nil {
		t.Errorf("reset must zero the cursor, got %+v", c)
	}
}

func TestChannelString(t *testing.T) {
	if ChannelNormal.String() != "normal" || ChannelError.String() != "error" {
		t.Error("channel names changed")
	}
	if Channel(99).String() != "unknown" {
		t.Error("out-of-range channel must stringify as unknown")
	}
}
