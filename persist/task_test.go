package persist

import (
	"reflect"
	"testing"
)

func TestCoalesceMergesSameChannelGen(t *testing.T) {
	in := []writeTask{
		{ch: ChannelNormal, gen: 1, start: 0, end: 5},
		{ch: ChannelNormal, gen: 1, start: 5, end: 9},
		{ch: ChannelNormal, gen: 1, start: 9, end: 12, force: true},
	}
	got := coalesce(in)
	want := []writeTask{{ch: ChannelNormal, gen: 1, start: 0, end: 12, force: true}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("coalesce = %+v, want %+v", got, want)
	}
}

func TestCoalesceKeepsDistinctKeys(t *testing.T) {
	in := []writeTask{
		{ch: ChannelNormal, gen: 1, start: 0, end: 2},
		{ch: ChannelError, gen: 1, start: 0, end: 3},
		{ch: ChannelNormal, gen: 2, start: 0, end: 1},
		{ch: ChannelNormal, gen: 1, start: 2, end: 4},
	}
	got := coalesce(in)
	want := []writeTask{
		{ch: ChannelNormal, gen: 1, start: 0, end: 4},
		{ch: ChannelError, gen: 1, start: 0, end: 3},
		{ch: ChannelNormal, gen: 2, start: 0, end: 1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("coalesce = %+v, want %+v", got, want)
	}
}

func TestCoalescePreservesFirstAppearanceOrder(t *testing.T) {
	in := []writeTask{
		{ch: ChannelError, gen: 3, start: 0, end: 1},
		{ch: ChannelNormal, gen: 3, start: 0, end: 1},
		{ch: ChannelError, gen: 3, start: 1, end: 2},
	}
	got := coalesce(in)
	if len(got) != 2 || got[0].ch != ChannelError || got[1].ch != ChannelNormal {
		t.Errorf("first-appearance order not preserved: %+v", got)
	}
}

func TestCoalesceSmallInputs(t *testing.T) {
	if got := coalesce(nil); len(got) != 0 {
		t.Errorf("coalesce(nil) = %+v", got)
	}
	one := []writeTask{{ch: ChannelNormal, gen: 1, end: 1}}
	if got := coalesce(one); !reflect.DeepEqual(got, one) {
		t.Errorf("coalesce single = %+v", got)
	}
}
