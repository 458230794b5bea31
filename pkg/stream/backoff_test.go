package stream

import (
	"testing"
	"time"
)

func TestBackoffDoublesUpToCeiling(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second)

	// un-jittered sequence: 1,2,4,8,16,30,30...
	wantBase := []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}
	for i, want := range wantBase {
		got := b.next()
		lo := time.Duration(float64(want) * 0.8)
		hi := time.Duration(float64(want) * 1.2)
		if got < lo || got > hi {
			t.Fatalf("step %d: got %v, want within [%v, %v] of %v", i, got, lo, hi, want)
		}
	}
}

func TestBackoffResetReturnsToInitial(t *testing.T) {
	b := newBackoff(time.Second, 30*time.Second)
	b.next()
	b.next()
	b.reset()

	got := b.next()
	lo := 800 * time.Millisecond
	hi := 1200 * time.Millisecond
	if got < lo || got > hi {
		t.Fatalf("after reset expected ~1s, got %v", got)
	}
}
