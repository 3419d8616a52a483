package core

import (
	"testing"
	"time"
)

func TestBlockClockHeight(t *testing.T) {
	genesis := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewBlockClock(genesis, 5*time.Second)

	clock.now = func() time.Time { return genesis.Add(-time.Minute) }
	if h := clock.Height(); h != 0 {
		t.Fatalf("height before genesis = %d, want 0", h)
	}
	clock.now = func() time.Time { return genesis.Add(62 * time.Second) }
	if h := clock.Height(); h != 12 {
		t.Fatalf("height = %d, want 12", h)
	}
}

func TestManualClock(t *testing.T) {
	clock := NewManualClock(10)
	if got := clock.Advance(5); got != 15 {
		t.Fatalf("advance = %d, want 15", got)
	}
	clock.Set(3)
	if clock.Height() != 3 {
		t.Fatalf("height = %d, want 3", clock.Height())
	}
}
