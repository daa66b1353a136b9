package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestMockClock_Now(t *testing.T) {
	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	if !clock.Now().Equal(base) {
		t.Errorf("Now() = %v, want %v", clock.Now(), base)
	}

	// Time does not move on its own.
	if !clock.Now().Equal(base) {
		t.Errorf("second Now() = %v, want %v", clock.Now(), base)
	}
}

func TestMockClock_Set(t *testing.T) {
	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	later := base.Add(3 * time.Hour)
	clock.Set(later)

	if !clock.Now().Equal(later) {
		t.Errorf("Now() after Set = %v, want %v", clock.Now(), later)
	}
}

func TestMockClock_Advance(t *testing.T) {
	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	clock.Advance(90 * time.Second)
	if !clock.Now().Equal(base.Add(90 * time.Second)) {
		t.Errorf("Now() after Advance = %v, want %v", clock.Now(), base.Add(90*time.Second))
	}

	clock.Advance(30 * time.Second)
	if !clock.Now().Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Now() after second Advance = %v, want %v", clock.Now(), base.Add(2*time.Minute))
	}
}

func TestMockClock_Since(t *testing.T) {
	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.UTC)
	clock := NewMockClock(base)

	started := base.Add(-45 * time.Second)
	if d := clock.Since(started); d != 45*time.Second {
		t.Errorf("Since() = %v, want 45s", d)
	}

	clock.Advance(15 * time.Second)
	if d := clock.Since(started); d != time.Minute {
		t.Errorf("Since() after Advance = %v, want 1m", d)
	}
}
