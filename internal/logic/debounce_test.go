package logic

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func ms(n int) time.Time {
	return t0.Add(time.Duration(n) * time.Millisecond)
}

func TestDebouncerZeroWindow(t *testing.T) {
	d := NewDebouncer(0)

	samples := []bool{false, true, true, false, true}
	for i, s := range samples {
		if got := d.Process(s, ms(i*20)); got != s {
			t.Errorf("sample %d: got %v, want %v", i, got, s)
		}
	}
}

func TestDebouncerStartsReleased(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)
	if d.Stable() {
		t.Error("new debouncer should be released")
	}
}

func TestBounceShorterThanWindow(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)

	d.Process(true, ms(0))
	d.Process(false, ms(20))
	if got := d.Process(false, ms(60)); got {
		t.Error("bounce shorter than window should be ignored")
	}
}

func TestMultipleBounces(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)

	states := []bool{true, false, true, false, true}
	for i, s := range states {
		if d.Process(s, ms(i*10)) {
			t.Errorf("iteration %d: expected released during bouncing", i)
		}
	}

	// Timer restarted at the last rising edge (40ms).
	if d.Process(true, ms(70)) {
		t.Error("expected released before window from last change")
	}
	if !d.Process(true, ms(80)) {
		t.Error("expected pressed after settling")
	}
}

func TestDebounceExactTiming(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)

	d.Process(true, ms(0))
	if d.Process(true, ms(39)) {
		t.Error("should not switch at 39ms")
	}
	if !d.Process(true, ms(40)) {
		t.Error("should switch at exactly 40ms")
	}
}

func TestBackToBackTransitions(t *testing.T) {
	d := NewDebouncer(40 * time.Millisecond)

	d.Process(true, ms(0))
	if !d.Process(true, ms(40)) {
		t.Fatal("expected pressed")
	}

	d.Process(false, ms(60))
	if !d.Process(false, ms(80)) {
		t.Error("release not yet stable, expected still pressed")
	}
	if d.Process(false, ms(100)) {
		t.Error("expected released")
	}
}
