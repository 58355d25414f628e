package gpio

import (
	"errors"
	"testing"

	"github.com/sweeney/spot-outlet/internal/logic"
)

func TestFakeButtonPressed(t *testing.T) {
	f := NewFakeButton(false, true, false)

	want := []bool{false, true, false, false}
	for i, w := range want {
		got, err := f.Pressed()
		if err != nil {
			t.Fatalf("sample %d: unexpected error: %v", i, err)
		}
		if got != w {
			t.Errorf("sample %d: got %v, want %v", i, got, w)
		}
	}
	if !f.Exhausted() {
		t.Error("expected Exhausted after repeating last sample")
	}
	if f.Reads() != 4 {
		t.Errorf("Reads: got %d, want 4", f.Reads())
	}
}

func TestFakeButtonNotExhaustedEarly(t *testing.T) {
	f := NewFakeButton(false, true)
	f.Pressed()
	f.Pressed()
	if f.Exhausted() {
		t.Error("should not be exhausted until the last sample repeats")
	}
}

func TestFakeButtonNoSamples(t *testing.T) {
	f := NewFakeButton()

	if _, err := f.Pressed(); err == nil {
		t.Error("expected error with no samples")
	}
}

func TestFakeButtonError(t *testing.T) {
	f := NewFakeButton(true)
	f.SetReadError(errors.New("simulated error"))

	_, err := f.Pressed()
	if err == nil || err.Error() != "simulated error" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFakeButtonClose(t *testing.T) {
	f := NewFakeButton(true)
	if err := f.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !f.Closed {
		t.Error("should be closed after Close()")
	}
}

func TestFakeOutletRecords(t *testing.T) {
	f := NewFakeOutlet()
	f.Set(true)
	f.Set(false)

	f.SetFailure(errors.New("relay stuck"))
	if err := f.Set(true); err == nil {
		t.Error("expected SetError to be returned")
	}

	got := f.History()
	if len(got) != 2 || got[0] != true || got[1] != false {
		t.Errorf("History: got %v, want [true false]", got)
	}
}

func TestFakeLEDRecords(t *testing.T) {
	f := NewFakeLED()
	f.SetColor(logic.ColorGreen)
	f.SetColor(logic.ColorRed)

	got := f.History()
	if len(got) != 2 || got[0] != logic.ColorGreen || got[1] != logic.ColorRed {
		t.Errorf("History: got %v", got)
	}
}
