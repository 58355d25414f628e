package gpio

import (
	"errors"
	"sync"

	"github.com/sweeney/spot-outlet/internal/logic"
)

// FakeButton is a test double that returns scripted button samples.
// It is safe for use from a polling goroutine and a test goroutine.
type FakeButton struct {
	mu sync.Mutex

	// Samples contains scripted pressed values to return.
	// Each call to Pressed() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// reads counts calls to Pressed
	reads int

	// ReadError, if set, will be returned by Pressed()
	ReadError error

	// Closed tracks if Close was called
	Closed bool
}

// NewFakeButton creates a FakeButton with the given samples.
func NewFakeButton(samples ...bool) *FakeButton {
	return &FakeButton{Samples: samples}
}

// Pressed returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeButton) Pressed() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++

	if f.ReadError != nil {
		return false, f.ReadError
	}
	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return sample, nil
}

// Exhausted reports whether the last sample has been returned at least once
// after all others.
func (f *FakeButton) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Samples) > 0 && f.index == len(f.Samples)-1 && f.reads > len(f.Samples)
}

// Reads returns the number of Pressed calls.
func (f *FakeButton) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// SetReadError changes the error returned by Pressed.
func (f *FakeButton) SetReadError(err error) {
	f.mu.Lock()
	f.ReadError = err
	f.mu.Unlock()
}

// Close marks the button as closed.
func (f *FakeButton) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeOutlet records outlet writes.
type FakeOutlet struct {
	mu sync.Mutex

	// Writes contains every value passed to Set.
	Writes []bool

	// SetError, if set, will be returned by Set without recording.
	SetError error

	Closed bool
}

// NewFakeOutlet creates a FakeOutlet.
func NewFakeOutlet() *FakeOutlet {
	return &FakeOutlet{}
}

// Set records the write.
func (f *FakeOutlet) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, on)
	return nil
}

// SetFailure changes the error returned by Set.
func (f *FakeOutlet) SetFailure(err error) {
	f.mu.Lock()
	f.SetError = err
	f.mu.Unlock()
}

// History returns a copy of recorded writes.
func (f *FakeOutlet) History() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.Writes...)
}

// Close marks the outlet as closed.
func (f *FakeOutlet) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// FakeLED records indicator colors.
type FakeLED struct {
	mu sync.Mutex

	// Colors contains every value passed to SetColor.
	Colors []logic.Color

	// SetError, if set, will be returned by SetColor without recording.
	SetError error

	Closed bool
}

// NewFakeLED creates a FakeLED.
func NewFakeLED() *FakeLED {
	return &FakeLED{}
}

// SetColor records the color.
func (f *FakeLED) SetColor(c logic.Color) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.Colors = append(f.Colors, c)
	return nil
}

// History returns a copy of recorded colors.
func (f *FakeLED) History() []logic.Color {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Color(nil), f.Colors...)
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}
