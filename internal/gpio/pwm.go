package gpio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

type valueSetter interface {
	SetValue(int) error
}

// softPWM toggles a line to approximate a duty factor.
// Duty 0 and 1 hold the line steady instead of toggling.
type softPWM struct {
	line   valueSetter
	period time.Duration
	duty   atomic.Uint64 // math.Float64bits
	done   chan struct{}
	wg     sync.WaitGroup
	level  int
}

func newSoftPWM(line valueSetter, hz int) *softPWM {
	if hz <= 0 {
		hz = 200
	}
	p := &softPWM{
		line:   line,
		period: time.Second / time.Duration(hz),
		done:   make(chan struct{}),
		level:  -1,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Set changes the duty factor, clamped to [0, 1].
func (p *softPWM) Set(duty float64) {
	duty = math.Max(0, math.Min(1, duty))
	p.duty.Store(math.Float64bits(duty))
}

// Duty returns the current duty factor.
func (p *softPWM) Duty() float64 {
	return math.Float64frombits(p.duty.Load())
}

// Stop ends the loop and leaves the line low.
func (p *softPWM) Stop() {
	close(p.done)
	p.wg.Wait()
	p.write(0)
}

func (p *softPWM) run() {
	defer p.wg.Done()
	for {
		d := p.Duty()
		switch {
		case d <= 0:
			p.write(0)
			if !p.wait(p.period) {
				return
			}
		case d >= 1:
			p.write(1)
			if !p.wait(p.period) {
				return
			}
		default:
			on := time.Duration(float64(p.period) * d)
			p.write(1)
			if !p.wait(on) {
				return
			}
			p.write(0)
			if !p.wait(p.period - on) {
				return
			}
		}
	}
}

func (p *softPWM) write(v int) {
	if v == p.level {
		return
	}
	if err := p.line.SetValue(v); err == nil {
		p.level = v
	}
}

func (p *softPWM) wait(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.done:
		return false
	case <-t.C:
		return true
	}
}
