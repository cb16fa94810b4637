//go:build linux

package raspberry

import (
	"sync"

	"github.com/stianeikeland/go-rpio/v4"

	"portmux/pkg/pin"
	"portmux/pkg/port"
)

// Rpio accesses the pins through the memory mapped registers of go-rpio.
type Rpio struct {
	mu sync.Mutex
	// output tracks the configured direction of each used pin
	output map[pin.ID]bool
}

// OpenRpio maps the GPIO memory range.
func OpenRpio() (*Rpio, error) {
	if err := rpio.Open(); err != nil {
		return nil, err
	}
	return &Rpio{output: map[pin.ID]bool{}}, nil
}

// Close unmaps GPIO memory.
func (r *Rpio) Close() error {
	return rpio.Close()
}

// pin switches id to the requested direction. mu must be held.
func (r *Rpio) pin(id pin.ID, output bool) rpio.Pin {
	p := rpio.Pin(id.Int())
	if current, ok := r.output[id]; !ok || current != output {
		if output {
			p.Output()
		} else {
			p.Input()
		}
		r.output[id] = output
	}
	return p
}

// Write drives the levels of f.
func (r *Rpio) Write(pins []pin.ID, f port.Frame) error {
	if err := checkLength(pins, f); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, id := range pins {
		if f[i] == port.High {
			r.pin(id, true).High()
		} else {
			r.pin(id, true).Low()
		}
	}
	return nil
}

// Read samples pins.
func (r *Rpio) Read(pins []pin.ID) (port.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := port.NewFrame(len(pins))
	for i, id := range pins {
		if r.pin(id, false).Read() == rpio.High {
			f[i] = port.High
		}
	}
	return f, nil
}

func (r *Rpio) SetBias(pins []pin.ID, bias Bias) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range pins {
		p := r.pin(id, false)
		switch bias {
		case BiasPullUp:
			p.PullUp()
		case BiasPullDown:
			p.PullDown()
		default:
			p.PullOff()
		}
	}
	return nil
}
