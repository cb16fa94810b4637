//go:build linux

package raspberry

import (
	"sync"

	"github.com/warthog618/gpio"

	"portmux/pkg/pin"
	"portmux/pkg/port"
)

// RpiGPIO accesses the pins through the memory mapped /dev/gpiomem.
type RpiGPIO struct {
	mu sync.Mutex
	// pins caches the pin handles, output tracks the configured direction
	pins   map[pin.ID]*gpio.Pin
	output map[pin.ID]bool
}

// OpenGPIO maps the GPIO memory range from /dev/gpiomem.
func OpenGPIO() (*RpiGPIO, error) {
	if err := gpio.Open(); err != nil {
		return nil, err
	}

	return &RpiGPIO{
		pins:   map[pin.ID]*gpio.Pin{},
		output: map[pin.ID]bool{},
	}, nil
}

// Close unmaps GPIO memory.
func (r *RpiGPIO) Close() error {
	return gpio.Close()
}

// pin returns the handle of id in the requested direction. mu must be held.
func (r *RpiGPIO) pin(id pin.ID, output bool) *gpio.Pin {
	p, ok := r.pins[id]
	if !ok {
		p = gpio.NewPin(id.Int())
		r.pins[id] = p
	}

	if !ok || r.output[id] != output {
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
func (r *RpiGPIO) Write(pins []pin.ID, f port.Frame) error {
	if err := checkLength(pins, f); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, id := range pins {
		p := r.pin(id, true)
		if f[i] == port.High {
			p.High()
		} else {
			p.Low()
		}
	}
	return nil
}

// Read samples pins.
func (r *RpiGPIO) Read(pins []pin.ID) (port.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	f := port.NewFrame(len(pins))
	for i, id := range pins {
		if r.pin(id, false).Read() == gpio.High {
			f[i] = port.High
		}
	}
	return f, nil
}

// SetBias sets the pull state of input pins.
func (r *RpiGPIO) SetBias(pins []pin.ID, bias Bias) error {
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
			p.PullNone()
		}
	}
	return nil
}
