package raspberry

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"portmux/pkg/pin"
	"portmux/pkg/port"
)

// Periph accesses the pins through the periph.io host drivers.
type Periph struct {
	mu    sync.Mutex
	pins  map[pin.ID]gpio.PinIO
	input map[pin.ID]bool
}

// OpenPeriph initializes the periph.io host drivers.
func OpenPeriph() (*Periph, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	return &Periph{
		pins:  map[pin.ID]gpio.PinIO{},
		input: map[pin.ID]bool{},
	}, nil
}

// resolve looks up a pin by name, caching the result. mu must be held.
func (p *Periph) resolve(id pin.ID) (gpio.PinIO, error) {
	if io, ok := p.pins[id]; ok {
		return io, nil
	}

	io := gpioreg.ByName(id.String())
	if io == nil {
		return nil, fmt.Errorf("pin %v not found in hardware", id)
	}
	p.pins[id] = io
	return io, nil
}

// Write drives the levels of f.
func (p *Periph) Write(pins []pin.ID, f port.Frame) error {
	if err := checkLength(pins, f); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for i, id := range pins {
		io, err := p.resolve(id)
		if err != nil {
			return err
		}

		level := gpio.Low
		if f[i] == port.High {
			level = gpio.High
		}
		if err := io.Out(level); err != nil {
			return fmt.Errorf("set pin %v: %w", id, err)
		}
		p.input[id] = false
	}
	return nil
}

// Read samples pins.
func (p *Periph) Read(pins []pin.ID) (port.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	f := port.NewFrame(len(pins))
	for i, id := range pins {
		io, err := p.resolve(id)
		if err != nil {
			return nil, err
		}

		if !p.input[id] {
			if err := io.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
				return nil, fmt.Errorf("set pin %v to input: %w", id, err)
			}
			p.input[id] = true
		}

		if io.Read() == gpio.High {
			f[i] = port.High
		}
	}
	return f, nil
}

// SetBias sets pins to input with the given pull resistors.
func (p *Periph) SetBias(pins []pin.ID, bias Bias) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pull := gpio.Float
	switch bias {
	case BiasPullUp:
		pull = gpio.PullUp
	case BiasPullDown:
		pull = gpio.PullDown
	}

	for _, id := range pins {
		io, err := p.resolve(id)
		if err != nil {
			return err
		}
		if err := io.In(pull, gpio.NoEdge); err != nil {
			return fmt.Errorf("set pin %v to input: %w", id, err)
		}
		p.input[id] = true
	}
	return nil
}

// Close halts all used pins.
func (p *Periph) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var err error
	for id, io := range p.pins {
		if e := io.Halt(); e != nil && err == nil {
			err = e
		}
		delete(p.pins, id)
	}
	return err
}
