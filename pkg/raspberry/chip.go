//go:build linux

package raspberry

import (
	"sync"

	"github.com/warthog618/gpiod"

	"portmux/pkg/pin"
	"portmux/pkg/port"
)

const consumer = "portmux"

// Chip represents a single GPIO chip of the character device interface.
// The lines of a pin list are requested on first use and kept until Close.
type Chip struct {
	gpiodChip *gpiod.Chip

	mu    sync.Mutex
	lines map[string]*lines
}

// lines is one line request and its direction.
type lines struct {
	gpiodLines *gpiod.Lines
	output     bool
	bias       Bias
}

// OpenChip opens a GPIO character device, e.g. gpiochip0.
func OpenChip(name string) (*Chip, error) {
	if name == "" {
		name = "gpiochip0"
	}

	c, err := gpiod.NewChip(name, gpiod.WithConsumer(consumer))
	if err != nil {
		return nil, err
	}
	return &Chip{gpiodChip: c, lines: map[string]*lines{}}, nil
}

// request returns the lines of pins in the requested direction. mu must be held.
func (c *Chip) request(pins []pin.ID, output bool, bias Bias) (*lines, error) {
	key := pin.Join(pins)
	if l, ok := c.lines[key]; ok {
		if l.output == output && (output || l.bias == bias) {
			return l, nil
		}
		_ = l.gpiodLines.Close()
		delete(c.lines, key)
	}

	offsets := make([]int, len(pins))
	for i, id := range pins {
		offsets[i] = id.Int()
	}

	var opts []gpiod.LineReqOption
	if output {
		opts = append(opts, gpiod.AsOutput())
	} else {
		opts = append(opts, gpiod.AsInput)
		switch bias {
		case BiasPullUp:
			opts = append(opts, gpiod.WithPullUp)
		case BiasPullDown:
			opts = append(opts, gpiod.WithPullDown)
		}
	}

	gl, err := c.gpiodChip.RequestLines(offsets, opts...)
	if err != nil {
		return nil, err
	}

	l := &lines{gpiodLines: gl, output: output, bias: bias}
	c.lines[key] = l
	return l, nil
}

// Write drives the levels of f.
func (c *Chip) Write(pins []pin.ID, f port.Frame) error {
	if err := checkLength(pins, f); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	l, err := c.request(pins, true, BiasNone)
	if err != nil {
		return err
	}

	values := make([]int, len(f))
	for i, s := range f {
		if s == port.High {
			values[i] = 1
		}
	}
	return l.gpiodLines.SetValues(values)
}

// Read samples pins.
func (c *Chip) Read(pins []pin.ID) (port.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	bias := BiasNone
	if l, ok := c.lines[pin.Join(pins)]; ok {
		bias = l.bias
	}

	l, err := c.request(pins, false, bias)
	if err != nil {
		return nil, err
	}

	values := make([]int, len(pins))
	if err := l.gpiodLines.Values(values); err != nil {
		return nil, err
	}

	f := port.NewFrame(len(pins))
	for i, v := range values {
		if v != 0 {
			f[i] = port.High
		}
	}
	return f, nil
}

// SetBias requests pins as input with the given pull resistors.
func (c *Chip) SetBias(pins []pin.ID, bias Bias) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := c.request(pins, false, bias)
	return err
}

// Close releases all requested lines and the chip.
func (c *Chip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, l := range c.lines {
		_ = l.gpiodLines.Close()
		delete(c.lines, key)
	}
	return c.gpiodChip.Close()
}
