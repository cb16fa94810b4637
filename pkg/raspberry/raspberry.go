// Package raspberry drives and samples the gpio pins of the board for the ports
package raspberry

import (
	"errors"
	"fmt"
	"strings"

	"portmux/pkg/pin"
	"portmux/pkg/port"
)

var (
	// ErrInvalidParam is returned for an unknown bias or backend.
	ErrInvalidParam = errors.New("invalid parameters")
	// ErrUnsupported is returned if a backend isn't available on this platform.
	ErrUnsupported = errors.New("gpio backend not supported on this platform")
)

// GPIO is a driver for the pins of the board.
type GPIO interface {
	port.Driver
	// SetBias sets the pull resistors of input pins.
	SetBias(pins []pin.ID, bias Bias) error
	// Close releases the hardware.
	Close() error
}

// Bias defines the pull resistor of an input pin.
type Bias int

const (
	// BiasNone leaves the pin floating.
	BiasNone Bias = iota
	// BiasPullUp enables the pull up resistor.
	BiasPullUp
	// BiasPullDown enables the pull down resistor.
	BiasPullDown
)

// ParseBias converts the configuration terms pullup, pulldown and none.
func ParseBias(s string) (Bias, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return BiasNone, nil
	case "pullup":
		return BiasPullUp, nil
	case "pulldown":
		return BiasPullDown, nil
	}
	return BiasNone, fmt.Errorf("bias %q: %w", s, ErrInvalidParam)
}

func (b Bias) String() string {
	switch b {
	case BiasPullUp:
		return "pullup"
	case BiasPullDown:
		return "pulldown"
	default:
		return "none"
	}
}

// Open opens the gpio backend by name: emulator, gpio (/dev/gpiomem), rpio (go-rpio),
// gpiod (character device chip) or periph. chip is only used by gpiod.
func Open(backend, chip string) (g GPIO, err error) {
	switch backend {
	case "", "emulator":
		return NewEmulator(), nil
	case "gpio":
		g, err = OpenGPIO()
	case "rpio":
		g, err = OpenRpio()
	case "gpiod":
		g, err = OpenChip(chip)
	case "periph":
		g, err = OpenPeriph()
	default:
		return nil, fmt.Errorf("backend %q: %w", backend, ErrInvalidParam)
	}

	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", backend, err)
	}
	return g, nil
}

func checkLength(pins []pin.ID, f port.Frame) error {
	if len(pins) != len(f) {
		return &port.LengthMismatchError{Want: len(pins), Got: len(f)}
	}
	return nil
}
