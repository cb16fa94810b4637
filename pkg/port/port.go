// Package port holds the definition of a logical port: an ordered group of pins and its frame
package port

import (
	"fmt"
	"strings"
	"sync"

	"portmux/pkg/pin"
)

// StateType is the logical level of a single pin.
type StateType int

const (
	// High indicates a logical 1.
	High StateType = 1
	// Low indicates a logical 0.
	Low StateType = 0
	// Invalid indicates an unknown or invalid state.
	Invalid StateType = -1
)

func (s StateType) String() string {
	switch s {
	case High:
		return "high"
	case Low:
		return "low"
	default:
		return "invalid"
	}
}

// Valid reports whether s is High or Low.
func (s StateType) Valid() bool {
	return s == High || s == Low
}

// ParseState converts 1/0, high/low and on/off to a StateType.
func ParseState(s string) (StateType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "high", "on", "true":
		return High, nil
	case "0", "low", "off", "false":
		return Low, nil
	}
	return Invalid, fmt.Errorf("invalid level %q", s)
}

// Frame holds one level per pin, in the order of the port definition.
type Frame []StateType

// NewFrame returns a frame of n low levels.
func NewFrame(n int) Frame {
	return make(Frame, n)
}

// Check returns an *InvalidStateError for the first level that isn't High or Low.
func (f Frame) Check() error {
	for i, s := range f {
		if !s.Valid() {
			return &InvalidStateError{Index: i, State: s}
		}
	}
	return nil
}

// Clone returns a copy of f.
func (f Frame) Clone() Frame {
	c := make(Frame, len(f))
	copy(c, f)
	return c
}

// Equal reports whether f and o hold the same levels.
func (f Frame) Equal(o Frame) bool {
	if len(f) != len(o) {
		return false
	}
	for i := range f {
		if f[i] != o[i] {
			return false
		}
	}
	return true
}

// String formats the frame as a bit string, first pin first, e.g. "0110".
func (f Frame) String() string {
	var b strings.Builder
	for _, s := range f {
		switch s {
		case High:
			b.WriteByte('1')
		case Low:
			b.WriteByte('0')
		default:
			b.WriteByte('x')
		}
	}
	return b.String()
}

// ParseFrame converts a bit string like "0110" back to a frame.
func ParseFrame(s string) (Frame, error) {
	f := make(Frame, 0, len(s))
	for _, c := range s {
		switch c {
		case '1':
			f = append(f, High)
		case '0':
			f = append(f, Low)
		default:
			return nil, fmt.Errorf("invalid frame %q", s)
		}
	}
	return f, nil
}

// Port is the state both port kinds share: the fixed pin definition and the frame.
// The frame is guarded by mu because the scheduler reads it while the application writes.
type Port struct {
	Control

	// definition is the ordered, duplicate free list of pins
	definition []pin.ID
	// driver performs the physical transfer, nil disables it
	driver Driver

	mu    sync.RWMutex
	frame Frame
}

func (p *Port) init(definition []pin.ID, driver Driver) {
	p.definition = make([]pin.ID, len(definition))
	copy(p.definition, definition)
	p.driver = driver
	p.frame = NewFrame(len(definition))
}

// Len returns the number of pins of the port.
func (p *Port) Len() int {
	return len(p.definition)
}

// Definition returns a copy of the pin list.
func (p *Port) Definition() []pin.ID {
	def := make([]pin.ID, len(p.definition))
	copy(def, p.definition)
	return def
}

// OccupiedPins returns the pins claimed by the port.
func (p *Port) OccupiedPins() []pin.ID {
	return p.Definition()
}

// Frame returns a copy of the current frame.
func (p *Port) Frame() Frame {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.frame.Clone()
}

// Pin returns the level at index i.
func (p *Port) Pin(i int) (StateType, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if i < 0 || i >= len(p.frame) {
		return Invalid, &IndexOutOfRangeError{Index: i, Len: len(p.frame)}
	}
	return p.frame[i], nil
}

func (p *Port) String() string {
	return "[" + pin.Join(p.definition) + "]=" + p.Frame().String()
}
