package raspberry

import (
	"sync"

	"portmux/pkg/pin"
	"portmux/pkg/port"
)

// Emulator keeps the pin levels in memory. It's used without hardware and in tests:
// Set emulates an external level on an input pin, Level shows what was driven.
type Emulator struct {
	mu     sync.RWMutex
	levels map[pin.ID]port.StateType
	bias   map[pin.ID]Bias
	writes map[pin.ID]int
	err    error
}

// NewEmulator creates an emulator with all pins low.
func NewEmulator() *Emulator {
	return &Emulator{
		levels: map[pin.ID]port.StateType{},
		bias:   map[pin.ID]Bias{},
		writes: map[pin.ID]int{},
	}
}

// Write stores the levels of f.
func (e *Emulator) Write(pins []pin.ID, f port.Frame) error {
	if err := checkLength(pins, f); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return e.err
	}
	for i, id := range pins {
		e.levels[id] = f[i]
		e.writes[id]++
	}
	return nil
}

// Read returns the stored levels, a floating pin with pull up reads high.
func (e *Emulator) Read(pins []pin.ID) (port.Frame, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.err != nil {
		return nil, e.err
	}

	f := port.NewFrame(len(pins))
	for i, id := range pins {
		s, ok := e.levels[id]
		switch {
		case ok:
			f[i] = s
		case e.bias[id] == BiasPullUp:
			f[i] = port.High
		}
	}
	return f, nil
}

// SetBias stores the pull resistors.
func (e *Emulator) SetBias(pins []pin.ID, bias Bias) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range pins {
		e.bias[id] = bias
	}
	return nil
}

// Set emulates an external level on a pin.
func (e *Emulator) Set(id pin.ID, s port.StateType) {
	e.mu.Lock()
	e.levels[id] = s
	e.mu.Unlock()
}

// Release removes an emulated level, the pin floats again.
func (e *Emulator) Release(id pin.ID) {
	e.mu.Lock()
	delete(e.levels, id)
	e.mu.Unlock()
}

// Level returns the current level of a pin.
func (e *Emulator) Level(id pin.ID) port.StateType {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.levels[id]
}

// Writes returns how often a pin was driven.
func (e *Emulator) Writes(id pin.ID) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.writes[id]
}

// Fail makes every following Write and Read return err, nil heals the emulator.
func (e *Emulator) Fail(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// Close does nothing.
func (e *Emulator) Close() error {
	return nil
}
