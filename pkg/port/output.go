package port

import "portmux/pkg/pin"

// OutputPort is a port whose frame is written by the application and driven by the Driver.
type OutputPort struct {
	Port
}

// NewOutput creates an output port with a low frame.
// Ports are created through the pin manager, which guarantees exclusive pins.
func NewOutput(definition []pin.ID, driver Driver) *OutputPort {
	o := &OutputPort{}
	o.init(definition, driver)
	return o
}

// SetFrame replaces the whole frame.
func (o *OutputPort) SetFrame(f Frame) error {
	if len(f) != len(o.definition) {
		return &LengthMismatchError{Want: len(o.definition), Got: len(f)}
	}
	if err := f.Check(); err != nil {
		return err
	}

	o.mu.Lock()
	copy(o.frame, f)
	o.mu.Unlock()
	return nil
}

// SetPin sets the level at index i and returns the previous level.
func (o *OutputPort) SetPin(i int, s StateType) (StateType, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if i < 0 || i >= len(o.frame) {
		return Invalid, &IndexOutOfRangeError{Index: i, Len: len(o.frame)}
	}
	if !s.Valid() {
		return Invalid, &InvalidStateError{Index: i, State: s}
	}

	prev := o.frame[i]
	o.frame[i] = s
	return prev, nil
}

// Activate drives the current frame.
func (o *OutputPort) Activate() error {
	return Drive(o.driver, o.definition, o.Frame())
}
