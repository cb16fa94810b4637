package port

import "portmux/pkg/pin"

// ChangeFunc is called with the previous and the new frame after a sampled frame differs.
// It runs synchronously in the goroutine that delivered the sample. For a scheduled port
// that is the scheduler, inside a cycle and with the scheduler lock held: the hook must
// not call the Scheduler or AddActivePort and Clear of the pin manager, that deadlocks.
// Hand such work to another goroutine.
type ChangeFunc func(before, now Frame)

// InputPort is a port whose frame is written by the sampling side and read by the application.
type InputPort struct {
	Port

	// onChange is the optional change notification
	onChange ChangeFunc
}

// NewInput creates an input port with a low frame.
// Ports are created through the pin manager, which guarantees exclusive pins.
func NewInput(definition []pin.ID, driver Driver) *InputPort {
	i := &InputPort{}
	i.init(definition, driver)
	return i
}

// OnChange installs (or with nil removes) the change notification.
func (i *InputPort) OnChange(fn ChangeFunc) {
	i.mu.Lock()
	i.onChange = fn
	i.mu.Unlock()
}

// Update stores a sampled frame. This is the write path of the sampling side,
// the application only reads an input port.
func (i *InputPort) Update(f Frame) error {
	if len(f) != len(i.definition) {
		return &LengthMismatchError{Want: len(i.definition), Got: len(f)}
	}
	if err := f.Check(); err != nil {
		return err
	}

	i.mu.Lock()
	if i.frame.Equal(f) {
		i.mu.Unlock()
		return nil
	}

	before := i.frame.Clone()
	copy(i.frame, f)
	now := i.frame.Clone()
	fn := i.onChange
	i.mu.Unlock()

	if fn != nil {
		fn(before, now)
	}
	return nil
}

// Activate samples the pins and updates the frame.
func (i *InputPort) Activate() error {
	if i.driver == nil {
		return nil
	}

	f, err := i.driver.Read(i.definition)
	if err != nil {
		return err
	}
	return i.Update(f)
}
