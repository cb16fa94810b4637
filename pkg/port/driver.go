package port

import "portmux/pkg/pin"

// Driver performs the electrical transfer of frames.
// Implementations must return quickly, they are called from the activation cycle.
type Driver interface {
	// Write drives the levels of frame to pins, frame[i] belongs to pins[i].
	Write(pins []pin.ID, frame Frame) error
	// Read samples the levels of pins.
	Read(pins []pin.ID) (Frame, error)
}

// Drive writes frame with d, a nil driver ignores the write.
func Drive(d Driver, pins []pin.ID, frame Frame) error {
	if d == nil {
		return nil
	}
	return d.Write(pins, frame)
}
