package pinmanager

import (
	"errors"

	"portmux/pkg/pin"
)

// ErrEmptyDefinition is returned if a port definition has no pins.
var ErrEmptyDefinition = errors.New("port definition without pins")

// DuplicatePinsError is returned if a port definition contains a pin more than once.
type DuplicatePinsError struct {
	// Duplicates holds each repeated pin once, sorted.
	Duplicates []pin.ID
}

func (e *DuplicatePinsError) Error() string {
	return "duplicate pins in port definition: " + pin.Join(e.Duplicates)
}

// PinConflictError is returned if requested pins are already claimed.
type PinConflictError struct {
	// Conflicts holds each conflicting pin once, sorted.
	Conflicts []pin.ID
}

func (e *PinConflictError) Error() string {
	return "pins already in use: " + pin.Join(e.Conflicts)
}
