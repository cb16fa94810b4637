package port

import "fmt"

// LengthMismatchError is returned if a frame doesn't match the size of the port.
type LengthMismatchError struct {
	Want int
	Got  int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("frame length %d doesn't match port length %d", e.Got, e.Want)
}

// InvalidStateError is returned if a frame position holds neither High nor Low.
type InvalidStateError struct {
	Index int
	State StateType
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid level %d at index %d", int(e.State), e.Index)
}

// IndexOutOfRangeError is returned if a position is outside [0, Len).
type IndexOutOfRangeError struct {
	Index int
	Len   int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Len)
}
