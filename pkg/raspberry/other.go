//go:build !linux

package raspberry

// OpenGPIO is only available on linux.
func OpenGPIO() (GPIO, error) {
	return nil, ErrUnsupported
}

// OpenChip is only available on linux.
func OpenChip(name string) (GPIO, error) {
	return nil, ErrUnsupported
}

// OpenRpio is only available on linux.
func OpenRpio() (GPIO, error) {
	return nil, ErrUnsupported
}
