//go:build !linux

package gpio

import "errors"

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealPins is not available on non-Linux platforms.
type RealPins struct{}

// NewRealPins returns an error on non-Linux platforms.
func NewRealPins(chipName string, layout Layout) (*RealPins, error) {
	return nil, errUnsupported
}

// Set is not implemented on non-Linux platforms.
func (r *RealPins) Set(pin Pin, on bool) error {
	return errUnsupported
}

// WatchEdges is not implemented on non-Linux platforms.
func (r *RealPins) WatchEdges(fn EdgeFunc) error {
	return errUnsupported
}

// ReadSense is not implemented on non-Linux platforms.
func (r *RealPins) ReadSense() (bool, bool, error) {
	return false, false, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealPins) Close() error {
	return nil
}
