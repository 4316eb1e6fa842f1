//go:build !linux

package gpio

import (
	"errors"
	"time"
)

// RealRelay is not available on non-Linux platforms.
type RealRelay struct{}

// NewRealRelay returns an error on non-Linux platforms.
func NewRealRelay(chipName string, pin int) (*RealRelay, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetLevel is not implemented on non-Linux platforms.
func (r *RealRelay) SetLevel(on bool) error {
	return errors.New("gpio: not supported")
}

// Level always reports off on non-Linux platforms.
func (r *RealRelay) Level() bool {
	return false
}

// Close is not implemented on non-Linux platforms.
func (r *RealRelay) Close() error {
	return nil
}

// RealEdgeSource is not available on non-Linux platforms.
type RealEdgeSource struct{}

// NewRealEdgeSource returns an edge source whose Watch always fails.
func NewRealEdgeSource(chipName string, pin int) *RealEdgeSource {
	return &RealEdgeSource{}
}

// Watch is not implemented on non-Linux platforms.
func (b *RealEdgeSource) Watch(handler func(tick time.Duration)) error {
	return errors.New("gpio: not supported on this platform (requires Linux)")
}

// Close is not implemented on non-Linux platforms.
func (b *RealEdgeSource) Close() error {
	return nil
}
