// Package gpio provides the heater relay output and the push-button edge
// source with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "time"

// Relay drives the heater relay output.
type Relay interface {
	// SetLevel drives the relay: true = energized (heating).
	SetLevel(on bool) error

	// Level returns the last level successfully driven.
	Level() bool

	// Close releases GPIO resources, leaving the relay de-energized.
	Close() error
}

// EdgeSource delivers push-button edges.
type EdgeSource interface {
	// Watch starts edge detection. handler is called from the event
	// delivery context with the kernel's monotonic timestamp of each
	// press edge; it must not block.
	Watch(handler func(tick time.Duration)) error

	// Close stops edge detection and releases GPIO resources.
	Close() error
}

// Default pin definitions (BCM numbering) and chip.
const (
	DefaultChip      = "gpiochip0"
	DefaultPinRelay  = 2
	DefaultPinButton = 3
)
