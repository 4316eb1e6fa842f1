// Package sensor reads temperature and humidity.
// The real implementation reads a DHT11 through the Linux IIO subsystem
// (the kernel dht11 driver handles the bit-level protocol).
// The fake implementation allows testing without hardware.
package sensor

import (
	"errors"

	"github.com/sweeney/cafeteira/internal/logic"
)

// ErrNoReading is returned when the sensor produced no valid sample.
var ErrNoReading = errors.New("sensor: no reading")

// Reader reads temperature and humidity.
type Reader interface {
	// Read returns a fresh sample, or an error if none could be taken.
	// Callers must not use the reading when err != nil.
	Read() (logic.Reading, error)

	// Close releases sensor resources.
	Close() error
}
