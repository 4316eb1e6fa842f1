package sensor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweeney/cafeteira/internal/logic"
)

// DefaultIIORoot is where the kernel lists IIO devices.
const DefaultIIORoot = "/sys/bus/iio/devices"

const (
	tempFile     = "in_temp_input"
	humidityFile = "in_humidityrelative_input"
)

// IIOReader reads a DHT11 exposed by the kernel dht11 IIO driver. Values
// are reported in milli-units and rounded to whole degrees and percent.
type IIOReader struct {
	dir string
}

// NewIIOReader reads from an IIO device directory such as
// /sys/bus/iio/devices/iio:device0.
func NewIIOReader(dir string) *IIOReader {
	return &IIOReader{dir: dir}
}

// FindIIODevice returns the first device under root whose name file
// matches name (for example "dht11").
func FindIIODevice(root, name string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "iio:device*"))
	if err != nil {
		return "", fmt.Errorf("list iio devices: %w", err)
	}
	for _, dir := range matches {
		raw, err := os.ReadFile(filepath.Join(dir, "name"))
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(string(raw)), name) {
			return dir, nil
		}
	}
	return "", fmt.Errorf("no %s device under %s", name, root)
}

// Read samples both channels. The driver returns EIO when a transfer
// fails its checksum; that surfaces as an error wrapping ErrNoReading.
func (r *IIOReader) Read() (logic.Reading, error) {
	temp, err := readMilli(filepath.Join(r.dir, tempFile))
	if err != nil {
		return logic.Reading{}, fmt.Errorf("%w: temperature: %v", ErrNoReading, err)
	}
	hum, err := readMilli(filepath.Join(r.dir, humidityFile))
	if err != nil {
		return logic.Reading{}, fmt.Errorf("%w: humidity: %v", ErrNoReading, err)
	}
	return logic.Reading{Temperature: temp, Humidity: hum}, nil
}

// Close does nothing; each Read opens its files.
func (r *IIOReader) Close() error {
	return nil
}

func readMilli(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return roundMilli(v), nil
}

// roundMilli rounds a milli-unit value to the nearest whole unit, halves
// away from zero.
func roundMilli(v int) int {
	if v < 0 {
		return -((-v + 500) / 1000)
	}
	return (v + 500) / 1000
}
