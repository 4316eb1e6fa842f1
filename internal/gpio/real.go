//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/warthog618/go-gpiocdev"
)

// RealRelay drives the relay through the Linux GPIO character device.
type RealRelay struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line

	mu    sync.Mutex
	level bool
}

// NewRealRelay requests pin as an output, initially low (relay off).
func NewRealRelay(chipName string, pin int) (*RealRelay, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(pin, gpiocdev.AsOutput(0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request relay pin %d: %w", pin, err)
	}

	return &RealRelay{chip: chip, line: line}, nil
}

// SetLevel drives the relay line high (on) or low (off).
func (r *RealRelay) SetLevel(on bool) error {
	v := 0
	if on {
		v = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.line.SetValue(v); err != nil {
		return fmt.Errorf("write relay pin: %w", err)
	}
	r.level = on
	return nil
}

// Level returns the last level written.
func (r *RealRelay) Level() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.level
}

// Close de-energizes the relay, then reconfigures the pin as an input with
// pull-down (matching Pi boot defaults) before releasing it.
func (r *RealRelay) Close() error {
	var errs []error

	if r.line != nil {
		if err := r.line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("drive relay off: %w", err))
		}
		if err := r.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay pin: %w", err))
		}
		if err := r.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// RealEdgeSource watches a push-button wired to ground with the internal
// pull-up enabled, so a press is a falling edge.
type RealEdgeSource struct {
	chipName string
	pin      int

	chip *gpiocdev.Chip
	line *gpiocdev.Line
}

// NewRealEdgeSource prepares a button on pin. Lines are requested by Watch.
func NewRealEdgeSource(chipName string, pin int) *RealEdgeSource {
	return &RealEdgeSource{chipName: chipName, pin: pin}
}

// Watch requests the button line with falling-edge detection. The kernel
// timestamps each edge with CLOCK_MONOTONIC, which is passed to handler.
func (b *RealEdgeSource) Watch(handler func(tick time.Duration)) error {
	chip, err := gpiocdev.NewChip(b.chipName)
	if err != nil {
		return fmt.Errorf("open gpio chip: %w", err)
	}

	line, err := chip.RequestLine(b.pin,
		gpiocdev.AsInput,
		gpiocdev.WithPullUp,
		gpiocdev.WithFallingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			handler(evt.Timestamp)
		}),
	)
	if err != nil {
		chip.Close()
		return fmt.Errorf("request button pin %d: %w", b.pin, err)
	}

	b.chip = chip
	b.line = line
	return nil
}

// Close releases the button line.
func (b *RealEdgeSource) Close() error {
	var errs []error
	if b.line != nil {
		if err := b.line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close button pin: %w", err))
		}
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
