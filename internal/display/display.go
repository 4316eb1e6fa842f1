// Package display renders the device state onto a four-line panel.
package display

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/cafeteira/internal/device"
	"github.com/sweeney/cafeteira/internal/logic"
)

// Title is the first line of every frame.
const Title = "Cafeteira Intel"

// LineWidth is the number of glyphs that fit on one panel line:
// 128 pixels at 7 pixels per glyph.
const LineWidth = 18

// Panel is the rendering collaborator.
type Panel interface {
	// RenderLines replaces the panel contents with four lines of text.
	RenderLines(title, line2, line3, line4 string) error

	// Close releases the panel.
	Close() error
}

// Lines is one rendered frame.
type Lines [4]string

// BootLines is shown before the control loops start.
var BootLines = Lines{Title, "Inicializando...", "", ""}

// FormatLines builds the frame for a snapshot. Lines longer than
// LineWidth are truncated and a warning is logged for each.
func FormatLines(snap device.Snapshot) Lines {
	reading := "Temp:--C Umi:--%"
	if snap.HasReading {
		reading = fmt.Sprintf("Temp:%dC Umi:%d%%", snap.Reading.Temperature, snap.Reading.Humidity)
	}

	lines := Lines{
		Title,
		reading,
		fmt.Sprintf("Aquec:%s", logic.StateOf(snap.Heating)),
		"St:" + snap.Status,
	}
	for i, l := range lines {
		cut, truncated := logic.TruncateRunes(l, LineWidth)
		if truncated {
			logrus.Warnf("display line %d truncated: %q", i+1, l)
			lines[i] = cut
		}
	}
	return lines
}
