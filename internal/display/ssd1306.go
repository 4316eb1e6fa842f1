package display

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/devices/v3/ssd1306/image1bit"
	"periph.io/x/host/v3"
)

// lineHeight spaces four 13-pixel glyph rows over a 64-pixel panel.
const lineHeight = 16

// SSD1306Panel draws text on a 128x64 SSD1306 OLED over I²C.
type SSD1306Panel struct {
	bus i2c.BusCloser
	dev *ssd1306.Dev
	img *image1bit.VerticalLSB
}

// NewSSD1306Panel opens the named I²C bus ("" for the first available)
// and initializes the panel.
func NewSSD1306Panel(busName string) (*SSD1306Panel, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", busName, err)
	}

	dev, err := ssd1306.NewI2C(bus, &ssd1306.DefaultOpts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("init ssd1306: %w", err)
	}

	return &SSD1306Panel{
		bus: bus,
		dev: dev,
		img: image1bit.NewVerticalLSB(dev.Bounds()),
	}, nil
}

// RenderLines clears the frame buffer, draws the lines and pushes the
// buffer to the panel.
func (p *SSD1306Panel) RenderLines(title, line2, line3, line4 string) error {
	drawLines(p.img, Lines{title, line2, line3, line4})
	if err := p.dev.Draw(p.dev.Bounds(), p.img, image.Point{}); err != nil {
		return fmt.Errorf("draw ssd1306: %w", err)
	}
	return nil
}

// Close turns the panel off and releases the bus.
func (p *SSD1306Panel) Close() error {
	var errs []error
	if err := p.dev.Halt(); err != nil {
		errs = append(errs, fmt.Errorf("halt ssd1306: %w", err))
	}
	if err := p.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close i2c bus: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

func drawLines(dst draw.Image, lines Lines) {
	draw.Draw(dst, dst.Bounds(), image.NewUniform(image1bit.Off), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	for i, s := range lines {
		d := font.Drawer{
			Dst:  dst,
			Src:  image.NewUniform(image1bit.On),
			Face: face,
			Dot:  fixed.P(0, i*lineHeight+face.Ascent),
		}
		d.DrawString(s)
	}
}
