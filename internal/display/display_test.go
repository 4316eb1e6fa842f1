package display

import (
	"errors"
	"image"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"periph.io/x/devices/v3/ssd1306/image1bit"

	"github.com/sweeney/cafeteira/internal/device"
	"github.com/sweeney/cafeteira/internal/gpio"
	"github.com/sweeney/cafeteira/internal/logic"
)

func TestFormatLines(t *testing.T) {
	snap := device.Snapshot{
		Heating:    true,
		Reading:    logic.Reading{Temperature: 22, Humidity: 50},
		HasReading: true,
		Status:     "Aq:ON",
	}

	got := FormatLines(snap)
	want := Lines{"Cafeteira Intel", "Temp:22C Umi:50%", "Aquec:ON", "St:Aq:ON"}
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFormatLinesNoReading(t *testing.T) {
	got := FormatLines(device.Snapshot{Status: logic.InitialStatus})
	if got[1] != "Temp:--C Umi:--%" {
		t.Errorf("line 2: got %q", got[1])
	}
	if got[2] != "Aquec:OFF" {
		t.Errorf("line 3: got %q", got[2])
	}
	if got[3] != "St:Iniciando" {
		t.Errorf("line 4: got %q", got[3])
	}
}

func TestFormatLinesTruncatesWithWarning(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	snap := device.Snapshot{
		Reading:    logic.Reading{Temperature: -1234567, Humidity: 100},
		HasReading: true,
		Status:     "Manual:OFF-12345",
	}
	got := FormatLines(snap)

	for i, l := range got {
		if n := len([]rune(l)); n > LineWidth {
			t.Errorf("line %d has %d glyphs, max %d", i+1, n, LineWidth)
		}
	}
	if got[1] != "Temp:-1234567C Umi" {
		t.Errorf("line 2: got %q", got[1])
	}
	if got[3] != "St:Manual:OFF-1234" {
		t.Errorf("line 4: got %q", got[3])
	}

	warnings := 0
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel && strings.Contains(e.Message, "truncated") {
			warnings++
		}
	}
	if warnings != 2 {
		t.Errorf("expected 2 truncation warnings, got %d", warnings)
	}
}

func newTestCoordinator(t *testing.T, timeout time.Duration) (*Coordinator, *FakePanel, *device.State) {
	t.Helper()
	state, err := device.NewState(gpio.NewFakeRelay())
	if err != nil {
		t.Fatalf("NewState: %v", err)
	}
	panel := NewFakePanel()
	return NewCoordinator(panel, state, timeout), panel, state
}

func TestRefreshRendersCurrentState(t *testing.T) {
	c, panel, state := newTestCoordinator(t, time.Second)

	state.SetHeating(true, "Aq:ON")
	state.RecordReading(logic.Reading{Temperature: 23, Humidity: 48})

	if !c.Refresh() {
		t.Fatal("Refresh should draw a frame")
	}
	last, ok := panel.Last()
	if !ok {
		t.Fatal("no frame rendered")
	}
	want := Lines{"Cafeteira Intel", "Temp:23C Umi:48%", "Aquec:ON", "St:Aq:ON"}
	if last != want {
		t.Errorf("got %q, want %q", last, want)
	}
	if r, s, f := c.Stats(); r != 1 || s != 0 || f != 0 {
		t.Errorf("stats: rendered=%d skipped=%d failed=%d", r, s, f)
	}
}

func TestShowBootLines(t *testing.T) {
	c, panel, _ := newTestCoordinator(t, time.Second)
	c.Show(BootLines)
	last, _ := panel.Last()
	if last != BootLines {
		t.Errorf("got %q, want %q", last, BootLines)
	}
}

func TestRefreshSkippedOnLockTimeout(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()

	c, panel, _ := newTestCoordinator(t, 20*time.Millisecond)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WithLock(func(Panel) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	start := time.Now()
	if c.Refresh() {
		t.Error("Refresh should be skipped while the lock is held")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Refresh waited %v, expected a bounded wait", elapsed)
	}
	if len(panel.Frames()) != 0 {
		t.Error("no frame should be rendered on timeout")
	}
	if _, skipped, _ := c.Stats(); skipped != 1 {
		t.Errorf("skipped: got %d, want 1", skipped)
	}
	if e := hook.LastEntry(); e == nil || e.Level != logrus.WarnLevel {
		t.Error("expected a warning for the skipped refresh")
	}

	close(release)
	<-done

	if !c.Refresh() {
		t.Error("Refresh should succeed once the lock is released")
	}
}

func TestWithLockReleasesOnError(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 20*time.Millisecond)

	wantErr := errors.New("boom")
	if err := c.WithLock(func(Panel) error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("got %v, want %v", err, wantErr)
	}
	if err := c.WithLock(func(Panel) error { return nil }); err != nil {
		t.Errorf("lock not released after error: %v", err)
	}
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	c, _, _ := newTestCoordinator(t, 20*time.Millisecond)

	func() {
		defer func() { recover() }()
		c.WithLock(func(Panel) error { panic("render crashed") })
	}()

	if err := c.WithLock(func(Panel) error { return nil }); err != nil {
		t.Errorf("lock not released after panic: %v", err)
	}
}

func TestRefreshRenderFailure(t *testing.T) {
	c, panel, _ := newTestCoordinator(t, time.Second)
	panel.SetError(errors.New("i2c nack"))

	if c.Refresh() {
		t.Error("Refresh should report failure")
	}
	if _, _, failed := c.Stats(); failed != 1 {
		t.Errorf("failed: got %d, want 1", failed)
	}

	panel.SetError(nil)
	if !c.Refresh() {
		t.Error("Refresh should recover on the next call")
	}
}

func TestConcurrentRefreshNeverOverlaps(t *testing.T) {
	c, panel, state := newTestCoordinator(t, 5*time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			state.SetHeating(i%2 == 0, logic.HeatingStatus(i%2 == 0))
			state.RecordReading(logic.Reading{Temperature: i, Humidity: i})
		}(i)
		go func() {
			defer wg.Done()
			c.Refresh()
		}()
	}
	wg.Wait()

	if n := panel.Overlaps(); n != 0 {
		t.Errorf("panel rendered by %d overlapping writers", n)
	}
	if len(panel.Frames()) != 20 {
		t.Errorf("expected 20 frames, got %d", len(panel.Frames()))
	}
	for _, f := range panel.Frames() {
		// Heating and status are written together, so a frame never
		// shows one without the other.
		if (f[2] == "Aquec:ON") != (f[3] == "St:Aq:ON") {
			t.Errorf("inconsistent frame: %q", f)
		}
	}
}

func TestLogPanel(t *testing.T) {
	hook := logtest.NewGlobal()
	defer hook.Reset()
	logrus.SetLevel(logrus.InfoLevel)

	p := NewLogPanel()
	p.RenderLines("a", "b", "c", "d")
	p.RenderLines("a", "b", "c", "d")
	p.RenderLines("a", "b", "c", "e")

	if n := len(hook.AllEntries()); n != 2 {
		t.Errorf("expected 2 info entries for 2 distinct frames, got %d", n)
	}
}

func TestDrawLinesSetsPixelsPerRow(t *testing.T) {
	img := image1bit.NewVerticalLSB(image.Rect(0, 0, 128, 64))
	drawLines(img, Lines{"X", "", "", "X"})

	rowHasInk := func(row int) bool {
		for y := row * lineHeight; y < (row+1)*lineHeight; y++ {
			for x := 0; x < 128; x++ {
				if img.BitAt(x, y) == image1bit.On {
					return true
				}
			}
		}
		return false
	}

	if !rowHasInk(0) || !rowHasInk(3) {
		t.Error("expected glyph pixels on rows 1 and 4")
	}
	if rowHasInk(1) || rowHasInk(2) {
		t.Error("empty lines must leave their rows blank")
	}

	// Redrawing clears the previous frame.
	drawLines(img, Lines{})
	if rowHasInk(0) || rowHasInk(3) {
		t.Error("drawLines must clear the previous frame")
	}
}
