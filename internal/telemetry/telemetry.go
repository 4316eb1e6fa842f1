// Package telemetry samples the sensor periodically and publishes readings
// that differ from the last published pair.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sweeney/cafeteira/internal/logic"
	"github.com/sweeney/cafeteira/internal/mqtt"
	"github.com/sweeney/cafeteira/internal/sensor"
)

// DefaultInterval is the sampling period.
const DefaultInterval = 2 * time.Second

// State records readings and deduplicates publication.
type State interface {
	PublishReading(r logic.Reading, publish func(logic.Reading) error) (bool, error)
}

// Refresher requests a display refresh.
type Refresher interface {
	Refresh() bool
}

// Loop is the telemetry loop.
type Loop struct {
	reader    sensor.Reader
	state     State
	display   Refresher
	publisher mqtt.Publisher
	topic     string
}

// NewLoop creates a Loop publishing on topic.
func NewLoop(reader sensor.Reader, state State, display Refresher, pub mqtt.Publisher, topic string) *Loop {
	return &Loop{
		reader:    reader,
		state:     state,
		display:   display,
		publisher: pub,
		topic:     topic,
	}
}

// Run performs one step immediately and then one per tick until ctx ends.
func (l *Loop) Run(ctx context.Context, tick <-chan time.Time) error {
	l.Step()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			l.Step()
		}
	}
}

// Step reads the sensor once, publishes if the reading changed, and
// requests exactly one display refresh. It reports whether a publish
// happened.
func (l *Loop) Step() bool {
	defer l.display.Refresh()

	r, err := l.reader.Read()
	if err != nil {
		if errors.Is(err, sensor.ErrNoReading) {
			logrus.Debugf("sensor: %v", err)
		} else {
			logrus.Warnf("sensor read: %v", err)
		}
		return false
	}

	published, err := l.state.PublishReading(r, l.publish)
	if err != nil {
		logrus.Warnf("publish telemetry: %v", err)
		return false
	}
	if published {
		logrus.Debugf("telemetry: temp=%d umi=%d", r.Temperature, r.Humidity)
	}
	return published
}

func (l *Loop) publish(r logic.Reading) error {
	payload, err := mqtt.FormatTelemetry(r)
	if err != nil {
		return fmt.Errorf("format telemetry: %w", err)
	}
	return l.publisher.Publish(l.topic, payload, false)
}
