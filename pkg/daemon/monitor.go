package daemon

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beamd-dev/beamd/pkg/events"
	"github.com/beamd-dev/beamd/pkg/types"
)

// meterLine is the slice of controller behavior the monitor needs.
type meterLine interface {
	Name() string
	SweepActive() bool
	MeterReading() (float64, error)
}

// maxLogged bounds the per-line reading history. At the default 1s poll
// interval this holds 15 minutes.
const maxLogged = 900

// monitor polls one line's power meter and publishes readings as they
// change. It stays out of the way while a calibration sweep owns the bench.
type monitor struct {
	line     meterLine
	hub      *events.EventHub
	interval time.Duration
	stopCh   chan struct{}
	log      *readingLog

	last    float64
	haveOne bool
	lastErr string
}

func newMonitor(line meterLine, hub *events.EventHub, interval time.Duration, stopCh chan struct{}) *monitor {
	return &monitor{line: line, hub: hub, interval: interval, stopCh: stopCh, log: newReadingLog(maxLogged)}
}

// Readings returns the logged samples taken after the cutoff, oldest first.
func (m *monitor) Readings(cutoff time.Time) []types.Reading {
	return m.log.since(cutoff)
}

func (m *monitor) run() {
	logrus.Debugf("monitor of line %s starts", m.line.Name())
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			logrus.Debugf("monitor of line %s stopped", m.line.Name())
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll takes one reading. It publishes only when the value changed, so idle
// lines stay quiet on the event stream.
func (m *monitor) poll() {
	if m.line.SweepActive() {
		return
	}
	v, err := m.line.MeterReading()
	if err != nil {
		// Log each distinct failure once, not once per tick.
		if err.Error() != m.lastErr {
			m.lastErr = err.Error()
			logrus.WithError(err).Warnf("monitor of line %s cannot read the meter", m.line.Name())
		}
		return
	}
	m.lastErr = ""
	m.log.add(v, time.Now())

	if m.haveOne && v == m.last {
		return
	}
	m.last = v
	m.haveOne = true
	m.hub.Publish(m.line.Name(), events.MonitorReading, events.MonitorReadingEvent{
		Power: v,
		Ts:    time.Now().Unix(),
	})
}
