package config

import (
	"time"

	"github.com/sirupsen/logrus"
)

type Config interface {
	Lines() []Line
	Line(name string) (Line, bool)

	SetRecalibrate(name, cronExpr string) error

	// Load reads the configuration from the source.
	Load() error
	// Save saves the configuration to the source.
	Save() error

	LogrusFields() logrus.Fields
}

// SourceKind selects the hardware adapter driving a line's control value.
type SourceKind string

const (
	// SourceAnalog is a voltage output channel on the bench controller.
	SourceAnalog SourceKind = "analog"
	// SourceScanner is a scanner position channel, addressed by index.
	SourceScanner SourceKind = "scanner"
	// SourceMotor is a motorized rotation stage, addressed by axis name.
	SourceMotor SourceKind = "motor"
	// SourceSim is the built-in simulated bench.
	SourceSim SourceKind = "sim"
)

func (k SourceKind) Valid() bool {
	switch k {
	case SourceAnalog, SourceScanner, SourceMotor, SourceSim:
		return true
	}
	return false
}

const (
	defaultBaudRate     = 115200
	defaultMonitorMilli = 1000
)

// SourceConfig describes the control source of a line. Channel addresses an
// analog output, Index a scanner channel, Axis a motor stage.
type SourceConfig struct {
	Kind    SourceKind `json:"kind"`
	Device  string     `json:"device,omitempty"`
	Baud    *int       `json:"baud,omitempty"`
	Channel int        `json:"channel,omitempty"`
	Index   int        `json:"index,omitempty"`
	Axis    string     `json:"axis,omitempty"`
}

// BaudRate returns the configured baud rate, or the default if unset.
func (s SourceConfig) BaudRate() int {
	if s.Baud != nil {
		return *s.Baud
	}
	return defaultBaudRate
}

// MeterConfig describes the optional power meter of a line.
type MeterConfig struct {
	Device string `json:"device"`
	Baud   *int   `json:"baud,omitempty"`
}

func (m MeterConfig) BaudRate() int {
	if m.Baud != nil {
		return *m.Baud
	}
	return defaultBaudRate
}

// SwitchConfig describes the optional shutter of a line.
type SwitchConfig struct {
	Device string `json:"device"`
	Baud   *int   `json:"baud,omitempty"`
	Index  int    `json:"index"`
}

func (s SwitchConfig) BaudRate() int {
	if s.Baud != nil {
		return *s.Baud
	}
	return defaultBaudRate
}

// Line describes one configured laser line. ControlLow and ControlHigh
// optionally tighten the hardware control bounds; they never widen them.
type Line struct {
	Name         string        `json:"name"`
	Color        string        `json:"color,omitempty"`
	Source       SourceConfig  `json:"source"`
	Meter        *MeterConfig  `json:"meter,omitempty"`
	Switch       *SwitchConfig `json:"switch,omitempty"`
	ControlLow   *float64      `json:"controlLow,omitempty"`
	ControlHigh  *float64      `json:"controlHigh,omitempty"`
	DefaultMode  string        `json:"defaultMode,omitempty"`
	Recalibrate  string        `json:"recalibrate,omitempty"`
	MonitorMilli *int          `json:"monitorMillis,omitempty"`
}

// MonitorInterval returns how often the watchdog should poll the line's
// power meter.
func (l Line) MonitorInterval() time.Duration {
	ms := defaultMonitorMilli
	if l.MonitorMilli != nil {
		ms = *l.MonitorMilli
	}
	return time.Duration(ms) * time.Millisecond
}
