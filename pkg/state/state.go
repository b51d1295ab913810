// Package state persists per-line calibration results across daemon
// restarts. Persistence is best effort: a line that cannot be saved keeps
// working, it just boots uncalibrated next time.
package state

import (
	"time"

	"github.com/beamd-dev/beamd/pkg/mapping"
	"github.com/beamd-dev/beamd/pkg/sweep"
)

// Store holds the last known calibration of each line.
type Store interface {
	Get(line string) (LineState, bool)
	Put(line string, st LineState)
}

const defaultResolution = 50

// LineState is everything a line needs to come back calibrated after a
// restart.
type LineState struct {
	Mode       string         `json:"mode,omitempty"`
	Params     mapping.Params `json:"params,omitempty"`
	Curve      *mapping.Curve `json:"curve,omitempty"`
	Resolution int            `json:"resolution,omitempty"`
	SettleMs   int            `json:"settleMillis,omitempty"`
	Spacing    string         `json:"spacing,omitempty"`
}

// SweepResolution returns the number of sweep points, defaulting to 50.
func (s LineState) SweepResolution() int {
	if s.Resolution > 1 {
		return s.Resolution
	}
	return defaultResolution
}

// SettleDelay returns how long a sweep waits between moving the control and
// reading the meter.
func (s LineState) SettleDelay() time.Duration {
	if s.SettleMs > 0 {
		return time.Duration(s.SettleMs) * time.Millisecond
	}
	return 0
}

// SweepSpacing returns the point spacing, defaulting to logarithmic.
func (s LineState) SweepSpacing() sweep.Spacing {
	sp := sweep.Spacing(s.Spacing)
	if sp.Valid() {
		return sp
	}
	return sweep.SpacingLogarithmic
}
