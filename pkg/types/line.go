package types

import "time"

// LineInfo is the per-line status the daemon reports.
// This struct is shared between the daemon and client packages.
type LineInfo struct {
	Name        string  `json:"name"`
	Color       string  `json:"color,omitempty"`
	Mode        string  `json:"mode"`
	Calibrated  bool    `json:"calibrated"`
	Power       float64 `json:"power"`
	PowerLow    float64 `json:"powerLow"`
	PowerHigh   float64 `json:"powerHigh"`
	Control     float64 `json:"control"`
	SwitchOn    *bool   `json:"switchOn,omitempty"`
	SweepActive bool    `json:"sweepActive"`
}

// CalibrationRequest carries optional sweep settings. Zero values mean "keep
// the line's stored setting".
type CalibrationRequest struct {
	Resolution int    `json:"resolution,omitempty"`
	Spacing    string `json:"spacing,omitempty"`
	SettleMs   int    `json:"settleMillis,omitempty"`
}

// CalibrationStatus reports where a sweep stands.
type CalibrationStatus struct {
	Phase    string `json:"phase"`
	Active   bool   `json:"active"`
	Measured int    `json:"measured"`
	Total    int    `json:"total"`
}

// MappingInfo describes the active mapping backend of a line.
type MappingInfo struct {
	Mode       string             `json:"mode"`
	Calibrated bool               `json:"calibrated"`
	Params     map[string]float64 `json:"params,omitempty"`
}

// ScheduleRequest sets a line's recalibration schedule. An empty Cron
// disables it.
type ScheduleRequest struct {
	Cron string `json:"cron"`
}

// ScheduleStatus reports a line's recalibration schedule. NextRun is RFC
// 3339, empty when nothing is scheduled.
type ScheduleStatus struct {
	Cron    string `json:"cron,omitempty"`
	NextRun string `json:"nextRun,omitempty"`
}

// PostponeRequest delays the next scheduled recalibration. Duration uses Go
// duration syntax, e.g. "90m".
type PostponeRequest struct {
	Duration string `json:"duration"`
}

// Reading is one monitored power sample.
type Reading struct {
	Power float64   `json:"power"`
	At    time.Time `json:"at"`
}
