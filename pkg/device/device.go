// Package device holds the hardware adapters of a laser line: the control
// source that actuates optical power, the meter that reads it back and the
// switch that gates the output entirely. Real instruments speak a
// line-oriented command protocol over USB serial; a simulated bench stands in
// during tests and --simulate runs.
package device

// ControlSource actuates the continuous control quantity of a laser line:
// an AOM drive voltage, a scanner output or a wave-plate angle.
type ControlSource interface {
	// Get returns the currently applied control value.
	Get() (float64, error)
	// Set applies a control value.
	Set(value float64) error
	// Bounds returns the hardware control limits, queried once at open.
	Bounds() (low, high float64)
}

// PowerMeter reads the optical power arriving at the experiment.
type PowerMeter interface {
	Read() (float64, error)
}

// Switch gates a line fully on or off, independent of the continuous
// control.
type Switch interface {
	State() (bool, error)
	SetState(on bool) error
}
