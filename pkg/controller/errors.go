package controller

import "errors"

var (
	// ErrOutOfBounds rejects a power request outside the reachable range.
	// Nothing is written to hardware.
	ErrOutOfBounds = errors.New("requested power is outside the calibrated range")

	// ErrNoSwitch is returned for switch operations on a line configured
	// without one.
	ErrNoSwitch = errors.New("line has no switch")

	// ErrNoMeter is returned when an operation needs a power meter and the
	// line has none.
	ErrNoMeter = errors.New("line has no power meter")
)
