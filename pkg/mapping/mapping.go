package mapping

import "errors"

// Mode selects which backend converts between control and power.
type Mode string

const (
	// ModeInterpolated reads power straight out of the measured calibration
	// curve.
	ModeInterpolated Mode = "interpolated"
	// ModeParametric evaluates a fitted sigmoid model.
	ModeParametric Mode = "parametric"
)

// Valid reports whether m names a known mode.
func (m Mode) Valid() bool {
	return m == ModeInterpolated || m == ModeParametric
}

// Map converts between control values and optical power. Implementations are
// immutable once built; a new calibration or a mode change swaps the whole
// Map.
type Map interface {
	// PowerOf returns the optical power produced at the given control value.
	PowerOf(control float64) float64
	// ControlOf returns the control value that produces the given power.
	ControlOf(power float64) (float64, error)
}

// PowerBounds evaluates the mapping at both ends of the effective control
// bounds and returns the ordered power interval. The mapping is not assumed
// to be increasing, so both ends are evaluated and ordered.
func PowerBounds(m Map, b Bounds) Bounds {
	p0, p1 := m.PowerOf(b.Low), m.PowerOf(b.High)
	if p0 > p1 {
		p0, p1 = p1, p0
	}
	return Bounds{Low: p0, High: p1}
}

var (
	// ErrUncalibrated means no calibration curve or fitted model exists yet.
	ErrUncalibrated = errors.New("not calibrated: run a calibration sweep first")
	// ErrNonInvertible means the mapping is not strictly monotonic, so a
	// power does not correspond to a unique control value.
	ErrNonInvertible = errors.New("mapping is not invertible: calibration data is not strictly monotonic")
	// ErrOutOfRange means no in-range control value produces the requested
	// power.
	ErrOutOfRange = errors.New("power is outside the achievable range")
	// ErrCurveIncomplete means the calibration curve still has unmeasured
	// points, usually because the sweep was aborted partway.
	ErrCurveIncomplete = errors.New("calibration curve is incomplete")
	// ErrFitDiverged means the model fit failed or produced a curve that is
	// not invertible over the control bounds.
	ErrFitDiverged = errors.New("model fit did not produce a usable curve")
)
