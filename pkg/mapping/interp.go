package mapping

import (
	"slices"
	"sort"
)

// Interpolated maps control to power by piecewise-linear interpolation over a
// complete calibration curve. Outside the calibrated domain both directions
// extend the nearest segment linearly.
type Interpolated struct {
	controls []float64 // ascending
	powers   []float64 // aligned with controls

	// Inverse table in ascending power order. Nil when the measured powers
	// are not strictly monotonic, in which case only the forward direction
	// is usable.
	invPowers   []float64
	invControls []float64
}

var _ Map = (*Interpolated)(nil)

// NewInterpolated builds a table mapping from a calibration curve. The curve
// must be complete, hold at least two points and have a strictly monotonic
// control axis. When the measured powers are not strictly monotonic the
// forward direction still works but ControlOf reports ErrNonInvertible.
func NewInterpolated(c *Curve) (*Interpolated, error) {
	if c == nil || c.Len() == 0 {
		return nil, ErrUncalibrated
	}
	if !c.Complete() {
		return nil, ErrCurveIncomplete
	}
	if c.Len() < 2 {
		return nil, ErrNonInvertible
	}
	controls := slices.Clone(c.Controls)
	powers := slices.Clone(c.Powers)
	asc, strict := monotonic(controls)
	if !strict {
		return nil, ErrNonInvertible
	}
	if !asc {
		slices.Reverse(controls)
		slices.Reverse(powers)
	}

	m := &Interpolated{controls: controls, powers: powers}
	if pAsc, pStrict := monotonic(powers); pStrict {
		ip := slices.Clone(powers)
		ic := slices.Clone(controls)
		if !pAsc {
			slices.Reverse(ip)
			slices.Reverse(ic)
		}
		m.invPowers, m.invControls = ip, ic
	}
	return m, nil
}

// PowerOf returns the interpolated power at the given control value.
func (m *Interpolated) PowerOf(control float64) float64 {
	return interpolate(m.controls, m.powers, control)
}

// ControlOf returns the control value that produces the given power,
// interpolated in the measured curve.
func (m *Interpolated) ControlOf(power float64) (float64, error) {
	if m.invPowers == nil {
		return 0, ErrNonInvertible
	}
	return interpolate(m.invPowers, m.invControls, power), nil
}

// interpolate evaluates the polyline through (xs, ys) at x. xs must be
// strictly ascending. Outside [xs[0], xs[len-1]] the first or last segment is
// extended linearly.
func interpolate(xs, ys []float64, x float64) float64 {
	n := len(xs)
	i := sort.SearchFloat64s(xs, x)
	if i == 0 {
		i = 1
	} else if i >= n {
		i = n - 1
	}
	x0, x1 := xs[i-1], xs[i]
	y0, y1 := ys[i-1], ys[i]
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}
