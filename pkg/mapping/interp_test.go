package mapping

import (
	"errors"
	"math"
	"testing"
)

func measuredCurve(controls, powers []float64) *Curve {
	c := NewCurve(controls)
	copy(c.Powers, powers)
	return c
}

func TestInterpolatedPowerOf(t *testing.T) {
	m, err := NewInterpolated(measuredCurve(
		[]float64{0, 1, 2, 3, 4},
		[]float64{0, 1, 4, 9, 16},
	))
	if err != nil {
		t.Fatalf("NewInterpolated failed: %v", err)
	}

	// Exact at measured points.
	if got := m.PowerOf(0); got != 0 {
		t.Fatalf("expected exact 0 at control 0, got %v", got)
	}
	if got := m.PowerOf(4); got != 16 {
		t.Fatalf("expected exact 16 at control 4, got %v", got)
	}
	// Linear between points.
	if got := m.PowerOf(1.5); got != 2.5 {
		t.Fatalf("expected 2.5 at control 1.5, got %v", got)
	}
}

func TestInterpolatedExtrapolates(t *testing.T) {
	m, err := NewInterpolated(measuredCurve(
		[]float64{0, 1, 2, 3, 4},
		[]float64{0, 1, 4, 9, 16},
	))
	if err != nil {
		t.Fatalf("NewInterpolated failed: %v", err)
	}

	// Above the domain: last segment has slope 7.
	if got := m.PowerOf(5); got != 23 {
		t.Fatalf("expected 23 at control 5, got %v", got)
	}
	// Below the domain: first segment has slope 1.
	if got := m.PowerOf(-1); got != -1 {
		t.Fatalf("expected -1 at control -1, got %v", got)
	}
}

func TestInterpolatedControlOf(t *testing.T) {
	m, err := NewInterpolated(measuredCurve(
		[]float64{0, 1, 2, 3, 4},
		[]float64{0, 1, 4, 9, 16},
	))
	if err != nil {
		t.Fatalf("NewInterpolated failed: %v", err)
	}

	ctl, err := m.ControlOf(2.5)
	if err != nil {
		t.Fatalf("ControlOf failed: %v", err)
	}
	if ctl != 1.5 {
		t.Fatalf("expected control 1.5 for power 2.5, got %v", ctl)
	}
	ctl, err = m.ControlOf(16)
	if err != nil {
		t.Fatalf("ControlOf failed: %v", err)
	}
	if ctl != 4 {
		t.Fatalf("expected control 4 for power 16, got %v", ctl)
	}
}

func TestInterpolatedDecreasingCurve(t *testing.T) {
	// A wave-plate attenuator: more angle, less power.
	m, err := NewInterpolated(measuredCurve(
		[]float64{0, 1, 2, 3},
		[]float64{9, 6, 3, 1},
	))
	if err != nil {
		t.Fatalf("NewInterpolated failed: %v", err)
	}
	if got := m.PowerOf(1); got != 6 {
		t.Fatalf("expected 6 at control 1, got %v", got)
	}
	ctl, err := m.ControlOf(6)
	if err != nil {
		t.Fatalf("ControlOf failed: %v", err)
	}
	if ctl != 1 {
		t.Fatalf("expected control 1 for power 6, got %v", ctl)
	}
}

func TestInterpolatedDescendingControlAxis(t *testing.T) {
	// A curve stored high-to-low still normalizes.
	m, err := NewInterpolated(measuredCurve(
		[]float64{4, 3, 2, 1, 0},
		[]float64{16, 9, 4, 1, 0},
	))
	if err != nil {
		t.Fatalf("NewInterpolated failed: %v", err)
	}
	if got := m.PowerOf(1.5); got != 2.5 {
		t.Fatalf("expected 2.5 at control 1.5, got %v", got)
	}
}

func TestInterpolatedNonInvertiblePowers(t *testing.T) {
	m, err := NewInterpolated(measuredCurve(
		[]float64{0, 1, 2, 3, 4},
		[]float64{0, 5, 3, 8, 10},
	))
	if err != nil {
		t.Fatalf("forward-only mapping should still build: %v", err)
	}
	if got := m.PowerOf(1); got != 5 {
		t.Fatalf("forward lookup should work, got %v", got)
	}
	if _, err := m.ControlOf(4); !errors.Is(err, ErrNonInvertible) {
		t.Fatalf("expected ErrNonInvertible, got %v", err)
	}
}

func TestInterpolatedRejectsDuplicateControls(t *testing.T) {
	_, err := NewInterpolated(measuredCurve(
		[]float64{0, 1, 1, 2},
		[]float64{0, 1, 2, 3},
	))
	if !errors.Is(err, ErrNonInvertible) {
		t.Fatalf("expected ErrNonInvertible, got %v", err)
	}
}

func TestInterpolatedRejectsIncompleteCurve(t *testing.T) {
	c := NewCurve([]float64{0, 1, 2})
	c.Powers[0] = 0.5
	_, err := NewInterpolated(c)
	if !errors.Is(err, ErrCurveIncomplete) {
		t.Fatalf("expected ErrCurveIncomplete, got %v", err)
	}
}

func TestInterpolatedRejectsEmptyAndSinglePoint(t *testing.T) {
	if _, err := NewInterpolated(nil); !errors.Is(err, ErrUncalibrated) {
		t.Fatalf("expected ErrUncalibrated for nil curve, got %v", err)
	}
	if _, err := NewInterpolated(NewCurve(nil)); !errors.Is(err, ErrUncalibrated) {
		t.Fatalf("expected ErrUncalibrated for empty curve, got %v", err)
	}
	if _, err := NewInterpolated(measuredCurve([]float64{1}, []float64{2})); !errors.Is(err, ErrNonInvertible) {
		t.Fatalf("expected ErrNonInvertible for single point, got %v", err)
	}
}

func TestInterpolatedZeroBoundaryExact(t *testing.T) {
	// A curve anchored at (0, 0) keeps zero exact in both directions.
	m, err := NewInterpolated(measuredCurve(
		[]float64{0, 1, 2, 3, 4},
		[]float64{0, 1, 4, 9, 16},
	))
	if err != nil {
		t.Fatalf("NewInterpolated failed: %v", err)
	}
	if got := m.PowerOf(0); got != 0 {
		t.Fatalf("power at zero control must be exactly 0, got %v", got)
	}
	ctl, err := m.ControlOf(0)
	if err != nil {
		t.Fatalf("ControlOf(0) failed: %v", err)
	}
	if ctl != 0 {
		t.Fatalf("control for zero power must be exactly 0, got %v", ctl)
	}
}

func TestPowerBoundsOrdered(t *testing.T) {
	// Decreasing mapping: the higher power sits at the lower control end.
	m, err := NewInterpolated(measuredCurve(
		[]float64{0, 1, 2, 3},
		[]float64{9, 6, 3, 1},
	))
	if err != nil {
		t.Fatalf("NewInterpolated failed: %v", err)
	}
	r := PowerBounds(m, Bounds{Low: 0, High: 3})
	if r.Low != 1 || r.High != 9 {
		t.Fatalf("expected ordered power bounds [1, 9], got %v", r)
	}
}

func TestInterpolateHelperExactAtKnots(t *testing.T) {
	xs := []float64{0, 1, 2}
	ys := []float64{10, 20, 40}
	for i, x := range xs {
		if got := interpolate(xs, ys, x); got != ys[i] {
			t.Fatalf("expected exact %v at knot %v, got %v", ys[i], x, got)
		}
	}
	if got := interpolate(xs, ys, 0.5); math.Abs(got-15) > 1e-12 {
		t.Fatalf("expected 15 at 0.5, got %v", got)
	}
}
