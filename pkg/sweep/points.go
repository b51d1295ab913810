package sweep

import (
	"fmt"
	"math"

	"github.com/beamd-dev/beamd/pkg/mapping"
)

// Spacing selects how sweep points distribute over the control bounds.
type Spacing string

const (
	// SpacingLinear spaces points evenly.
	SpacingLinear Spacing = "linear"
	// SpacingLogarithmic spaces points geometrically, resolving the fine
	// low-power end of the curve.
	SpacingLogarithmic Spacing = "logarithmic"
)

// Valid reports whether s names a known spacing.
func (s Spacing) Valid() bool {
	return s == SpacingLinear || s == SpacingLogarithmic
}

// Points returns the n control values a sweep visits across b, endpoints
// included. With logarithmic spacing a zero lower bound is substituted by
// high*1e-6, a documented approximation rather than an error.
func Points(b mapping.Bounds, n int, spacing Spacing) ([]float64, error) {
	if n < 2 {
		return nil, fmt.Errorf("a sweep needs at least 2 points, got %d", n)
	}
	switch spacing {
	case SpacingLinear:
		return linspace(b.Low, b.High, n), nil
	case SpacingLogarithmic:
		low := b.Low
		if low == 0 {
			low = b.High * 1e-6
		}
		if low <= 0 || b.High <= 0 {
			return nil, fmt.Errorf("logarithmic spacing needs positive control bounds, got %s", b)
		}
		return geomspace(low, b.High, n), nil
	default:
		return nil, fmt.Errorf("unknown spacing %q", spacing)
	}
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	out[n-1] = hi
	return out
}

func geomspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = lo * math.Pow(hi/lo, float64(i)/float64(n-1))
	}
	out[n-1] = hi
	return out
}
