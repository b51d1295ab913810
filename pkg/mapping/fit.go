package mapping

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"
)

// invertibilityProbes is how many evenly spaced control values are checked
// after a fit.
const invertibilityProbes = 101

// Estimate returns the starting point for a sigmoid fit: max from the largest
// measured power, sigma at half the swept control span, slope 5 and beta 1.
// With no usable samples the control bounds provide the span and max falls
// back to 1.
func Estimate(c *Curve, b Bounds) Params {
	maxPower := 0.0
	minCtl, maxCtl := math.Inf(1), math.Inf(-1)
	if c != nil {
		for i, p := range c.Powers {
			if !math.IsNaN(p) && p > maxPower {
				maxPower = p
			}
			ctl := c.Controls[i]
			minCtl = math.Min(minCtl, ctl)
			maxCtl = math.Max(maxCtl, ctl)
		}
	}
	if maxPower <= 0 {
		maxPower = 1
	}
	span := maxCtl - minCtl
	if math.IsInf(span, 0) || span <= 0 {
		span = b.Span()
	}
	sigma := span / 2
	if !(sigma > 0) {
		sigma = 1
	}
	return Params{ParamMax: maxPower, ParamSigma: sigma, ParamSlope: 5, ParamBeta: 1}
}

// Fit refines the sigmoid against a complete calibration curve by minimizing
// the sum of squared residuals with Nelder-Mead. The result is rejected with
// ErrFitDiverged when the optimizer fails or when the fitted response is not
// finite and strictly increasing across the control bounds.
func Fit(c *Curve, seed Params, b Bounds) (Params, error) {
	if c == nil || c.Len() == 0 {
		return nil, ErrUncalibrated
	}
	if !c.Complete() {
		return nil, ErrCurveIncomplete
	}
	if len(seed) == 0 {
		seed = Estimate(c, b)
	}

	objective := func(x []float64) float64 {
		s := Sigmoid{Max: x[0], Sigma: x[1], Slope: x[2], Beta: x[3]}
		if !(s.Max > 0) || !(s.Sigma > 0) || !(s.Slope > 0) || !(s.Beta > 0) {
			return math.Inf(1)
		}
		sum := 0.0
		for i, ctl := range c.Controls {
			d := s.PowerOf(ctl) - c.Powers[i]
			sum += d * d
		}
		if math.IsNaN(sum) {
			return math.Inf(1)
		}
		return sum
	}

	problem := optimize.Problem{Func: objective}
	x0 := []float64{seed[ParamMax], seed[ParamSigma], seed[ParamSlope], seed[ParamBeta]}
	result, err := optimize.Minimize(problem, x0, nil, &optimize.NelderMead{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitDiverged, err)
	}
	if err := result.Status.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFitDiverged, err)
	}

	fitted := &Sigmoid{Max: result.X[0], Sigma: result.X[1], Slope: result.X[2], Beta: result.X[3]}
	if !(fitted.Max > 0) || !(fitted.Sigma > 0) || !(fitted.Slope > 0) || !(fitted.Beta > 0) {
		return nil, ErrFitDiverged
	}
	if err := verifyInvertible(fitted, b); err != nil {
		return nil, err
	}
	return fitted.Params(), nil
}

// verifyInvertible samples the fitted model across the control bounds and
// rejects it unless the response is finite and strictly increasing.
func verifyInvertible(m Map, b Bounds) error {
	if !(b.High > b.Low) {
		return ErrFitDiverged
	}
	prev := math.Inf(-1)
	for i := 0; i < invertibilityProbes; i++ {
		ctl := b.Low + b.Span()*float64(i)/float64(invertibilityProbes-1)
		p := m.PowerOf(ctl)
		if math.IsNaN(p) || math.IsInf(p, 0) || p <= prev {
			return ErrFitDiverged
		}
		prev = p
	}
	return nil
}
