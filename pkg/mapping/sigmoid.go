package mapping

import "math"

// Parameter names of the sigmoid model.
const (
	ParamMax   = "max"
	ParamSigma = "sigma"
	ParamSlope = "slope"
	ParamBeta  = "beta"
)

// Params holds named model coefficients, as persisted on disk and exchanged
// with clients.
type Params map[string]float64

// Clone returns a copy of the parameter set.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Sigmoid is the generalized logistic response of an acousto-optic modulator
// driven by a control value c:
//
//	power(c) = max / (1 + (sigma/c)^slope)^beta
//
// With positive coefficients the response is strictly increasing, approaches
// max as c grows and produces exactly zero power at zero control.
type Sigmoid struct {
	Max   float64
	Sigma float64
	Slope float64
	Beta  float64
}

var _ Map = (*Sigmoid)(nil)

// NewSigmoid builds the model from a named parameter set. An empty set means
// the model was never fitted.
func NewSigmoid(p Params) (*Sigmoid, error) {
	if len(p) == 0 {
		return nil, ErrUncalibrated
	}
	s := &Sigmoid{Max: p[ParamMax], Sigma: p[ParamSigma], Slope: p[ParamSlope], Beta: p[ParamBeta]}
	if !(s.Max > 0) || !(s.Sigma > 0) || !(s.Slope > 0) || !(s.Beta > 0) {
		return nil, ErrNonInvertible
	}
	return s, nil
}

// Params returns the coefficients as a named parameter set.
func (s *Sigmoid) Params() Params {
	return Params{ParamMax: s.Max, ParamSigma: s.Sigma, ParamSlope: s.Slope, ParamBeta: s.Beta}
}

// PowerOf evaluates the model. At zero control the modulator passes no light,
// so zero (and anything below) maps to exactly zero power.
func (s *Sigmoid) PowerOf(control float64) float64 {
	if control <= 0 {
		return 0
	}
	return s.Max / math.Pow(1+math.Pow(s.Sigma/control, s.Slope), s.Beta)
}

// ControlOf inverts the model analytically:
//
//	control(p) = sigma / ((max/p)^(1/beta) - 1)^(1/slope)
//
// Requesting exactly zero power returns exactly zero control. Powers at or
// above max (the model's asymptote) or below zero are unreachable.
func (s *Sigmoid) ControlOf(power float64) (float64, error) {
	if power == 0 {
		return 0, nil
	}
	if power < 0 || power >= s.Max {
		return 0, ErrOutOfRange
	}
	return s.Sigma / math.Pow(math.Pow(s.Max/power, 1/s.Beta)-1, 1/s.Slope), nil
}
