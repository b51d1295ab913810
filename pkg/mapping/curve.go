package mapping

import (
	"encoding/json"
	"math"
	"slices"
)

// Curve holds the samples recorded by a calibration sweep. Controls lists the
// swept control values in measurement order; Powers holds one meter reading
// per control, NaN where the point has not been measured.
type Curve struct {
	Controls []float64
	Powers   []float64
}

// NewCurve returns a curve over the given control points with every power
// still missing.
func NewCurve(controls []float64) *Curve {
	powers := make([]float64, len(controls))
	for i := range powers {
		powers[i] = math.NaN()
	}
	return &Curve{Controls: slices.Clone(controls), Powers: powers}
}

// Len returns the number of sweep points.
func (c *Curve) Len() int { return len(c.Controls) }

// Measured returns the number of points that have a power reading.
func (c *Curve) Measured() int {
	n := 0
	for _, p := range c.Powers {
		if !math.IsNaN(p) {
			n++
		}
	}
	return n
}

// Complete reports whether every point has a power reading.
func (c *Curve) Complete() bool {
	return c.Len() > 0 && c.Measured() == c.Len()
}

// NextMissing returns the index of the first point without a reading, or -1
// when the curve is complete.
func (c *Curve) NextMissing() int {
	for i, p := range c.Powers {
		if math.IsNaN(p) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the curve.
func (c *Curve) Clone() *Curve {
	if c == nil {
		return nil
	}
	return &Curve{Controls: slices.Clone(c.Controls), Powers: slices.Clone(c.Powers)}
}

// curveJSON is the wire form of a Curve. Missing powers serialize as null
// because JSON has no NaN.
type curveJSON struct {
	Controls []float64  `json:"controls"`
	Powers   []*float64 `json:"powers"`
}

// MarshalJSON implements json.Marshaler.
func (c *Curve) MarshalJSON() ([]byte, error) {
	out := curveJSON{Controls: c.Controls, Powers: make([]*float64, len(c.Powers))}
	if out.Controls == nil {
		out.Controls = []float64{}
	}
	for i, p := range c.Powers {
		if !math.IsNaN(p) {
			v := p
			out.Powers[i] = &v
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Curve) UnmarshalJSON(data []byte) error {
	var in curveJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	c.Controls = in.Controls
	c.Powers = make([]float64, len(in.Powers))
	for i, p := range in.Powers {
		if p == nil {
			c.Powers[i] = math.NaN()
		} else {
			c.Powers[i] = *p
		}
	}
	return nil
}

// monotonic reports the direction of xs and whether it is strictly monotonic.
// A NaN anywhere in the sequence makes it non-strict.
func monotonic(xs []float64) (ascending, strict bool) {
	if len(xs) < 2 {
		return true, true
	}
	ascending = xs[1] > xs[0]
	for i := 1; i < len(xs); i++ {
		d := xs[i] - xs[i-1]
		if math.IsNaN(d) || d == 0 || (d > 0) != ascending {
			return ascending, false
		}
	}
	return ascending, true
}
