package mapping

import (
	"errors"
	"fmt"
)

// Bounds is a closed interval of allowed values.
type Bounds struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Contains reports whether v lies inside the interval.
func (b Bounds) Contains(v float64) bool {
	return v >= b.Low && v <= b.High
}

// Span returns the width of the interval.
func (b Bounds) Span() float64 {
	return b.High - b.Low
}

func (b Bounds) String() string {
	return fmt.Sprintf("[%g, %g]", b.Low, b.High)
}

// Override optionally narrows the hardware control limits from configuration.
// A nil side leaves the hardware limit in place.
type Override struct {
	Low  *float64 `json:"low,omitempty"`
	High *float64 `json:"high,omitempty"`
}

// ErrBoundsEmpty is returned when the resolved control interval contains no
// values at all.
var ErrBoundsEmpty = errors.New("control bounds are empty: lower limit is above upper limit")

// EffectiveBounds intersects the hardware control limits with an override.
// The tighter limit wins on each side. Every sweep point and every setpoint
// is validated against the resolved interval.
func EffectiveBounds(hwLow, hwHigh float64, ov Override) (Bounds, error) {
	b := Bounds{Low: hwLow, High: hwHigh}
	if ov.Low != nil && *ov.Low > b.Low {
		b.Low = *ov.Low
	}
	if ov.High != nil && *ov.High < b.High {
		b.High = *ov.High
	}
	if b.Low > b.High {
		return Bounds{}, ErrBoundsEmpty
	}
	return b, nil
}
