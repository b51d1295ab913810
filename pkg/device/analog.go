package device

import "fmt"

// AnalogOutput drives an AOM or electronic variable attenuator through one
// DAC channel of a bench voltage source:
//
//	SOUR1:VOLT 0.42
//	SOUR1:VOLT?      -> 0.42
//	SOUR1:VOLT? MIN  -> 0
//	SOUR1:VOLT? MAX  -> 1
type AnalogOutput struct {
	conn    *Conn
	channel int
	low     float64
	high    float64
}

var _ ControlSource = (*AnalogOutput)(nil)

// NewAnalogOutput binds a DAC channel and queries its hardware voltage range.
func NewAnalogOutput(conn *Conn, channel int) (*AnalogOutput, error) {
	a := &AnalogOutput{conn: conn, channel: channel}
	var err error
	if a.low, err = conn.QueryFloat(fmt.Sprintf("SOUR%d:VOLT? MIN", channel)); err != nil {
		return nil, err
	}
	if a.high, err = conn.QueryFloat(fmt.Sprintf("SOUR%d:VOLT? MAX", channel)); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns the applied drive voltage.
func (a *AnalogOutput) Get() (float64, error) {
	return a.conn.QueryFloat(fmt.Sprintf("SOUR%d:VOLT?", a.channel))
}

// Set applies a drive voltage.
func (a *AnalogOutput) Set(value float64) error {
	return a.conn.Send(fmt.Sprintf("SOUR%d:VOLT %g", a.channel, value))
}

// Bounds returns the channel's voltage limits.
func (a *AnalogOutput) Bounds() (float64, float64) {
	return a.low, a.high
}
