package device

import "fmt"

// MotorAxis positions a motorized rotation mount holding a half-wave plate.
// The stage answers in degrees:
//
//	MOVEABS phi 47.5
//	GETPOS? phi  -> 47.5
//	LIMITS? phi  -> 0 360
type MotorAxis struct {
	conn *Conn
	axis string
	low  float64
	high float64
}

var _ ControlSource = (*MotorAxis)(nil)

// NewMotorAxis binds a named stage axis and queries its position limits.
func NewMotorAxis(conn *Conn, axis string) (*MotorAxis, error) {
	m := &MotorAxis{conn: conn, axis: axis}
	var err error
	if m.low, m.high, err = conn.QueryFloatPair(fmt.Sprintf("LIMITS? %s", axis)); err != nil {
		return nil, err
	}
	return m, nil
}

// Get returns the stage angle.
func (m *MotorAxis) Get() (float64, error) {
	return m.conn.QueryFloat(fmt.Sprintf("GETPOS? %s", m.axis))
}

// Set moves the stage to an absolute angle.
func (m *MotorAxis) Set(value float64) error {
	return m.conn.Send(fmt.Sprintf("MOVEABS %s %g", m.axis, value))
}

// Bounds returns the stage position limits.
func (m *MotorAxis) Bounds() (float64, float64) {
	return m.low, m.high
}
