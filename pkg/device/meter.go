package device

// Meter reads optical power off a SCPI-speaking power meter head.
type Meter struct {
	conn *Conn
}

var _ PowerMeter = (*Meter)(nil)

func NewMeter(conn *Conn) *Meter {
	return &Meter{conn: conn}
}

// Read triggers a measurement and returns power in watts.
func (m *Meter) Read() (float64, error) {
	return m.conn.QueryFloat("MEAS:POW?")
}
