package device

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// scannerAxes is the axis addressing order of the scan controller. The
// fourth axis ("a") is the conventional power-control output.
const scannerAxes = "xyza"

// ScannerChannel reuses one analog output axis of a confocal scan controller
// as a power control:
//
//	POS a 0.42
//	POS? a     -> 0.42
//	RANGE? a   -> 0 1
type ScannerChannel struct {
	conn *Conn
	axis string
	low  float64
	high float64
}

var _ ControlSource = (*ScannerChannel)(nil)

// NewScannerChannel binds a scanner axis by index and queries its output
// range.
func NewScannerChannel(conn *Conn, index int) (*ScannerChannel, error) {
	if index < 0 || index >= len(scannerAxes) {
		return nil, pkgerrors.Errorf("scanner channel index %d out of range 0..%d", index, len(scannerAxes)-1)
	}
	s := &ScannerChannel{conn: conn, axis: scannerAxes[index : index+1]}
	var err error
	if s.low, s.high, err = conn.QueryFloatPair(fmt.Sprintf("RANGE? %s", s.axis)); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the axis position.
func (s *ScannerChannel) Get() (float64, error) {
	return s.conn.QueryFloat(fmt.Sprintf("POS? %s", s.axis))
}

// Set moves the axis.
func (s *ScannerChannel) Set(value float64) error {
	return s.conn.Send(fmt.Sprintf("POS %s %g", s.axis, value))
}

// Bounds returns the axis output range.
func (s *ScannerChannel) Bounds() (float64, float64) {
	return s.low, s.high
}
