package device

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Shutter drives a numbered mechanical shutter on the bench controller.
//
//	SHUT 2 1   opens shutter 2
//	SHUT? 2 -> 1
type Shutter struct {
	conn  *Conn
	index int
}

var _ Switch = (*Shutter)(nil)

func NewShutter(conn *Conn, index int) *Shutter {
	return &Shutter{conn: conn, index: index}
}

// State reports whether the shutter is open.
func (s *Shutter) State() (bool, error) {
	reply, err := s.conn.Query(fmt.Sprintf("SHUT? %d", s.index))
	if err != nil {
		return false, err
	}
	switch strings.TrimSpace(reply) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	}
	return false, pkgerrors.Errorf("unexpected shutter state %q from %s", reply, s.conn.Name())
}

// SetState opens or closes the shutter.
func (s *Shutter) SetState(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return s.conn.Send(fmt.Sprintf("SHUT %d %d", s.index, v))
}
