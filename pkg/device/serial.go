package device

import (
	"strconv"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

const (
	portReadTimeout = 500 * time.Millisecond
	replyDeadline   = 2 * time.Second
)

// Conn is a line-oriented connection to a bench instrument. Commands and
// queries are serialized on the wire; instruments answer one line per query.
// Several adapters may share one Conn when they address different channels of
// the same instrument.
type Conn struct {
	mu   sync.Mutex
	port serial.Port
	name string
}

// Open connects to the instrument at the given serial device and baud rate.
func Open(device string, baud int) (*Conn, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open %s", device)
	}
	if err := port.SetReadTimeout(portReadTimeout); err != nil {
		_ = port.Close()
		return nil, pkgerrors.Wrapf(err, "failed to set read timeout on %s", device)
	}
	logrus.WithFields(logrus.Fields{"device": device, "baud": baud}).Debug("instrument connected")
	return &Conn{port: port, name: device}, nil
}

// Name returns the serial device path.
func (c *Conn) Name() string { return c.name }

// Close closes the underlying port.
func (c *Conn) Close() error {
	return c.port.Close()
}

// Send writes one command line. No reply is expected.
func (c *Conn) Send(cmd string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	logrus.WithFields(logrus.Fields{"device": c.name, "cmd": cmd}).Trace("instrument send")
	return c.write(cmd)
}

// Query writes one command line and reads one reply line.
func (c *Conn) Query(cmd string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.write(cmd); err != nil {
		return "", err
	}
	line, err := c.readLine()
	if err != nil {
		return "", pkgerrors.Wrapf(err, "no reply from %s to %q", c.name, cmd)
	}
	logrus.WithFields(logrus.Fields{"device": c.name, "cmd": cmd, "reply": line}).Trace("instrument query")
	return line, nil
}

// QueryFloat queries and parses a single numeric reply.
func (c *Conn) QueryFloat(cmd string) (float64, error) {
	line, err := c.Query(cmd)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "unparseable reply %q from %s to %q", line, c.name, cmd)
	}
	return v, nil
}

// QueryFloatPair queries and parses a space-separated pair, as instruments
// report ranges.
func (c *Conn) QueryFloatPair(cmd string) (float64, float64, error) {
	line, err := c.Query(cmd)
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return 0, 0, pkgerrors.Errorf("expected two values from %s to %q, got %q", c.name, cmd, line)
	}
	a, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, 0, pkgerrors.Wrapf(err, "unparseable reply %q from %s", line, c.name)
	}
	b, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, 0, pkgerrors.Wrapf(err, "unparseable reply %q from %s", line, c.name)
	}
	return a, b, nil
}

func (c *Conn) write(cmd string) error {
	if _, err := c.port.Write([]byte(cmd + "\n")); err != nil {
		return pkgerrors.Wrapf(err, "failed to write %q to %s", cmd, c.name)
	}
	return nil
}

// readLine collects bytes until a newline. The port read timeout keeps the
// loop responsive; the deadline bounds how long a dead instrument can stall
// a query.
func (c *Conn) readLine() (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	deadline := time.Now().Add(replyDeadline)
	for time.Now().Before(deadline) {
		n, err := c.port.Read(buf)
		if err != nil {
			return "", err
		}
		if n == 0 {
			continue
		}
		if buf[0] == '\n' {
			return strings.TrimRight(sb.String(), "\r"), nil
		}
		sb.WriteByte(buf[0])
	}
	return "", pkgerrors.Errorf("timed out after %s", replyDeadline)
}
