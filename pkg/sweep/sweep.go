// Package sweep drives automated calibration measurements across a laser
// line's control range: write a control value, wait for the output to settle,
// take one power reading, advance. The state machine is cooperative and
// timer-driven; the settle delay is its only suspension point, so an abort
// takes effect within one settle interval.
package sweep

import (
	"errors"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/beamd-dev/beamd/pkg/mapping"
)

// Phase defines the states of the sweep state machine.
type Phase string

const (
	PhaseIdle      Phase = "Idle"
	PhaseStepping  Phase = "Stepping"
	PhaseSettling  Phase = "Settling"
	PhaseMeasuring Phase = "Measuring"
	PhaseDone      Phase = "Done"
)

// Outcome tells how a sweep ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "Completed"
	OutcomeAborted   Outcome = "Aborted"
	OutcomeFailed    Outcome = "Failed"
)

var (
	// ErrActive is returned when a sweep is started while one is running.
	ErrActive = errors.New("calibration sweep already active")
	// ErrNotRunning is returned when there is no sweep to abort.
	ErrNotRunning = errors.New("no calibration sweep running")
)

// TimerFunc arms a one-shot timer and returns a cancel function. The default
// wraps time.AfterFunc; tests inject a manual version so the state machine
// runs without a real clock.
type TimerFunc func(d time.Duration, fn func()) (cancel func())

func realTimer(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Driver walks the control range point by point and records the measured
// curve. One sweep at a time; Abort returns to Idle immediately and keeps the
// partially filled curve.
type Driver struct {
	set  func(control float64) error
	read func() (float64, error)

	newTimer TimerFunc

	// onPoint fires after every completed measurement, onDone once per
	// sweep. Both run without the driver lock held.
	onPoint func(index, total int, control, power float64)
	onDone  func(curve *mapping.Curve, outcome Outcome, err error)

	mu          sync.Mutex
	phase       Phase
	curve       *mapping.Curve
	bounds      mapping.Bounds
	settle      time.Duration
	cancelTimer func()
	gen         uint64
}

// NewDriver builds a sweep driver over a control writer and a meter reader.
// The onPoint and onDone callbacks may be nil.
func NewDriver(
	set func(control float64) error,
	read func() (float64, error),
	onPoint func(index, total int, control, power float64),
	onDone func(curve *mapping.Curve, outcome Outcome, err error),
) *Driver {
	return &Driver{
		set:      set,
		read:     read,
		newTimer: realTimer,
		onPoint:  onPoint,
		onDone:   onDone,
		phase:    PhaseIdle,
	}
}

// Start begins a sweep over the given control points. Every point must lie
// inside bounds. Rejected with ErrActive while a sweep is running.
func (d *Driver) Start(points []float64, bounds mapping.Bounds, settle time.Duration) error {
	d.mu.Lock()
	if d.phase != PhaseIdle && d.phase != PhaseDone {
		d.mu.Unlock()
		return ErrActive
	}
	if len(points) == 0 {
		d.mu.Unlock()
		return errors.New("no sweep points")
	}
	d.curve = mapping.NewCurve(points)
	d.bounds = bounds
	d.settle = settle
	d.phase = PhaseStepping
	d.gen++
	d.mu.Unlock()

	d.step()
	return nil
}

// Abort stops the active sweep right away. The partial curve is delivered to
// the finished callback with the Aborted outcome.
func (d *Driver) Abort() error {
	d.mu.Lock()
	if d.phase == PhaseIdle || d.phase == PhaseDone {
		d.mu.Unlock()
		return ErrNotRunning
	}
	if d.cancelTimer != nil {
		d.cancelTimer()
		d.cancelTimer = nil
	}
	d.gen++
	d.phase = PhaseIdle
	curve := d.curve.Clone()
	done := d.onDone
	d.mu.Unlock()

	if done != nil {
		done(curve, OutcomeAborted, nil)
	}
	return nil
}

// Phase returns the current phase.
func (d *Driver) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

// Active reports whether a sweep currently owns the control source.
func (d *Driver) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase != PhaseIdle && d.phase != PhaseDone
}

// Progress returns how many points are measured and how many the sweep has
// in total.
func (d *Driver) Progress() (measured, total int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.curve == nil {
		return 0, 0
	}
	return d.curve.Measured(), d.curve.Len()
}

// Curve returns a copy of the latest curve, nil when no sweep ever ran.
func (d *Driver) Curve() *mapping.Curve {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.curve.Clone()
}

// step performs the Stepping phase: pick the next unmeasured point, write its
// control value and arm the settle timer.
func (d *Driver) step() {
	d.mu.Lock()
	if d.phase != PhaseStepping {
		d.mu.Unlock()
		return
	}

	idx := d.curve.NextMissing()
	if idx < 0 {
		d.phase = PhaseDone
		d.cancelTimer = nil
		curve := d.curve.Clone()
		done := d.onDone
		d.mu.Unlock()
		if done != nil {
			done(curve, OutcomeCompleted, nil)
		}
		return
	}

	ctl := d.curve.Controls[idx]
	if !d.bounds.Contains(ctl) {
		// Points come from the same bounds, so this cannot trigger unless
		// something is badly wrong upstream.
		d.fail(pkgerrors.Errorf("sweep point %g escapes control bounds %s", ctl, d.bounds))
		return
	}
	if err := d.set(ctl); err != nil {
		d.fail(pkgerrors.Wrapf(err, "failed to set control %g", ctl))
		return
	}

	d.phase = PhaseSettling
	gen := d.gen
	d.cancelTimer = d.newTimer(d.settle, func() { d.measure(gen) })
	d.mu.Unlock()
}

// measure performs the Measuring phase: one meter reading for the pending
// point, then advance.
func (d *Driver) measure(gen uint64) {
	d.mu.Lock()
	if d.gen != gen || d.phase != PhaseSettling {
		d.mu.Unlock()
		return
	}
	d.phase = PhaseMeasuring
	d.cancelTimer = nil

	idx := d.curve.NextMissing()
	if idx < 0 {
		d.phase = PhaseStepping
		d.mu.Unlock()
		d.step()
		return
	}

	power, err := d.read()
	if err != nil {
		d.fail(pkgerrors.Wrap(err, "failed to read power meter"))
		return
	}
	d.curve.Powers[idx] = power
	ctl := d.curve.Controls[idx]
	total := d.curve.Len()
	point := d.onPoint

	d.phase = PhaseStepping
	d.mu.Unlock()

	if point != nil {
		point(idx, total, ctl, power)
	}
	d.step()
}

// fail aborts the sweep on an adapter error. Called with the lock held;
// releases it.
func (d *Driver) fail(err error) {
	d.gen++
	d.phase = PhaseIdle
	d.cancelTimer = nil
	curve := d.curve.Clone()
	done := d.onDone
	d.mu.Unlock()

	if done != nil {
		done(curve, OutcomeFailed, err)
	}
}
