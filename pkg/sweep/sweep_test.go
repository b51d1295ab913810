package sweep

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/beamd-dev/beamd/pkg/mapping"
)

// manualTimer queues timer callbacks so tests step the state machine by hand.
type manualTimer struct {
	mu       sync.Mutex
	pending  []func()
	canceled int
}

func (m *manualTimer) arm(_ time.Duration, fn func()) func() {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		m.canceled++
		m.mu.Unlock()
	}
}

func (m *manualTimer) fire(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		t.Fatalf("no settle timer armed")
	}
	fn := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()
	fn()
}

// fakeBench plays a deterministic plant: power is control squared.
type fakeBench struct {
	log     []string
	control float64
	setErr  error
	readErr error
}

func (f *fakeBench) set(v float64) error {
	if f.setErr != nil && v >= 5 {
		return f.setErr
	}
	f.control = v
	f.log = append(f.log, fmt.Sprintf("set:%g", v))
	return nil
}

func (f *fakeBench) read() (float64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	f.log = append(f.log, "read")
	return f.control * f.control, nil
}

func newTestDriver(bench *fakeBench, timer *manualTimer) (*Driver, *[]Outcome, *[]int) {
	outcomes := &[]Outcome{}
	points := &[]int{}
	d := NewDriver(bench.set, bench.read,
		func(index, total int, control, power float64) {
			*points = append(*points, index)
		},
		func(curve *mapping.Curve, outcome Outcome, err error) {
			*outcomes = append(*outcomes, outcome)
		})
	d.newTimer = timer.arm
	return d, outcomes, points
}

func TestSweepOrdering(t *testing.T) {
	bench := &fakeBench{}
	timer := &manualTimer{}
	d, outcomes, _ := newTestDriver(bench, timer)

	pts, err := Points(mapping.Bounds{Low: 0, High: 10}, 5, SpacingLinear)
	if err != nil {
		t.Fatalf("Points failed: %v", err)
	}
	if err := d.Start(pts, mapping.Bounds{Low: 0, High: 10}, 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	for i := 0; i < 5; i++ {
		timer.fire(t)
	}

	want := []string{
		"set:0", "read",
		"set:2.5", "read",
		"set:5", "read",
		"set:7.5", "read",
		"set:10", "read",
	}
	if len(bench.log) != len(want) {
		t.Fatalf("expected %d bench calls, got %v", len(want), bench.log)
	}
	for i := range want {
		if bench.log[i] != want[i] {
			t.Fatalf("call %d: expected %s, got %s (full log %v)", i, want[i], bench.log[i], bench.log)
		}
	}

	if d.Phase() != PhaseDone {
		t.Fatalf("expected Done, got %s", d.Phase())
	}
	if len(*outcomes) != 1 || (*outcomes)[0] != OutcomeCompleted {
		t.Fatalf("expected one Completed outcome, got %v", *outcomes)
	}
	curve := d.Curve()
	if !curve.Complete() {
		t.Fatalf("curve should be complete")
	}
	if curve.Powers[4] != 100 {
		t.Fatalf("expected measured 100 at control 10, got %v", curve.Powers[4])
	}
}

func TestSweepProgressCallbacks(t *testing.T) {
	bench := &fakeBench{}
	timer := &manualTimer{}
	d, _, points := newTestDriver(bench, timer)

	pts, _ := Points(mapping.Bounds{Low: 0, High: 10}, 3, SpacingLinear)
	if err := d.Start(pts, mapping.Bounds{Low: 0, High: 10}, 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		timer.fire(t)
	}
	if len(*points) != 3 || (*points)[0] != 0 || (*points)[2] != 2 {
		t.Fatalf("expected one progress callback per point in order, got %v", *points)
	}
}

func TestSweepAbortKeepsPartialCurve(t *testing.T) {
	bench := &fakeBench{}
	timer := &manualTimer{}
	d, outcomes, _ := newTestDriver(bench, timer)

	pts, _ := Points(mapping.Bounds{Low: 0, High: 10}, 5, SpacingLinear)
	if err := d.Start(pts, mapping.Bounds{Low: 0, High: 10}, 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Two measurements, then abort while the third point settles.
	timer.fire(t)
	timer.fire(t)
	if err := d.Abort(); err != nil {
		t.Fatalf("Abort failed: %v", err)
	}

	if d.Phase() != PhaseIdle {
		t.Fatalf("abort must return to Idle immediately, got %s", d.Phase())
	}
	if len(*outcomes) != 1 || (*outcomes)[0] != OutcomeAborted {
		t.Fatalf("expected one Aborted outcome, got %v", *outcomes)
	}

	curve := d.Curve()
	if got := curve.Measured(); got != 2 {
		t.Fatalf("expected exactly 2 measured samples, got %d", got)
	}
	if got := curve.Len() - curve.Measured(); got != 3 {
		t.Fatalf("expected 3 missing entries, got %d", got)
	}

	// A stale settle timer firing after the abort must do nothing.
	timer.fire(t)
	if d.Phase() != PhaseIdle || curve.Measured() != 2 {
		t.Fatalf("stale timer should be ignored after abort")
	}
}

func TestSweepSingleFlight(t *testing.T) {
	bench := &fakeBench{}
	timer := &manualTimer{}
	d, _, _ := newTestDriver(bench, timer)

	pts, _ := Points(mapping.Bounds{Low: 0, High: 10}, 3, SpacingLinear)
	if err := d.Start(pts, mapping.Bounds{Low: 0, High: 10}, 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := d.Start(pts, mapping.Bounds{Low: 0, High: 10}, 0); !errors.Is(err, ErrActive) {
		t.Fatalf("expected ErrActive, got %v", err)
	}

	// After completion a new sweep may start.
	for i := 0; i < 3; i++ {
		timer.fire(t)
	}
	if err := d.Start(pts, mapping.Bounds{Low: 0, High: 10}, 0); err != nil {
		t.Fatalf("restart after Done failed: %v", err)
	}
}

func TestSweepSetErrorFails(t *testing.T) {
	bench := &fakeBench{setErr: errors.New("stage jammed")}
	timer := &manualTimer{}
	d, outcomes, _ := newTestDriver(bench, timer)

	var lastErr error
	d.onDone = func(curve *mapping.Curve, outcome Outcome, err error) {
		*outcomes = append(*outcomes, outcome)
		lastErr = err
	}

	pts, _ := Points(mapping.Bounds{Low: 0, High: 10}, 5, SpacingLinear)
	if err := d.Start(pts, mapping.Bounds{Low: 0, High: 10}, 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Points 0 and 2.5 succeed; the write of 5 fails during the advance
	// after the second measurement.
	timer.fire(t)
	timer.fire(t)

	if d.Phase() != PhaseIdle {
		t.Fatalf("failed sweep must return to Idle, got %s", d.Phase())
	}
	if len(*outcomes) != 1 || (*outcomes)[0] != OutcomeFailed {
		t.Fatalf("expected one Failed outcome, got %v", *outcomes)
	}
	if lastErr == nil || !errors.Is(lastErr, bench.setErr) {
		t.Fatalf("adapter error should surface, got %v", lastErr)
	}
	if got := d.Curve().Measured(); got != 2 {
		t.Fatalf("expected 2 samples before the failure, got %d", got)
	}
}

func TestSweepReadErrorFails(t *testing.T) {
	bench := &fakeBench{readErr: errors.New("meter offline")}
	timer := &manualTimer{}
	d, outcomes, _ := newTestDriver(bench, timer)

	pts, _ := Points(mapping.Bounds{Low: 0, High: 10}, 3, SpacingLinear)
	if err := d.Start(pts, mapping.Bounds{Low: 0, High: 10}, 0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	timer.fire(t)

	if d.Phase() != PhaseIdle {
		t.Fatalf("failed sweep must return to Idle, got %s", d.Phase())
	}
	if len(*outcomes) != 1 || (*outcomes)[0] != OutcomeFailed {
		t.Fatalf("expected one Failed outcome, got %v", *outcomes)
	}
	if got := d.Curve().Measured(); got != 0 {
		t.Fatalf("expected no samples, got %d", got)
	}
}

func TestSweepRejectsOutOfBoundsPoint(t *testing.T) {
	bench := &fakeBench{}
	timer := &manualTimer{}
	d, outcomes, _ := newTestDriver(bench, timer)

	err := d.Start([]float64{20}, mapping.Bounds{Low: 0, High: 10}, 0)
	if err != nil {
		t.Fatalf("Start itself should accept the request: %v", err)
	}
	if len(*outcomes) != 1 || (*outcomes)[0] != OutcomeFailed {
		t.Fatalf("expected Failed outcome for out-of-bounds point, got %v", *outcomes)
	}
	if len(bench.log) != 0 {
		t.Fatalf("no hardware call should happen for an out-of-bounds point, got %v", bench.log)
	}
}

func TestAbortWithoutSweep(t *testing.T) {
	bench := &fakeBench{}
	timer := &manualTimer{}
	d, _, _ := newTestDriver(bench, timer)

	if err := d.Abort(); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}
