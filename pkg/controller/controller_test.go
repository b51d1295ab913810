package controller

import (
	"errors"
	"testing"
	"time"

	"github.com/beamd-dev/beamd/pkg/events"
	"github.com/beamd-dev/beamd/pkg/mapping"
	"github.com/beamd-dev/beamd/pkg/state"
	"github.com/beamd-dev/beamd/pkg/sweep"
)

// fakeSource is an in-memory control source recording every write.
type fakeSource struct {
	control float64
	low     float64
	high    float64
	sets    []float64
	setErr  error
}

func (f *fakeSource) Get() (float64, error) { return f.control, nil }

func (f *fakeSource) Set(v float64) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.control = v
	f.sets = append(f.sets, v)
	return nil
}

func (f *fakeSource) Bounds() (float64, float64) { return f.low, f.high }

// fakeMeter reads the source through a plant function.
type fakeMeter struct {
	src   *fakeSource
	plant func(control float64) float64
	err   error
}

func (f *fakeMeter) Read() (float64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.plant(f.src.control), nil
}

type fakeSwitch struct {
	on bool
}

func (f *fakeSwitch) State() (bool, error)  { return f.on, nil }
func (f *fakeSwitch) SetState(b bool) error { f.on = b; return nil }

// memStore keeps line states in memory and counts writes.
type memStore struct {
	m    map[string]state.LineState
	puts int
}

func newMemStore() *memStore { return &memStore{m: map[string]state.LineState{}} }

func (s *memStore) Get(line string) (state.LineState, bool) {
	st, ok := s.m[line]
	return st, ok
}

func (s *memStore) Put(line string, st state.LineState) {
	s.m[line] = st
	s.puts++
}

func quadCurve() *mapping.Curve {
	return &mapping.Curve{
		Controls: []float64{0, 1, 2, 3, 4},
		Powers:   []float64{0, 1, 4, 9, 16},
	}
}

func waitEvent(t *testing.T, ch chan events.Event, name string) events.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Name == name {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event", name)
		}
	}
}

func TestPowerSwitchOverlay(t *testing.T) {
	src := &fakeSource{control: 2, low: 0, high: 4}
	sw := &fakeSwitch{on: true}
	store := newMemStore()
	store.Put("red", state.LineState{Mode: "interpolated", Curve: quadCurve()})

	c := New(Options{Name: "red", Source: src, Switch: sw, Store: store})

	got, err := c.Power()
	if err != nil {
		t.Fatalf("Power with switch on: %v", err)
	}
	if got != 4 {
		t.Fatalf("Power = %g, want 4", got)
	}

	sw.on = false
	got, err = c.Power()
	if err != nil {
		t.Fatalf("Power with switch off: %v", err)
	}
	if got != 0 {
		t.Fatalf("Power with switch off = %g, want exactly 0", got)
	}

	// The setpoint ignores the switch.
	got, err = c.PowerSetpoint()
	if err != nil {
		t.Fatalf("PowerSetpoint: %v", err)
	}
	if got != 4 {
		t.Fatalf("PowerSetpoint = %g, want 4", got)
	}
}

func TestPowerWithoutSwitch(t *testing.T) {
	src := &fakeSource{control: 3, low: 0, high: 4}
	store := newMemStore()
	store.Put("red", state.LineState{Mode: "interpolated", Curve: quadCurve()})

	c := New(Options{Name: "red", Source: src, Store: store})

	got, err := c.Power()
	if err != nil {
		t.Fatalf("Power: %v", err)
	}
	if got != 9 {
		t.Fatalf("Power = %g, want 9", got)
	}

	if _, err := c.SwitchState(); !errors.Is(err, ErrNoSwitch) {
		t.Fatalf("SwitchState error = %v, want ErrNoSwitch", err)
	}
	if err := c.SetSwitch(true); !errors.Is(err, ErrNoSwitch) {
		t.Fatalf("SetSwitch error = %v, want ErrNoSwitch", err)
	}
}

func TestPowerUncalibrated(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	sw := &fakeSwitch{on: false}
	c := New(Options{Name: "red", Source: src, Switch: sw})

	// Switch off still answers 0, calibrated or not.
	got, err := c.Power()
	if err != nil || got != 0 {
		t.Fatalf("Power = %g, %v, want 0, nil", got, err)
	}

	sw.on = true
	if _, err := c.Power(); !errors.Is(err, mapping.ErrUncalibrated) {
		t.Fatalf("Power error = %v, want ErrUncalibrated", err)
	}

	b, err := c.PowerBounds()
	if err != nil {
		t.Fatalf("PowerBounds: %v", err)
	}
	if b.Low != 0 || b.High != 0 {
		t.Fatalf("uncalibrated PowerBounds = %v, want (0, 0)", b)
	}
}

func TestSetPower(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	store := newMemStore()
	store.Put("red", state.LineState{Mode: "interpolated", Curve: quadCurve()})
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	c := New(Options{Name: "red", Source: src, Store: store, Hub: hub})

	if err := c.SetPower(17); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("SetPower(17) error = %v, want ErrOutOfBounds", err)
	}
	if err := c.SetPower(-1); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("SetPower(-1) error = %v, want ErrOutOfBounds", err)
	}
	if len(src.sets) != 0 {
		t.Fatalf("rejected requests wrote to hardware: %v", src.sets)
	}

	if err := c.SetPower(9); err != nil {
		t.Fatalf("SetPower(9): %v", err)
	}
	if len(src.sets) != 1 || src.control != 3 {
		t.Fatalf("control = %g after %d writes, want 3 after 1", src.control, len(src.sets))
	}

	ev := waitEvent(t, sub, events.PowerChanged)
	payload, err := events.DecodeAs[events.PowerChangedEvent](ev)
	if err != nil {
		t.Fatalf("decode power.changed: %v", err)
	}
	if payload.Power != 9 || payload.Control != 3 {
		t.Fatalf("power.changed payload = %+v, want power 9 control 3", payload)
	}
}

func TestSetPowerUncalibrated(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	c := New(Options{Name: "red", Source: src})

	if err := c.SetPower(1); !errors.Is(err, mapping.ErrUncalibrated) {
		t.Fatalf("SetPower error = %v, want ErrUncalibrated", err)
	}
	if len(src.sets) != 0 {
		t.Fatalf("uncalibrated SetPower wrote to hardware: %v", src.sets)
	}
}

func TestOverrideTightensPowerBounds(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	store := newMemStore()
	store.Put("red", state.LineState{Mode: "interpolated", Curve: quadCurve()})
	high := 3.0

	c := New(Options{Name: "red", Source: src, Store: store, Override: mapping.Override{High: &high}})

	b, err := c.PowerBounds()
	if err != nil {
		t.Fatalf("PowerBounds: %v", err)
	}
	if b.Low != 0 || b.High != 9 {
		t.Fatalf("PowerBounds = %v, want (0, 9)", b)
	}
	if err := c.SetPower(16); !errors.Is(err, ErrOutOfBounds) {
		t.Fatalf("SetPower(16) with tightened bounds error = %v, want ErrOutOfBounds", err)
	}
}

func TestCalibrationSweepCompletes(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	mtr := &fakeMeter{src: src, plant: func(c float64) float64 { return c * c }}
	store := newMemStore()
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	c := New(Options{Name: "red", Source: src, Meter: mtr, Store: store, Hub: hub})

	if err := c.StartCalibration(5, sweep.SpacingLinear, 0); err != nil {
		t.Fatalf("StartCalibration: %v", err)
	}

	progress := 0
	deadline := time.After(2 * time.Second)
collect:
	for {
		select {
		case ev := <-sub:
			switch ev.Name {
			case events.CalibrationProgress:
				progress++
			case events.CalibrationFinished:
				payload, err := events.DecodeAs[events.CalibrationFinishedEvent](ev)
				if err != nil {
					t.Fatalf("decode calibration.finished: %v", err)
				}
				if payload.Outcome != string(sweep.OutcomeCompleted) {
					t.Fatalf("outcome = %s, want Completed", payload.Outcome)
				}
				if payload.Measured != 5 || payload.Total != 5 {
					t.Fatalf("finished payload = %+v, want 5/5", payload)
				}
				break collect
			}
		case <-deadline:
			t.Fatal("timed out waiting for sweep to finish")
		}
	}
	if progress != 5 {
		t.Fatalf("got %d progress events, want 5", progress)
	}

	if !c.Calibrated() {
		t.Fatal("line not calibrated after completed sweep")
	}
	b, err := c.PowerBounds()
	if err != nil {
		t.Fatalf("PowerBounds: %v", err)
	}
	if b.Low != 0 || b.High != 16 {
		t.Fatalf("PowerBounds = %v, want (0, 16)", b)
	}

	st, ok := store.Get("red")
	if !ok {
		t.Fatal("no persisted state after sweep")
	}
	if st.Curve == nil || !st.Curve.Complete() {
		t.Fatalf("persisted curve = %+v, want complete", st.Curve)
	}
	if st.Resolution != 5 || st.Spacing != string(sweep.SpacingLinear) {
		t.Fatalf("persisted sweep settings = %d/%s, want 5/linear", st.Resolution, st.Spacing)
	}
}

func TestSetPowerDuringSweep(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	mtr := &fakeMeter{src: src, plant: func(c float64) float64 { return c * c }}
	store := newMemStore()
	store.Put("red", state.LineState{Mode: "interpolated", Curve: quadCurve()})
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	c := New(Options{Name: "red", Source: src, Meter: mtr, Store: store, Hub: hub})

	// A long settle keeps the sweep parked while we poke at it.
	if err := c.StartCalibration(3, sweep.SpacingLinear, time.Second); err != nil {
		t.Fatalf("StartCalibration: %v", err)
	}
	if !c.SweepActive() {
		t.Fatal("sweep not active after start")
	}

	if err := c.SetPower(4); !errors.Is(err, sweep.ErrActive) {
		t.Fatalf("SetPower during sweep error = %v, want ErrActive", err)
	}
	if err := c.StartCalibration(3, sweep.SpacingLinear, time.Second); !errors.Is(err, sweep.ErrActive) {
		t.Fatalf("second StartCalibration error = %v, want ErrActive", err)
	}
	if err := c.Fit(); !errors.Is(err, sweep.ErrActive) {
		t.Fatalf("Fit during sweep error = %v, want ErrActive", err)
	}

	if err := c.AbortCalibration(); err != nil {
		t.Fatalf("AbortCalibration: %v", err)
	}
	ev := waitEvent(t, sub, events.CalibrationFinished)
	payload, err := events.DecodeAs[events.CalibrationFinishedEvent](ev)
	if err != nil {
		t.Fatalf("decode calibration.finished: %v", err)
	}
	if payload.Outcome != string(sweep.OutcomeAborted) {
		t.Fatalf("outcome = %s, want Aborted", payload.Outcome)
	}
	if c.SweepActive() {
		t.Fatal("sweep still active after abort")
	}
	if c.CalibrationPhase() != sweep.PhaseIdle {
		t.Fatalf("phase = %s after abort, want Idle", c.CalibrationPhase())
	}
}

func TestFitAfterAbortIncomplete(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	mtr := &fakeMeter{src: src, plant: func(c float64) float64 { return c * c }}
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	c := New(Options{Name: "red", Source: src, Meter: mtr, Hub: hub})

	if err := c.StartCalibration(5, sweep.SpacingLinear, 40*time.Millisecond); err != nil {
		t.Fatalf("StartCalibration: %v", err)
	}

	// Let two points land, then pull the plug.
	for {
		ev := waitEvent(t, sub, events.CalibrationProgress)
		payload, err := events.DecodeAs[events.CalibrationProgressEvent](ev)
		if err != nil {
			t.Fatalf("decode calibration.progress: %v", err)
		}
		if payload.Index >= 2 {
			break
		}
	}
	if err := c.AbortCalibration(); err != nil {
		t.Fatalf("AbortCalibration: %v", err)
	}
	waitEvent(t, sub, events.CalibrationFinished)

	curve := c.Curve()
	if curve == nil {
		t.Fatal("no curve after aborted sweep")
	}
	if m := curve.Measured(); m < 2 || m >= curve.Len() {
		t.Fatalf("aborted curve has %d of %d points, want partial with at least 2", m, curve.Len())
	}

	if err := c.Fit(); !errors.Is(err, mapping.ErrCurveIncomplete) {
		t.Fatalf("Fit on partial curve error = %v, want ErrCurveIncomplete", err)
	}
	if c.Calibrated() {
		t.Fatal("line calibrated from a partial curve")
	}
}

func TestSweepFailureSurfacesAdapterError(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	mtr := &fakeMeter{src: src, err: errors.New("meter unplugged")}
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	c := New(Options{Name: "red", Source: src, Meter: mtr, Hub: hub})

	if err := c.StartCalibration(3, sweep.SpacingLinear, 0); err != nil {
		t.Fatalf("StartCalibration: %v", err)
	}
	ev := waitEvent(t, sub, events.CalibrationFinished)
	payload, err := events.DecodeAs[events.CalibrationFinishedEvent](ev)
	if err != nil {
		t.Fatalf("decode calibration.finished: %v", err)
	}
	if payload.Outcome != string(sweep.OutcomeFailed) {
		t.Fatalf("outcome = %s, want Failed", payload.Outcome)
	}
	if payload.Message == "" {
		t.Fatal("failed outcome carries no message")
	}
	if c.CalibrationPhase() != sweep.PhaseIdle {
		t.Fatalf("phase = %s after failure, want Idle", c.CalibrationPhase())
	}
}

func TestStartCalibrationRequiresMeter(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	c := New(Options{Name: "red", Source: src})

	if err := c.StartCalibration(5, sweep.SpacingLinear, 0); !errors.Is(err, ErrNoMeter) {
		t.Fatalf("StartCalibration error = %v, want ErrNoMeter", err)
	}
}

func TestMappingModeSwitch(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	store := newMemStore()
	store.Put("red", state.LineState{
		Mode:  "interpolated",
		Curve: quadCurve(),
		Params: mapping.Params{
			mapping.ParamMax:   2,
			mapping.ParamSigma: 2,
			mapping.ParamSlope: 3,
			mapping.ParamBeta:  1,
		},
	})
	hub := events.NewEventHub()
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	c := New(Options{Name: "red", Source: src, Store: store, Hub: hub})
	if !c.Calibrated() {
		t.Fatal("line not calibrated from stored curve")
	}

	if err := c.SetMappingMode("bogus"); err == nil {
		t.Fatal("SetMappingMode accepted an unknown mode")
	}

	if err := c.SetMappingMode(mapping.ModeParametric); err != nil {
		t.Fatalf("SetMappingMode(parametric): %v", err)
	}
	ev := waitEvent(t, sub, events.MappingMode)
	payload, err := events.DecodeAs[events.MappingModeEvent](ev)
	if err != nil {
		t.Fatalf("decode mapping.mode: %v", err)
	}
	if payload.Mode != string(mapping.ModeParametric) {
		t.Fatalf("mapping.mode payload = %+v, want parametric", payload)
	}
	if !c.Calibrated() {
		t.Fatal("line lost calibration despite stored model params")
	}

	// The sigmoid model answers now: 1 W sits at control 2 for this model.
	if err := c.SetPower(1); err != nil {
		t.Fatalf("SetPower(1) in parametric mode: %v", err)
	}
	if src.control != 2 {
		t.Fatalf("control = %g, want 2", src.control)
	}

	st, _ := store.Get("red")
	if st.Mode != string(mapping.ModeParametric) {
		t.Fatalf("persisted mode = %s, want parametric", st.Mode)
	}

	if err := c.SetMappingMode(mapping.ModeInterpolated); err != nil {
		t.Fatalf("SetMappingMode(interpolated): %v", err)
	}
	if !c.Calibrated() {
		t.Fatal("line not calibrated after switching back to interpolated")
	}
}

func TestModeSwitchWithoutDataUncalibrates(t *testing.T) {
	src := &fakeSource{low: 0, high: 4}
	store := newMemStore()
	store.Put("red", state.LineState{Mode: "interpolated", Curve: quadCurve()})

	c := New(Options{Name: "red", Source: src, Store: store})

	if err := c.SetMappingMode(mapping.ModeParametric); err != nil {
		t.Fatalf("SetMappingMode: %v", err)
	}
	if c.Calibrated() {
		t.Fatal("parametric mode calibrated without fitted params")
	}
	if err := c.SetPower(1); !errors.Is(err, mapping.ErrUncalibrated) {
		t.Fatalf("SetPower error = %v, want ErrUncalibrated", err)
	}
}

func TestRestoreFromStore(t *testing.T) {
	store := newMemStore()
	store.Put("red", state.LineState{
		Mode: "parametric",
		Params: mapping.Params{
			mapping.ParamMax:   2,
			mapping.ParamSigma: 2,
			mapping.ParamSlope: 3,
			mapping.ParamBeta:  1,
		},
	})

	c := New(Options{Name: "red", Source: &fakeSource{low: 0, high: 4}, Store: store})
	if c.MappingMode() != mapping.ModeParametric {
		t.Fatalf("restored mode = %s, want parametric", c.MappingMode())
	}
	if !c.Calibrated() {
		t.Fatal("line not calibrated from restored params")
	}
}
