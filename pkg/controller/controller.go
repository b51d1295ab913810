// Package controller owns one laser line end to end: its hardware adapters,
// its control-to-power mapping, and its calibration sweeps. All daemon
// operations on a line go through here.
package controller

import (
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/beamd-dev/beamd/pkg/device"
	"github.com/beamd-dev/beamd/pkg/events"
	"github.com/beamd-dev/beamd/pkg/mapping"
	"github.com/beamd-dev/beamd/pkg/state"
	"github.com/beamd-dev/beamd/pkg/sweep"
)

// Options wires a Controller to its adapters and services. Meter, Switch,
// Hub and Store may be nil; the corresponding features degrade gracefully.
type Options struct {
	Name        string
	Color       string
	Source      device.ControlSource
	Meter       device.PowerMeter
	Switch      device.Switch
	Override    mapping.Override
	DefaultMode mapping.Mode
	Hub         *events.EventHub
	Store       state.Store
}

// Controller is the exclusive owner of a laser line. The mapping between
// control values and optical power is rebuilt from persisted state at
// construction and updated by calibration sweeps and fits.
type Controller struct {
	name  string
	color string

	source device.ControlSource
	meter  device.PowerMeter
	sw     device.Switch

	hub   *events.EventHub
	store state.Store

	driver *sweep.Driver

	mu         sync.Mutex
	mode       mapping.Mode
	params     mapping.Params
	curve      *mapping.Curve
	m          mapping.Map
	override   mapping.Override
	resolution int
	settle     time.Duration
	spacing    sweep.Spacing
}

// New builds a controller for one line and restores its last calibration
// from the store.
func New(o Options) *Controller {
	c := &Controller{
		name:     o.Name,
		color:    o.Color,
		source:   o.Source,
		meter:    o.Meter,
		sw:       o.Switch,
		hub:      o.Hub,
		store:    o.Store,
		override: o.Override,
		mode:     mapping.ModeInterpolated,
	}
	if o.DefaultMode.Valid() {
		c.mode = o.DefaultMode
	}

	var st state.LineState
	if c.store != nil {
		st, _ = c.store.Get(c.name)
	}
	if md := mapping.Mode(st.Mode); md.Valid() {
		c.mode = md
	}
	c.params = st.Params.Clone()
	if st.Curve != nil {
		c.curve = st.Curve.Clone()
	}
	c.resolution = st.SweepResolution()
	c.settle = st.SettleDelay()
	c.spacing = st.SweepSpacing()
	c.rebuildLocked()

	read := func() (float64, error) { return 0, ErrNoMeter }
	if c.meter != nil {
		read = c.meter.Read
	}
	c.driver = sweep.NewDriver(c.source.Set, read, c.onSweepPoint, c.onSweepDone)

	logrus.WithFields(logrus.Fields{
		"line":       c.name,
		"mode":       c.mode,
		"calibrated": c.m != nil,
	}).Info("line controller ready")

	return c
}

func (c *Controller) Name() string  { return c.name }
func (c *Controller) Color() string { return c.color }

// HasMeter reports whether the line can measure its own power.
func (c *Controller) HasMeter() bool { return c.meter != nil }

// HasSwitch reports whether the line has a switch.
func (c *Controller) HasSwitch() bool { return c.sw != nil }

// Calibrated reports whether the line currently has a usable mapping.
func (c *Controller) Calibrated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.m != nil
}

// MappingMode returns the active mapping backend.
func (c *Controller) MappingMode() mapping.Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// MappingParams returns a copy of the last fitted model parameters.
func (c *Controller) MappingParams() mapping.Params {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.params.Clone()
}

// Control returns the current control value straight from the hardware.
func (c *Controller) Control() (float64, error) {
	v, err := c.source.Get()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to read control of line %s", c.name)
	}
	return v, nil
}

// ControlBounds returns the effective control range: hardware limits
// narrowed by the configured override.
func (c *Controller) ControlBounds() (mapping.Bounds, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.effectiveBoundsLocked()
}

// Power returns the emitted power. A switch reporting off means exactly 0,
// whatever the control value; a line without a switch has no such overlay.
func (c *Controller) Power() (float64, error) {
	if c.sw != nil {
		on, err := c.sw.State()
		if err != nil {
			return 0, pkgerrors.Wrapf(err, "failed to read switch of line %s", c.name)
		}
		if !on {
			return 0, nil
		}
	}
	return c.PowerSetpoint()
}

// PowerSetpoint returns the power the current control value maps to,
// ignoring the switch.
func (c *Controller) PowerSetpoint() (float64, error) {
	c.mu.Lock()
	m := c.m
	c.mu.Unlock()
	if m == nil {
		return 0, mapping.ErrUncalibrated
	}
	ctl, err := c.Control()
	if err != nil {
		return 0, err
	}
	return m.PowerOf(ctl), nil
}

// SetPower moves the line to the requested power. The request is rejected
// while a calibration sweep owns the control source, when the line is
// uncalibrated, and when the power falls outside PowerBounds. Rejections
// leave the hardware untouched. The switch is never changed here; asking
// for power with the switch off sets the control and keeps emitting nothing.
func (c *Controller) SetPower(power float64) error {
	if c.driver.Active() {
		return sweep.ErrActive
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.m == nil {
		return mapping.ErrUncalibrated
	}
	b, err := c.effectiveBoundsLocked()
	if err != nil {
		return err
	}
	pb := mapping.PowerBounds(c.m, b)
	if power < pb.Low || power > pb.High {
		return pkgerrors.Wrapf(ErrOutOfBounds, "%g W not in [%g, %g] W", power, pb.Low, pb.High)
	}
	ctl, err := c.m.ControlOf(power)
	if err != nil {
		return err
	}
	// The power check above already gates the request; nudge the control
	// back in range if inversion landed a rounding error outside.
	if ctl < b.Low {
		ctl = b.Low
	}
	if ctl > b.High {
		ctl = b.High
	}
	if err := c.source.Set(ctl); err != nil {
		return pkgerrors.Wrapf(err, "failed to set control of line %s", c.name)
	}

	logrus.WithFields(logrus.Fields{
		"line":    c.name,
		"power":   power,
		"control": ctl,
	}).Debug("power set")
	c.hub.Publish(c.name, events.PowerChanged, events.PowerChangedEvent{
		Power:   power,
		Control: ctl,
		Ts:      time.Now().Unix(),
	})
	return nil
}

// PowerBounds returns the reachable power range over the effective control
// bounds. An uncalibrated line reports (0, 0).
func (c *Controller) PowerBounds() (mapping.Bounds, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.m == nil {
		return mapping.Bounds{}, nil
	}
	b, err := c.effectiveBoundsLocked()
	if err != nil {
		return mapping.Bounds{}, err
	}
	return mapping.PowerBounds(c.m, b), nil
}

// SwitchState reports whether the line's switch lets light through.
func (c *Controller) SwitchState() (bool, error) {
	if c.sw == nil {
		return false, ErrNoSwitch
	}
	on, err := c.sw.State()
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to read switch of line %s", c.name)
	}
	return on, nil
}

// SetSwitch opens or closes the line's switch.
func (c *Controller) SetSwitch(on bool) error {
	if c.sw == nil {
		return ErrNoSwitch
	}
	if err := c.sw.SetState(on); err != nil {
		return pkgerrors.Wrapf(err, "failed to set switch of line %s", c.name)
	}
	logrus.WithFields(logrus.Fields{"line": c.name, "on": on}).Debug("switch set")
	c.hub.Publish(c.name, events.SwitchChanged, events.SwitchChangedEvent{
		On: on,
		Ts: time.Now().Unix(),
	})
	return nil
}

// StartCalibration sweeps the effective control range and records the
// measured curve. Zero-valued arguments fall back to the line's stored
// sweep settings. One sweep at a time per line.
func (c *Controller) StartCalibration(resolution int, spacing sweep.Spacing, settle time.Duration) error {
	if c.meter == nil {
		return ErrNoMeter
	}

	c.mu.Lock()
	if c.driver.Active() {
		c.mu.Unlock()
		return sweep.ErrActive
	}

	if resolution > 1 {
		c.resolution = resolution
	}
	if spacing.Valid() {
		c.spacing = spacing
	}
	if settle > 0 {
		c.settle = settle
	}

	b, err := c.effectiveBoundsLocked()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	points, err := sweep.Points(b, c.resolution, c.spacing)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.persistLocked()

	res, sp, st := c.resolution, c.spacing, c.settle
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"line":       c.name,
		"resolution": res,
		"spacing":    sp,
		"settle":     st,
		"bounds":     b,
	}).Info("calibration sweep starting")

	// The driver may fail the very first step synchronously and call the
	// finished callback inline, which takes c.mu again. Start it unlocked.
	return c.driver.Start(points, b, st)
}

// AbortCalibration stops the active sweep. The partial curve is kept.
func (c *Controller) AbortCalibration() error {
	return c.driver.Abort()
}

// CalibrationPhase returns the sweep state machine's phase.
func (c *Controller) CalibrationPhase() sweep.Phase {
	return c.driver.Phase()
}

// CalibrationProgress returns measured and total point counts of the
// current or last sweep.
func (c *Controller) CalibrationProgress() (measured, total int) {
	return c.driver.Progress()
}

// SweepActive reports whether a calibration sweep owns the line.
func (c *Controller) SweepActive() bool {
	return c.driver.Active()
}

// Curve returns the live curve while a sweep runs, otherwise the last
// recorded one. Nil when the line never calibrated.
func (c *Controller) Curve() *mapping.Curve {
	if c.driver.Active() {
		return c.driver.Curve()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curve.Clone()
}

// MeterReading takes one direct power meter reading.
func (c *Controller) MeterReading() (float64, error) {
	if c.meter == nil {
		return 0, ErrNoMeter
	}
	v, err := c.meter.Read()
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to read power meter of line %s", c.name)
	}
	return v, nil
}

// Fit rebuilds the active mapping from the last recorded curve. In
// parametric mode that is an estimator-seeded model fit with an
// invertibility check; in interpolated mode the interpolation tables are
// rebuilt. A partial curve from an aborted sweep fails the fit.
func (c *Controller) Fit() error {
	if c.driver.Active() {
		return sweep.ErrActive
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.curve == nil {
		return mapping.ErrUncalibrated
	}
	b, err := c.effectiveBoundsLocked()
	if err != nil {
		return err
	}

	switch c.mode {
	case mapping.ModeParametric:
		params, err := mapping.Fit(c.curve, nil, b)
		if err != nil {
			return err
		}
		m, err := mapping.NewSigmoid(params)
		if err != nil {
			return err
		}
		c.params = params
		c.m = m
	default:
		m, err := mapping.NewInterpolated(c.curve)
		if err != nil {
			return err
		}
		c.m = m
	}

	c.persistLocked()
	c.publishRangeLocked()
	logrus.WithFields(logrus.Fields{
		"line": c.name,
		"mode": c.mode,
	}).Info("mapping fitted")
	return nil
}

// SetMappingMode swaps the mapping backend and rebuilds the active map from
// whatever data the new backend has. A backend without usable data leaves
// the line uncalibrated until the next fit or sweep.
func (c *Controller) SetMappingMode(mode mapping.Mode) error {
	if !mode.Valid() {
		return pkgerrors.Errorf("unknown mapping mode %q", mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if mode == c.mode {
		return nil
	}
	c.mode = mode
	c.rebuildLocked()
	c.persistLocked()

	c.hub.Publish(c.name, events.MappingMode, events.MappingModeEvent{
		Mode: string(mode),
		Ts:   time.Now().Unix(),
	})
	c.publishRangeLocked()
	logrus.WithFields(logrus.Fields{
		"line":       c.name,
		"mode":       mode,
		"calibrated": c.m != nil,
	}).Info("mapping mode changed")
	return nil
}

func (c *Controller) effectiveBoundsLocked() (mapping.Bounds, error) {
	low, high := c.source.Bounds()
	return mapping.EffectiveBounds(low, high, c.override)
}

// rebuildLocked derives the active map from the stored data of the current
// mode. Unusable data clears the map instead of failing; callers that need
// the error path go through Fit.
func (c *Controller) rebuildLocked() {
	var (
		m   mapping.Map
		err error
	)
	switch c.mode {
	case mapping.ModeParametric:
		m, err = mapping.NewSigmoid(c.params)
	default:
		m, err = mapping.NewInterpolated(c.curve)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"line": c.name,
			"mode": c.mode,
		}).WithError(err).Debug("no usable mapping")
		c.m = nil
		return
	}
	c.m = m
}

func (c *Controller) persistLocked() {
	if c.store == nil {
		return
	}
	st := state.LineState{
		Mode:       string(c.mode),
		Params:     c.params.Clone(),
		Resolution: c.resolution,
		SettleMs:   int(c.settle / time.Millisecond),
		Spacing:    string(c.spacing),
	}
	if c.curve != nil {
		st.Curve = c.curve.Clone()
	}
	c.store.Put(c.name, st)
}

func (c *Controller) publishRangeLocked() {
	var pb mapping.Bounds
	if c.m != nil {
		if b, err := c.effectiveBoundsLocked(); err == nil {
			pb = mapping.PowerBounds(c.m, b)
		}
	}
	c.hub.Publish(c.name, events.PowerRange, events.PowerRangeEvent{
		Low:  pb.Low,
		High: pb.High,
		Ts:   time.Now().Unix(),
	})
}

func (c *Controller) onSweepPoint(index, total int, control, power float64) {
	logrus.WithFields(logrus.Fields{
		"line":    c.name,
		"point":   index + 1,
		"total":   total,
		"control": control,
		"power":   power,
	}).Debug("sweep point measured")
	c.hub.Publish(c.name, events.CalibrationProgress, events.CalibrationProgressEvent{
		Index:   index + 1,
		Total:   total,
		Control: control,
		Power:   power,
		Ts:      time.Now().Unix(),
	})
}

func (c *Controller) onSweepDone(curve *mapping.Curve, outcome sweep.Outcome, err error) {
	c.mu.Lock()
	c.curve = curve
	if outcome == sweep.OutcomeCompleted && c.mode == mapping.ModeInterpolated {
		c.rebuildLocked()
	}
	c.persistLocked()
	if outcome == sweep.OutcomeCompleted {
		c.publishRangeLocked()
	}
	measured := curve.Measured()
	total := curve.Len()
	c.mu.Unlock()

	log := logrus.WithFields(logrus.Fields{
		"line":     c.name,
		"outcome":  outcome,
		"measured": measured,
		"total":    total,
	})
	msg := ""
	switch outcome {
	case sweep.OutcomeFailed:
		msg = err.Error()
		log.WithError(err).Error("calibration sweep failed")
	default:
		log.Info("calibration sweep finished")
	}
	c.hub.Publish(c.name, events.CalibrationFinished, events.CalibrationFinishedEvent{
		Outcome:  string(outcome),
		Message:  msg,
		Measured: measured,
		Total:    total,
		Ts:       time.Now().Unix(),
	})
}
