package daemon

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/beamd-dev/beamd/pkg/controller"
	"github.com/beamd-dev/beamd/pkg/events"
	"github.com/beamd-dev/beamd/pkg/sweep"
)

// recalTimeout bounds one scheduled recalibration end to end. Generous: even
// a 200-point sweep with multi-second settling finishes well inside it.
const recalTimeout = 30 * time.Minute

// recalTask builds the scheduler task that sweeps one line and refits its
// mapping. It blocks until the sweep finishes so the scheduler reports the
// real outcome, not just a successful start.
func (d *Daemon) recalTask(c *controller.Controller) TaskFunc {
	return func() error {
		// Subscribe before starting so the finished event cannot slip by,
		// even when the sweep fails on its very first step.
		sub := d.hub.SubscribeLine(c.Name())
		defer d.hub.Unsubscribe(sub)

		if err := c.StartCalibration(0, "", 0); err != nil {
			return err
		}
		logrus.Infof("scheduled recalibration of line %s started", c.Name())

		deadline := time.After(recalTimeout)
		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					return nil
				}
				if ev.Name != events.CalibrationFinished {
					continue
				}
				fin, err := events.DecodeAs[events.CalibrationFinishedEvent](ev)
				if err != nil {
					return err
				}
				if fin.Outcome != string(sweep.OutcomeCompleted) {
					return errors.Errorf("sweep ended %s: %s", fin.Outcome, fin.Message)
				}
				// The completed curve is in place; refit so parametric
				// lines pick up fresh model parameters too.
				return c.Fit()
			case <-deadline:
				_ = c.AbortCalibration()
				return errors.Errorf("recalibration of line %s timed out after %s", c.Name(), recalTimeout)
			case <-d.stopCh:
				return nil
			}
		}
	}
}

// recalPreCheck keeps a scheduled sweep from stealing the bench: it fails
// while another sweep runs, and proves the meter answers before any control
// value is touched.
func (d *Daemon) recalPreCheck(c *controller.Controller) TaskFunc {
	return func() error {
		if c.SweepActive() {
			return errors.Errorf("line %s is mid-sweep", c.Name())
		}
		if _, err := c.MeterReading(); err != nil {
			return err
		}
		return nil
	}
}

func (d *Daemon) recalUpcoming(c *controller.Controller) NotifyFunc {
	return func(data any) {
		runAt, ok := data.(time.Time)
		if !ok {
			return
		}
		logrus.Infof("recalibration of line %s in %s", c.Name(), time.Until(runAt).Round(time.Second))
		d.hub.Publish(c.Name(), events.ScheduleUpcoming, events.ScheduleUpcomingEvent{
			RunAt: runAt.Unix(),
			Ts:    time.Now().Unix(),
		})
	}
}

func (d *Daemon) recalError(c *controller.Controller) NotifyFunc {
	return func(data any) {
		err, ok := data.(error)
		if !ok {
			return
		}
		logrus.Errorf("scheduled recalibration of line %s: %v", c.Name(), err)
		d.hub.Publish(c.Name(), events.ScheduleError, events.ScheduleErrorEvent{
			Message: err.Error(),
			Ts:      time.Now().Unix(),
		})
	}
}
