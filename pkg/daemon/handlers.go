package daemon

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/beamd-dev/beamd/pkg/controller"
	"github.com/beamd-dev/beamd/pkg/mapping"
	"github.com/beamd-dev/beamd/pkg/sweep"
	"github.com/beamd-dev/beamd/pkg/types"
	"github.com/beamd-dev/beamd/pkg/version"
)

// lookupLine resolves the :name route parameter, answering 404 itself when
// the line does not exist.
func (d *Daemon) lookupLine(c *gin.Context) (*controller.Controller, bool) {
	name := c.Param("name")
	ctl, ok := d.line(name)
	if !ok {
		err := pkgerrors.Errorf("no such line %q", name)
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return nil, false
	}
	return ctl, true
}

// lineInfo assembles the status snapshot of one line. Individual adapter
// read failures leave zero values here; the dedicated endpoints surface
// them.
func lineInfo(ctl *controller.Controller) types.LineInfo {
	info := types.LineInfo{
		Name:        ctl.Name(),
		Color:       ctl.Color(),
		Mode:        string(ctl.MappingMode()),
		Calibrated:  ctl.Calibrated(),
		SweepActive: ctl.SweepActive(),
	}
	if v, err := ctl.Power(); err == nil {
		info.Power = v
	}
	if b, err := ctl.PowerBounds(); err == nil {
		info.PowerLow, info.PowerHigh = b.Low, b.High
	}
	if v, err := ctl.Control(); err == nil {
		info.Control = v
	}
	if ctl.HasSwitch() {
		if on, err := ctl.SwitchState(); err == nil {
			info.SwitchOn = &on
		}
	}
	return info
}

func (d *Daemon) getLines(c *gin.Context) {
	infos := make([]types.LineInfo, 0, len(d.order))
	for _, name := range d.order {
		infos = append(infos, lineInfo(d.controllers[name]))
	}
	c.IndentedJSON(http.StatusOK, infos)
}

func (d *Daemon) getPower(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}
	v, err := ctl.Power()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, v)
}

func (d *Daemon) setPower(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	var p float64
	if err := c.BindJSON(&p); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := ctl.SetPower(p); err != nil {
		abortWithError(c, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set power of %s to %g W", ctl.Name(), p))
}

func (d *Daemon) getPowerBounds(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}
	b, err := ctl.PowerBounds()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, b)
}

func (d *Daemon) getControlBounds(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}
	b, err := ctl.ControlBounds()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, b)
}

func (d *Daemon) getControl(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}
	v, err := ctl.Control()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, v)
}

func (d *Daemon) getSwitch(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}
	on, err := ctl.SwitchState()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.IndentedJSON(http.StatusOK, on)
}

func (d *Daemon) setSwitch(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	var on bool
	if err := c.BindJSON(&on); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := ctl.SetSwitch(on); err != nil {
		abortWithError(c, err)
		return
	}

	word := "off"
	if on {
		word = "on"
	}
	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("switched %s %s", ctl.Name(), word))
}

func (d *Daemon) startCalibration(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	var req types.CalibrationRequest
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
	}

	settle := time.Duration(req.SettleMs) * time.Millisecond
	if err := ctl.StartCalibration(req.Resolution, sweep.Spacing(req.Spacing), settle); err != nil {
		abortWithError(c, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("calibration sweep of %s started", ctl.Name()))
}

func (d *Daemon) abortCalibration(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	if err := ctl.AbortCalibration(); err != nil {
		abortWithError(c, err)
		return
	}

	c.IndentedJSON(http.StatusOK, fmt.Sprintf("calibration sweep of %s aborted", ctl.Name()))
}

func (d *Daemon) getCalibration(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	measured, total := ctl.CalibrationProgress()
	c.IndentedJSON(http.StatusOK, types.CalibrationStatus{
		Phase:    string(ctl.CalibrationPhase()),
		Active:   ctl.SweepActive(),
		Measured: measured,
		Total:    total,
	})
}

func (d *Daemon) getCurve(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	curve := ctl.Curve()
	if curve == nil {
		err := pkgerrors.Errorf("line %s has never been calibrated", ctl.Name())
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return
	}
	c.IndentedJSON(http.StatusOK, curve)
}

// getReadings answers the monitored power history of a line. A last query
// parameter narrows the window; default is the past 5 minutes.
func (d *Daemon) getReadings(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	m, ok := d.monitors[ctl.Name()]
	if !ok {
		abortWithError(c, controller.ErrNoMeter)
		return
	}

	window := 5 * time.Minute
	if q := c.Query("last"); q != "" {
		dur, err := time.ParseDuration(q)
		if err != nil {
			c.IndentedJSON(http.StatusBadRequest, err.Error())
			_ = c.AbortWithError(http.StatusBadRequest, err)
			return
		}
		window = dur
	}

	readings := m.Readings(time.Now().Add(-window))
	c.IndentedJSON(http.StatusOK, readings)
}

func (d *Daemon) fitLine(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	if err := ctl.Fit(); err != nil {
		abortWithError(c, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, mappingInfo(ctl))
}

func mappingInfo(ctl *controller.Controller) types.MappingInfo {
	info := types.MappingInfo{
		Mode:       string(ctl.MappingMode()),
		Calibrated: ctl.Calibrated(),
	}
	if p := ctl.MappingParams(); len(p) > 0 {
		info.Params = p
	}
	return info
}

func (d *Daemon) getMapping(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}
	c.IndentedJSON(http.StatusOK, mappingInfo(ctl))
}

func (d *Daemon) setMapping(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	var mode string
	if err := c.BindJSON(&mode); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	if !mapping.Mode(mode).Valid() {
		err := pkgerrors.Errorf("unknown mapping mode %q", mode)
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := ctl.SetMappingMode(mapping.Mode(mode)); err != nil {
		abortWithError(c, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("mapping mode of %s set to %s", ctl.Name(), mode))
}

func (d *Daemon) getSchedule(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	status := types.ScheduleStatus{}
	if l, ok := d.conf.Line(ctl.Name()); ok {
		status.Cron = l.Recalibrate
	}
	if s, ok := d.schedulers[ctl.Name()]; ok {
		if nextRun, _ := s.Status(); !nextRun.IsZero() {
			status.NextRun = nextRun.Format(time.RFC3339)
		}
	}
	c.IndentedJSON(http.StatusOK, status)
}

func (d *Daemon) setSchedule(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	var req types.ScheduleRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	s := d.schedulers[ctl.Name()]
	if req.Cron == "" {
		s.Unschedule()
	} else if err := s.Schedule(req.Cron); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.conf.SetRecalibrate(ctl.Name(), req.Cron); err != nil {
		abortWithError(c, err)
		return
	}
	if err := d.conf.Save(); err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		c.IndentedJSON(http.StatusInternalServerError, err.Error())
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	msg := fmt.Sprintf("recalibration of %s scheduled at %q", ctl.Name(), req.Cron)
	if req.Cron == "" {
		msg = fmt.Sprintf("recalibration of %s disabled", ctl.Name())
	}
	logrus.Info(msg)
	c.IndentedJSON(http.StatusCreated, msg)
}

func (d *Daemon) postponeSchedule(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	var req types.PostponeRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	dur, err := time.ParseDuration(req.Duration)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := d.schedulers[ctl.Name()].Postpone(dur); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("postponed next recalibration of %s by %s", ctl.Name(), dur))
}

func (d *Daemon) skipSchedule(c *gin.Context) {
	ctl, ok := d.lookupLine(c)
	if !ok {
		return
	}

	if err := d.schedulers[ctl.Name()].Skip(); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("skipped next recalibration of %s", ctl.Name()))
}

// streamEvents bridges the event hub onto an SSE response. A line query
// parameter narrows the stream to one line.
func (d *Daemon) streamEvents(c *gin.Context) {
	sub := d.hub.SubscribeLine(c.Query("line"))
	defer d.hub.Unsubscribe(sub)

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent(ev.Name, sseBody{Line: ev.Line, Data: ev.Data})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// sseBody is the JSON wrapper around event payloads on the SSE stream.
type sseBody struct {
	Line string          `json:"line"`
	Data json.RawMessage `json:"data"`
}

func (d *Daemon) getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
