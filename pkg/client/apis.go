package client

import (
	"encoding/json"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/beamd-dev/beamd/pkg/mapping"
	"github.com/beamd-dev/beamd/pkg/types"
)

// GetLines lists every configured laser line with live status.
func (c *Client) GetLines() ([]types.LineInfo, error) {
	ret, err := c.Get("/lines")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to list lines")
	}
	var lines []types.LineInfo
	if err := json.Unmarshal([]byte(ret), &lines); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal lines")
	}
	return lines, nil
}

// GetLine returns the status of one line. The daemon only answers the whole
// set, so this filters client-side.
func (c *Client) GetLine(name string) (*types.LineInfo, error) {
	lines, err := c.GetLines()
	if err != nil {
		return nil, err
	}
	for i := range lines {
		if lines[i].Name == name {
			return &lines[i], nil
		}
	}
	return nil, pkgerrors.Wrapf(ErrNotFound, "no such line %q", name)
}

func (c *Client) GetPower(line string) (float64, error) {
	ret, err := c.Get("/lines/" + line + "/power")
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get power of %s", line)
	}
	return parseFloatResponse(ret)
}

func (c *Client) SetPower(line string, watts float64) (string, error) {
	return c.Put("/lines/"+line+"/power", strconv.FormatFloat(watts, 'g', -1, 64))
}

func (c *Client) GetControl(line string) (float64, error) {
	ret, err := c.Get("/lines/" + line + "/control")
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to get control value of %s", line)
	}
	return parseFloatResponse(ret)
}

func (c *Client) GetPowerBounds(line string) (*mapping.Bounds, error) {
	ret, err := c.Get("/lines/" + line + "/power-bounds")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get power bounds of %s", line)
	}
	var b mapping.Bounds
	if err := json.Unmarshal([]byte(ret), &b); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal power bounds")
	}
	return &b, nil
}

func (c *Client) GetControlBounds(line string) (*mapping.Bounds, error) {
	ret, err := c.Get("/lines/" + line + "/control-bounds")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get control bounds of %s", line)
	}
	var b mapping.Bounds
	if err := json.Unmarshal([]byte(ret), &b); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal control bounds")
	}
	return &b, nil
}

func (c *Client) GetSwitch(line string) (bool, error) {
	ret, err := c.Get("/lines/" + line + "/switch")
	if err != nil {
		return false, pkgerrors.Wrapf(err, "failed to get switch state of %s", line)
	}
	return parseBoolResponse(ret)
}

func (c *Client) SetSwitch(line string, on bool) (string, error) {
	return c.Put("/lines/"+line+"/switch", strconv.FormatBool(on))
}

// StartCalibration kicks off a sweep. Zero fields in req keep the line's
// stored sweep settings.
func (c *Client) StartCalibration(line string, req types.CalibrationRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return c.Post("/lines/"+line+"/calibration", string(payload))
}

func (c *Client) AbortCalibration(line string) (string, error) {
	return c.Delete("/lines/" + line + "/calibration")
}

func (c *Client) GetCalibration(line string) (*types.CalibrationStatus, error) {
	ret, err := c.Get("/lines/" + line + "/calibration")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get calibration status of %s", line)
	}
	var st types.CalibrationStatus
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal calibration status")
	}
	return &st, nil
}

func (c *Client) GetCurve(line string) (*mapping.Curve, error) {
	ret, err := c.Get("/lines/" + line + "/curve")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get calibration curve of %s", line)
	}
	var curve mapping.Curve
	if err := json.Unmarshal([]byte(ret), &curve); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal calibration curve")
	}
	return &curve, nil
}

// GetReadings pulls the monitored power history of a line. A zero last keeps
// the daemon's default window.
func (c *Client) GetReadings(line string, last time.Duration) ([]types.Reading, error) {
	path := "/lines/" + line + "/readings"
	if last > 0 {
		path += "?last=" + last.String()
	}
	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get readings of %s", line)
	}
	var readings []types.Reading
	if err := json.Unmarshal([]byte(ret), &readings); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal readings")
	}
	return readings, nil
}

// Fit refits the line's mapping from its recorded curve and returns the
// resulting mapping info.
func (c *Client) Fit(line string) (*types.MappingInfo, error) {
	ret, err := c.Post("/lines/"+line+"/fit", "")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to fit mapping of %s", line)
	}
	var info types.MappingInfo
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal mapping info")
	}
	return &info, nil
}

func (c *Client) GetMapping(line string) (*types.MappingInfo, error) {
	ret, err := c.Get("/lines/" + line + "/mapping")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get mapping of %s", line)
	}
	var info types.MappingInfo
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal mapping info")
	}
	return &info, nil
}

func (c *Client) SetMapping(line, mode string) (string, error) {
	payload, err := json.Marshal(mode)
	if err != nil {
		return "", err
	}
	return c.Put("/lines/"+line+"/mapping", string(payload))
}

func (c *Client) GetSchedule(line string) (*types.ScheduleStatus, error) {
	ret, err := c.Get("/lines/" + line + "/schedule")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get schedule of %s", line)
	}
	var st types.ScheduleStatus
	if err := json.Unmarshal([]byte(ret), &st); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to unmarshal schedule")
	}
	return &st, nil
}

// SetSchedule installs a recalibration cron expression. An empty expression
// disables the schedule.
func (c *Client) SetSchedule(line, cronExpr string) (string, error) {
	payload, err := json.Marshal(types.ScheduleRequest{Cron: cronExpr})
	if err != nil {
		return "", err
	}
	return c.Put("/lines/"+line+"/schedule", string(payload))
}

func (c *Client) PostponeSchedule(line string, d time.Duration) (string, error) {
	payload, err := json.Marshal(types.PostponeRequest{Duration: d.String()})
	if err != nil {
		return "", err
	}
	return c.Post("/lines/"+line+"/schedule/postpone", string(payload))
}

func (c *Client) SkipSchedule(line string) (string, error) {
	return c.Post("/lines/"+line+"/schedule/skip", "")
}

func (c *Client) GetVersion() (string, error) {
	ret, err := c.Get("/version")
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to get daemon version")
	}
	var v string
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return "", pkgerrors.Wrap(err, "failed to unmarshal version")
	}
	return v, nil
}

func parseBoolResponse(resp string) (bool, error) {
	switch resp {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, pkgerrors.Errorf("unexpected response: %s", resp)
	}
}

func parseFloatResponse(resp string) (float64, error) {
	v, err := strconv.ParseFloat(resp, 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "unexpected response %q", resp)
	}
	return v, nil
}
