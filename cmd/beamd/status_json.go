package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

type statusJSON struct {
	Lines []lineStatusJSON `json:"lines"`
}

type lineStatusJSON struct {
	Name       string `json:"name"`
	Color      string `json:"color,omitempty"`
	Mode       string `json:"mode"`
	Calibrated bool   `json:"calibrated"`
	// Power is omitted while the line is uncalibrated; there is no
	// trustworthy wattage to report then.
	Power       *powerJSON         `json:"power,omitempty"`
	Control     float64            `json:"control"`
	SwitchOn    *bool              `json:"switchOn,omitempty"`
	Calibration *calibrationJSON   `json:"calibration,omitempty"`
	Model       map[string]float64 `json:"model,omitempty"`
	Schedule    *scheduleJSON      `json:"schedule,omitempty"`
}

type powerJSON struct {
	Watts float64 `json:"watts"`
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
}

type calibrationJSON struct {
	Phase    string `json:"phase"`
	Measured int    `json:"measured"`
	Total    int    `json:"total"`
}

type scheduleJSON struct {
	Enabled bool   `json:"enabled"`
	Cron    string `json:"cron,omitempty"`
	NextRun string `json:"nextRun,omitempty"`
}

func printStatusJSON(cmd *cobra.Command, data []lineStatus) error {
	out := statusJSON{Lines: make([]lineStatusJSON, 0, len(data))}
	for _, st := range data {
		info := st.info
		lj := lineStatusJSON{
			Name:       info.Name,
			Color:      info.Color,
			Mode:       info.Mode,
			Calibrated: info.Calibrated,
			Control:    info.Control,
			SwitchOn:   info.SwitchOn,
		}
		if info.Calibrated {
			lj.Power = &powerJSON{Watts: info.Power, Low: info.PowerLow, High: info.PowerHigh}
		}
		if st.cal != nil && st.cal.Active {
			lj.Calibration = &calibrationJSON{Phase: st.cal.Phase, Measured: st.cal.Measured, Total: st.cal.Total}
		}
		if st.mapping != nil && len(st.mapping.Params) > 0 {
			lj.Model = st.mapping.Params
		}
		if st.schedule != nil {
			lj.Schedule = &scheduleJSON{
				Enabled: st.schedule.Cron != "",
				Cron:    st.schedule.Cron,
				NextRun: st.schedule.NextRun,
			}
		}
		out.Lines = append(out.Lines, lj)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
