package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/beamd-dev/beamd/pkg/mapping"
	"github.com/beamd-dev/beamd/pkg/types"
)

// lineStatus bundles everything the status command shows about one line.
type lineStatus struct {
	info     types.LineInfo
	mapping  *types.MappingInfo
	schedule *types.ScheduleStatus
	cal      *types.CalibrationStatus
}

// fetchLineStatus gathers per-line data for the status command. Mapping and
// schedule lookups are best effort; the core line info is required.
func fetchLineStatus(info types.LineInfo) lineStatus {
	st := lineStatus{info: info}
	if m, err := apiClient.GetMapping(info.Name); err == nil {
		st.mapping = m
	}
	if s, err := apiClient.GetSchedule(info.Name); err == nil {
		st.schedule = s
	}
	if info.SweepActive {
		if c, err := apiClient.GetCalibration(info.Name); err == nil {
			st.cal = c
		}
	}
	return st
}

func fetchStatusData(line string) ([]lineStatus, error) {
	if line != "" {
		info, err := apiClient.GetLine(line)
		if err != nil {
			return nil, err
		}
		return []lineStatus{fetchLineStatus(*info)}, nil
	}

	lines, err := apiClient.GetLines()
	if err != nil {
		return nil, fmt.Errorf("failed to list lines: %w", err)
	}
	out := make([]lineStatus, 0, len(lines))
	for _, info := range lines {
		out = append(out, fetchLineStatus(info))
	}
	return out, nil
}

func NewStatusCommand() *cobra.Command {
	jsonOutput := false

	cmd := &cobra.Command{
		Use:     "status [line]",
		GroupID: gBasic,
		Short:   "Get the current status of every laser line",
		Long:    `Get per-line power, switch, calibration, and schedule status. With a line name, show just that line.`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := ""
			if len(args) > 0 {
				line = args[0]
			}
			data, err := fetchStatusData(line)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printStatusJSON(cmd, data)
			}

			if len(data) == 0 {
				cmd.Println("no lines configured")
				return nil
			}

			for i, st := range data {
				if i > 0 {
					cmd.Println()
				}
				printLineStatus(cmd, st)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&jsonOutput, "json", "j", false, "Output status as JSON")

	return cmd
}

func printLineStatus(cmd *cobra.Command, st lineStatus) {
	info := st.info
	title := info.Name
	if info.Color != "" {
		title += " (" + info.Color + ")"
	}
	cmd.Println(bold("%s", title))

	cmd.Printf("  Mode: %s\n", bold("%s", info.Mode))
	cmd.Printf("  Calibrated: %s\n", bool2Text(info.Calibrated))
	if info.Calibrated {
		cmd.Printf("  Power: %s\n", bold("%g W", info.Power))
		cmd.Printf("  Power bounds: %s\n", bold("%g to %g W", info.PowerLow, info.PowerHigh))
	}
	cmd.Printf("  Control: %s\n", bold("%g", info.Control))
	if info.SwitchOn != nil {
		cmd.Printf("  Switch: %s\n", bool2Text(*info.SwitchOn))
	}

	if st.cal != nil && st.cal.Active {
		cmd.Printf("  Calibration: %s\n", bold("%s, %d/%d points", st.cal.Phase, st.cal.Measured, st.cal.Total))
	}

	if st.mapping != nil && len(st.mapping.Params) > 0 {
		p := st.mapping.Params
		cmd.Printf("  Model: %s\n", bold("max=%g sigma=%g slope=%g beta=%g",
			p[mapping.ParamMax], p[mapping.ParamSigma], p[mapping.ParamSlope], p[mapping.ParamBeta]))
	}

	if st.schedule != nil && st.schedule.Cron != "" {
		sched := st.schedule.Cron
		if st.schedule.NextRun != "" {
			sched += ", next " + st.schedule.NextRun
		}
		cmd.Printf("  Recalibration: %s\n", bold("%s", sched))
	}
}

func bool2Text(b bool) string {
	if b {
		return color.New(color.Bold, color.FgGreen).Sprint("✔")
	}
	return color.New(color.Bold, color.FgRed).Sprint("✘")
}

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}
