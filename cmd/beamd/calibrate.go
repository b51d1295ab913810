package main

import (
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"

	"github.com/beamd-dev/beamd/pkg/types"
)

func NewCalibrationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibration",
		Aliases: []string{"calibrate", "cal"},
		Short:   "Manage calibration sweeps",
		Long: `Start, watch, and abort calibration sweeps.

A sweep steps the line's control value across its bounds, waits for the
output to settle at each point, and records the measured power. The recorded
curve is what turns "power 0.04" into the right control value.`,
		GroupID: gCalibration,
	}

	var (
		resolution int
		spacing    string
		settle     time.Duration
		watch      bool
	)

	startCmd := &cobra.Command{
		Use:   "start <line>",
		Short: "Start a calibration sweep",
		Long: `Start a calibration sweep on a line.

Sweep settings given here are remembered by the daemon for later sweeps of
the same line; omitted ones keep their stored values.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := args[0]
			req := types.CalibrationRequest{
				Resolution: resolution,
				Spacing:    spacing,
				SettleMs:   int(settle / time.Millisecond),
			}
			if _, err := apiClient.StartCalibration(line, req); err != nil {
				return fmt.Errorf("failed to start calibration: %w", err)
			}
			cmd.Printf("Calibration sweep of %s started.\n", line)
			if watch {
				return watchCalibration(cmd, line)
			}
			return nil
		},
	}
	startCmd.Flags().IntVar(&resolution, "resolution", 0, "Number of sweep points (0 keeps the stored setting)")
	startCmd.Flags().StringVar(&spacing, "spacing", "", "Point spacing: linear or logarithmic (empty keeps the stored setting)")
	startCmd.Flags().DurationVar(&settle, "settle", 0, "Settle delay per point, e.g. 200ms (0 keeps the stored setting)")
	startCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Stay attached and print sweep progress")

	abortCmd := &cobra.Command{
		Use:   "abort <line>",
		Short: "Abort the active calibration sweep",
		Long:  "Abort the active sweep. Measured points are kept, but a partial curve cannot be fitted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := apiClient.AbortCalibration(args[0]); err != nil {
				return fmt.Errorf("failed to abort calibration: %w", err)
			}
			cmd.Printf("Calibration sweep of %s aborted.\n", args[0])
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status <line>",
		Short: "Show calibration sweep status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := apiClient.GetCalibration(args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch calibration status: %w", err)
			}
			printCalibrationStatus(cmd, st)
			return nil
		},
	}

	watchCmd := &cobra.Command{
		Use:   "watch <line>",
		Short: "Follow a running sweep until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchCalibration(cmd, args[0])
		},
	}

	curveCmd := &cobra.Command{
		Use:   "curve <line>",
		Short: "Print the recorded calibration curve",
		Long:  "Print the recorded control-to-power curve, one point per row. Unmeasured points show as '-'.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			curve, err := apiClient.GetCurve(args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch curve: %w", err)
			}
			cmd.Printf("%-16s %s\n", "control", "power (W)")
			for i, ctl := range curve.Controls {
				p := curve.Powers[i]
				if math.IsNaN(p) {
					cmd.Printf("%-16g -\n", ctl)
					continue
				}
				cmd.Printf("%-16g %g\n", ctl, p)
			}
			return nil
		},
	}

	cmd.AddCommand(startCmd, abortCmd, statusCmd, watchCmd, curveCmd)
	return cmd
}

func printCalibrationStatus(cmd *cobra.Command, st *types.CalibrationStatus) {
	cmd.Printf("Phase: %s\n", bold("%s", st.Phase))
	cmd.Printf("Active: %s\n", bool2Text(st.Active))
	if st.Total > 0 {
		cmd.Printf("Points: %s\n", bold("%d/%d", st.Measured, st.Total))
	}
}

// watchCalibration polls sweep progress until the line goes idle.
func watchCalibration(cmd *cobra.Command, line string) error {
	lastMeasured := -1
	for {
		st, err := apiClient.GetCalibration(line)
		if err != nil {
			return fmt.Errorf("failed to fetch calibration status: %w", err)
		}
		if st.Measured != lastMeasured && st.Total > 0 {
			lastMeasured = st.Measured
			cmd.Printf("%s: %d/%d points\n", line, st.Measured, st.Total)
		}
		if !st.Active {
			if st.Total > 0 && st.Measured == st.Total {
				cmd.Printf("Sweep of %s completed.\n", line)
			} else {
				cmd.Printf("Sweep of %s stopped at %d/%d points.\n", line, st.Measured, st.Total)
			}
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
}
