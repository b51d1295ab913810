package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beamd-dev/beamd/pkg/mapping"
)

func printModelParams(cmd *cobra.Command, params map[string]float64) {
	for _, k := range []string{mapping.ParamMax, mapping.ParamSigma, mapping.ParamSlope, mapping.ParamBeta} {
		if v, ok := params[k]; ok {
			cmd.Printf("  %-5s = %.6g\n", k, v)
		}
	}
}

func NewFitCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "fit <line>",
		Short:   "Fit the parametric model to the calibration curve",
		GroupID: gCalibration,
		Long: `Fit the parametric sigmoid model to a line's calibration curve.

The fit needs a complete curve, so run a full calibration sweep first. Once
it converges, the line can be switched to parametric mapping, which smooths
over measurement noise and extrapolates better than table interpolation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := apiClient.Fit(args[0])
			if err != nil {
				return fmt.Errorf("failed to fit model: %v", err)
			}
			cmd.Printf("Model fitted. Parameters:\n")
			printModelParams(cmd, info.Params)
			return nil
		},
	}
}

func NewMappingCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "mapping <line> [interpolated|parametric]",
		Short:   "Get or set the mapping mode of a line",
		GroupID: gAdvanced,
		Long: `Get or set how a line translates between control values and power.

interpolated uses the raw calibration curve with linear interpolation.
parametric uses the fitted sigmoid model; it requires a successful 'beamd
fit' first. Both directions of the translation switch together.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := args[0]
			if len(args) == 1 {
				info, err := apiClient.GetMapping(line)
				if err != nil {
					return fmt.Errorf("failed to get mapping: %v", err)
				}
				cmd.Println(info.Mode)
				if !info.Calibrated {
					cmd.Println("(not calibrated yet)")
				}
				printModelParams(cmd, info.Params)
				return nil
			}

			mode := args[1]
			if mode != "interpolated" && mode != "parametric" {
				return fmt.Errorf("expected 'interpolated' or 'parametric', got %q", mode)
			}
			if _, err := apiClient.SetMapping(line, mode); err != nil {
				return fmt.Errorf("failed to set mapping: %v", err)
			}
			cmd.Printf("Mapping mode of %s set to %s.\n", line, mode)
			return nil
		},
	}
}

func NewBoundsCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "bounds <line>",
		Short:   "Show the control and power bounds of a line",
		GroupID: gBasic,
		Long: `Show the effective bounds of a line.

Control bounds come from the hardware limits, tightened by any configured
overrides. Power bounds are those control bounds pushed through the line's
calibration, so they only exist once the line is calibrated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := args[0]

			cb, err := apiClient.GetControlBounds(line)
			if err != nil {
				return fmt.Errorf("failed to get control bounds: %v", err)
			}
			cmd.Printf("control: %s\n", cb)

			pb, err := apiClient.GetPowerBounds(line)
			if err != nil {
				cmd.Printf("power:   unknown (%v)\n", err)
				return nil
			}
			cmd.Printf("power:   [%g W, %g W]\n", pb.Low, pb.High)
			return nil
		},
	}
}

func NewReadingsCommand() *cobra.Command {
	var last time.Duration

	cmd := &cobra.Command{
		Use:     "readings <line>",
		Short:   "Show recent power meter readings of a line",
		GroupID: gAdvanced,
		Long: `Show recent readings from a line's power meter.

The daemon polls each metered line in the background and keeps a short
history, so this works even while no calibration sweep is running.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			readings, err := apiClient.GetReadings(args[0], last)
			if err != nil {
				return fmt.Errorf("failed to get readings: %v", err)
			}
			if len(readings) == 0 {
				cmd.Println("no readings recorded")
				return nil
			}
			for _, r := range readings {
				cmd.Printf("%s  %g W\n", r.At.Local().Format("15:04:05.000"), r.Power)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&last, "last", 5*time.Minute, "How far back to report, e.g. 30s, 5m")

	return cmd
}
