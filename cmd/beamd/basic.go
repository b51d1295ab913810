package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/beamd-dev/beamd/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
			if _, daemonVersion, err := getVersion(); err == nil {
				cmd.Printf("daemon: %s\n", daemonVersion)
			}
		},
	}
}

func NewLinesCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "lines",
		Short:   "List configured laser lines",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lines, err := apiClient.GetLines()
			if err != nil {
				return fmt.Errorf("failed to list lines: %v", err)
			}
			if len(lines) == 0 {
				cmd.Println("no lines configured")
				return nil
			}
			for _, l := range lines {
				state := "uncalibrated"
				if l.Calibrated {
					state = fmt.Sprintf("%g W", l.Power)
				}
				if l.SweepActive {
					state = "calibrating"
				}
				cmd.Printf("%-12s %-13s %s\n", l.Name, l.Mode, state)
			}
			return nil
		},
	}
}

func NewPowerCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "power <line> [watts]",
		Short:   "Get or set the output power of a line",
		GroupID: gBasic,
		Long: `Get or set the optical output power of a laser line.

With one argument it prints the output power in watts. With a second
argument it moves the line's control value so the output lands on the
requested power. The request must fall inside the line's calibrated power
bounds; use 'beamd bounds' to see them.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := args[0]
			if len(args) == 1 {
				p, err := apiClient.GetPower(line)
				if err != nil {
					return fmt.Errorf("failed to get power: %v", err)
				}
				cmd.Printf("%g W\n", p)
				return nil
			}

			watts, err := parseFloatArg(args[1:], "power")
			if err != nil {
				return err
			}

			ret, err := apiClient.SetPower(line, watts)
			if err != nil {
				return fmt.Errorf("failed to set power: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			logrus.Infof("successfully set power of %s to %g W", line, watts)

			return nil
		},
	}
}

func NewSwitchCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "switch <line> [on|off]",
		Short:   "Get or set the output switch of a line",
		GroupID: gBasic,
		Long: `Get or set a line's output switch (shutter or modulator gate).

While the switch is off the line emits nothing, whatever its control value,
and reported power is exactly 0 W. The setpoint survives, so switching back
on restores the previous output.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			line := args[0]
			if len(args) == 1 {
				on, err := apiClient.GetSwitch(line)
				if err != nil {
					return fmt.Errorf("failed to get switch state: %v", err)
				}
				if on {
					cmd.Println("on")
				} else {
					cmd.Println("off")
				}
				return nil
			}

			var on bool
			switch args[1] {
			case "on":
				on = true
			case "off":
				on = false
			default:
				return fmt.Errorf("expected 'on' or 'off', got %q", args[1])
			}

			ret, err := apiClient.SetSwitch(line, on)
			if err != nil {
				return fmt.Errorf("failed to set switch: %v", err)
			}
			if ret != "" {
				logrus.Infof("daemon responded: %s", ret)
			}

			return nil
		},
	}
}
