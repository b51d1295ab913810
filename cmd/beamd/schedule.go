package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "schedule <line> [cron-expression]",
		Aliases: []string{"sch", "sche", "sched"},
		Short:   "Manage automatic recalibration schedules",
		Long: `Manage the automatic recalibration schedule of a line.

The schedule command can be used in multiple ways:
  beamd schedule <line> 'minute hour day month weekday'  Set schedule with cron expression
  beamd schedule disable <line>                          Disable the schedule
  beamd schedule postpone <line> [duration]              Postpone next run
  beamd schedule skip <line>                             Skip next run
  beamd schedule show <line>                             Show current schedule`,
		Example: `  beamd schedule red '0 8 * * 1' (At 08:00 on Monday)
  beamd schedule red '0 8 1 * *' (At 08:00 on the first day of every month)
  beamd schedule red '0 8 * * *' (At 08:00 every day)`,
		GroupID: gAdvanced,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			// With just a line name, show the current schedule.
			if len(args) == 1 {
				return runScheduleShow(cmd, args[0])
			}
			// Otherwise, treat the second argument as a cron expression to set.
			return runScheduleSet(cmd, args[0], args[1])
		},
	}

	// Add subcommands
	cmd.AddCommand(
		newScheduleDisableCommand(),
		newSchedulePostponeCommand(),
		newScheduleSkipCommand(),
		newScheduleShowCommand(),
	)

	return cmd
}

func newScheduleDisableCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "disable <line>",
		Short: "Disable the recalibration schedule",
		Long:  "Disable the automatic recalibration schedule of a line.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleDisable(cmd, args[0])
		},
	}
	return cmd
}

func newSchedulePostponeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postpone <line> [duration]",
		Short: "Postpone the next scheduled recalibration run",
		Example: `  beamd schedule postpone red      (Postpone by 1 hour)
  beamd schedule postpone red 90m  (Postpone by 90 minutes)
  beamd schedule postpone red 2h   (Postpone by 2 hours)`,
		Long: `Postpone the next scheduled recalibration run by a specified duration.
If no duration is provided, defaults to 1 hour.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := time.Hour // default
			if len(args) > 1 {
				parsed, err := time.ParseDuration(args[1])
				if err != nil {
					return fmt.Errorf("invalid duration %q: %w", args[1], err)
				}
				d = parsed
			}
			return runSchedulePostpone(cmd, args[0], d)
		},
	}
	return cmd
}

func newScheduleSkipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "skip <line>",
		Short: "Skip the next scheduled recalibration run",
		Long:  "Skip the next scheduled recalibration run of a line.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleSkip(cmd, args[0])
		},
	}
	return cmd
}

func newScheduleShowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <line>",
		Short: "Show the current recalibration schedule",
		Long:  "Show the current recalibration schedule and next run time of a line.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleShow(cmd, args[0])
		},
	}
	return cmd
}

func runScheduleSet(cmd *cobra.Command, line, cronExpr string) error {
	if cronExpr == "" {
		return fmt.Errorf("cron expression cannot be empty")
	}
	if _, err := apiClient.SetSchedule(line, cronExpr); err != nil {
		return err
	}
	return runScheduleShow(cmd, line)
}

func runScheduleDisable(cmd *cobra.Command, line string) error {
	if _, err := apiClient.SetSchedule(line, ""); err != nil {
		return err
	}
	cmd.Printf("Recalibration schedule of %s disabled.\n", line)
	return nil
}

func runSchedulePostpone(cmd *cobra.Command, line string, duration time.Duration) error {
	if _, err := apiClient.PostponeSchedule(line, duration); err != nil {
		return err
	}
	cmd.Printf("Next run of %s postponed by %s.\n", line, duration)
	return nil
}

func runScheduleSkip(cmd *cobra.Command, line string) error {
	if _, err := apiClient.SkipSchedule(line); err != nil {
		return err
	}
	cmd.Printf("Next scheduled run of %s skipped.\n", line)
	return nil
}

func runScheduleShow(cmd *cobra.Command, line string) error {
	st, err := apiClient.GetSchedule(line)
	if err != nil {
		return err
	}
	if st.Cron == "" {
		cmd.Printf("Recalibration schedule of %s is not set.\n", line)
		return nil
	}
	cmd.Printf("Recalibration schedule of %s: %s\n", line, st.Cron)
	if st.NextRun != "" {
		if t, err := time.Parse(time.RFC3339, st.NextRun); err == nil {
			cmd.Printf("Next run: %s\n", t.Local().Format(time.DateTime))
		} else {
			cmd.Printf("Next run: %s\n", st.NextRun)
		}
	}
	return nil
}
