package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/beamd-dev/beamd/pkg/client"
	"github.com/beamd-dev/beamd/pkg/version"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/beamd.sock"
	configPath     = "/etc/beamd.json"
	statePath      = "/var/lib/beamd/state.json"
)

var (
	gBasic        = "Basic:"
	gCalibration  = "Calibration:"
	gAdvanced     = "Advanced:"
	gInstallation = "Installation:"
	commandGroups = []string{
		gBasic,
		gCalibration,
		gAdvanced,
	}
)

// apiClient is built in PersistentPreRunE, after flag parsing, so that
// --daemon-socket actually takes effect.
var apiClient *client.Client

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrDaemonNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: beamd daemon is not running")
		fmt.Fprintln(os.Stderr, "Is the daemon running? Have you installed it?")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or reinstall the daemon with the '--allow-non-root-access' flag to grant permissions to your user")
	}
}

// getVersion returns the client version and, when the daemon is reachable,
// its version too.
func getVersion() (clientVersion, daemonVersion string, err error) {
	daemonVersion, err = apiClient.GetVersion()
	return version.Version, daemonVersion, err
}

func main() {
	// beamd spends its life waiting on serial lines; it does not need
	// many CPUs.
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(2)
	}

	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "beamd",
		Short: "beamd drives the laser lines of an optics bench",
		Long: `beamd drives the laser lines of an optics bench: it maps raw control
values (voltages, scanner amplitudes, wave-plate angles) to optical output
power in watts, runs calibration sweeps against a power meter, and serves a
local API so tooling can set power instead of guessing control values.

Website: https://github.com/beamd-dev/beamd
Report issues: https://github.com/beamd-dev/beamd/issues`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			err := setupLogger()
			if err != nil {
				return err
			}

			apiClient = client.NewClient(unixSocketPath)

			if clientVersion, daemonVersion, err := getVersion(); err == nil {
				if daemonVersion != clientVersion {
					logrus.WithFields(logrus.Fields{
						"clientVersion": clientVersion,
						"daemonVersion": daemonVersion,
					}).Warn("Version mismatch between client and daemon. beamd may not work as expected. Upgrade both to the same version.")
				}
			}

			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&statePath, "state", statePath, "calibration state file path")
	globalFlags.StringVar(&unixSocketPath, "daemon-socket", unixSocketPath, "beamd daemon unix socket path")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewDaemonCommand(),
		NewVersionCommand(),
		NewLinesCommand(),
		NewPowerCommand(),
		NewSwitchCommand(),
		NewStatusCommand(),
		NewCalibrationCommand(),
		NewFitCommand(),
		NewMappingCommand(),
		NewBoundsCommand(),
		NewReadingsCommand(),
		NewScheduleCommand(),
		NewInstallCommand(),
		NewUninstallCommand(),
	)

	return cmd
}
