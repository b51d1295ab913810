package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/beamd-dev/beamd/pkg/daemon"
	"github.com/beamd-dev/beamd/pkg/version"
)

var (
	// alwaysAllowNonRootAccess indicates whether to always allow non-root users to access the beamd daemon.
	alwaysAllowNonRootAccess = false
	// simulate swaps every configured device for the built-in simulated bench.
	simulate = false
)

// NewDaemonCommand .
func NewDaemonCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "daemon",
		Hidden:  true,
		Short:   "Run beamd daemon in the foreground",
		GroupID: gAdvanced,
		RunE: func(_ *cobra.Command, _ []string) error {
			logrus.WithFields(logrus.Fields{
				"version": version.Version,
				"commit":  version.GitCommit,
			}).Info("beamd daemon starting")
			return daemon.Run(configPath, statePath, unixSocketPath, simulate, alwaysAllowNonRootAccess)
		},
	}

	f := cmd.Flags()

	f.BoolVar(&alwaysAllowNonRootAccess, "always-allow-non-root-access", false,
		"Always allow non-root users to access the daemon.")
	f.BoolVar(&simulate, "simulate", false,
		"Drive a simulated bench instead of real hardware. Useful for trying beamd without lasers attached.")

	return cmd
}
