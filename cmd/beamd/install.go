package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/beamd-dev/beamd/pkg/config"
	daemonutils "github.com/beamd-dev/beamd/pkg/utils/daemon"
)

func init() {
	commandGroups = append(commandGroups, gInstallation)
}

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Install beamd (system-wide)",
		GroupID: gInstallation,
		Long: `Install beamd daemon to systemd (system-wide).

This makes beamd run in the background and automatically start on boot. You must run this command as root.

By default, only root user is allowed to access the beamd daemon for security reasons. As a result, you will need to run beamd client as root to control the lines, e.g. setting power. If you want to allow non-root users, i.e., you, to access the daemon, you can use the --allow-non-root-access flag, so you don't have to use sudo every time.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Catch config mistakes now rather than in the daemon log
			// after boot.
			if _, err := config.NewFile(configPath); err != nil {
				return err
			}

			if allowNonRootAccess {
				logrus.Info("non-root users are allowed to access the beamd daemon.")
			} else {
				logrus.Info("only root user is allowed to access the beamd daemon.")
			}

			var extraArgs []string
			if allowNonRootAccess {
				extraArgs = append(extraArgs, "--always-allow-non-root-access")
			}

			err := daemonutils.Install(extraArgs...)
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v. Are you root?", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()

			cmd.Printf("`systemd' will use current binary (%s) at startup so please make sure you do not move this binary. Once this binary is moved or deleted, you will need to run ``beamd install'' again.\n", exePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access beamd daemon.")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "uninstall",
		Short:   "Uninstall beamd (system-wide)",
		GroupID: gInstallation,
		Long: `Uninstall beamd daemon from systemd (system-wide).

This stops beamd and removes it from systemd. Lines keep whatever control
value they last had; beamd does not touch the hardware on the way out.

You must run this command as root.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall()
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			fmt.Println("successfully uninstalled")

			cmd.Printf("Your config is kept in %s and calibration state in %s, in case you want to use `beamd' again. If you want a complete uninstall, you can remove both files and beamd itself manually.\n", configPath, statePath)

			return nil
		},
	}

	return cmd
}
