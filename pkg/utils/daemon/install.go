package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	unitPath = "/etc/systemd/system/beamd.service"
)

const unitTemplate = `[Unit]
Description=beamd laser power control daemon
Documentation=https://github.com/beamd-dev/beamd
After=local-fs.target

[Service]
Type=simple
ExecStart=/path/to/beamd daemon
Restart=on-failure
RestartSec=5

[Install]
WantedBy=multi-user.target
`

// Install writes a systemd unit pointing at the current executable and
// starts it. extraArgs are appended to the daemon invocation, e.g.
// "--always-allow-non-root-access".
func Install(extraArgs ...string) error {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	execStart := exePath + " daemon"
	if len(extraArgs) > 0 {
		execStart += " " + strings.Join(extraArgs, " ")
	}
	tmpl := strings.ReplaceAll(unitTemplate, "/path/to/beamd daemon", execStart)

	logrus.Infof("writing systemd unit to %s", unitPath)

	// warn if the file already exists
	_, err = os.Stat(unitPath)
	if err == nil {
		logrus.Errorf("%s already exists", unitPath)
	}

	err = os.WriteFile(unitPath, []byte(tmpl), 0644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", unitPath, err)
	}

	// chown root:root
	err = os.Chown(unitPath, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to chown %s: %w", unitPath, err)
	}

	err = exec.Command(
		"systemctl",
		"daemon-reload",
	).Run()
	if err != nil {
		return fmt.Errorf("failed to reload systemd units: %w", err)
	}

	logrus.Infof("starting beamd")

	// run systemctl enable --now beamd.service
	err = exec.Command(
		"systemctl",
		"enable",
		"--now",
		"beamd.service",
	).Run()
	if err != nil {
		return fmt.Errorf("failed to enable %s: %w", unitPath, err)
	}

	return nil
}
