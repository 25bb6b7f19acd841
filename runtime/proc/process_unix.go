//go:build !windows

package proc

import (
	"os/exec"
	"syscall"

	"github.com/aledsdavies/cmdline/runtime/args"
)

func newCmd(command string, arguments args.Arguments) *exec.Cmd {
	cmd := exec.Command(command, arguments.ToUnixArgs()...)
	// New process group, so a forced kill takes spawned helpers with it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	return cmd
}

func terminateProcess(cmd *exec.Cmd) error {
	return cmd.Process.Signal(syscall.SIGTERM)
}

func killProcess(cmd *exec.Cmd) error {
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return cmd.Process.Kill()
}
