//go:build windows

package proc

import (
	"os/exec"
	"syscall"

	"github.com/aledsdavies/cmdline/core/platform"
	"github.com/aledsdavies/cmdline/runtime/args"
)

func newCmd(command string, arguments args.Arguments) *exec.Cmd {
	cmd := exec.Command(command)
	// The arguments are already one native command-line string; exec's
	// per-argument re-quoting would wreck its quoting, so pass it through
	// verbatim.
	line := args.QuoteArg(command, platform.Windows)
	if a := arguments.ToWindowsArgs(); a != "" {
		line += " " + a
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{CmdLine: line}
	return cmd
}

// Windows has no graceful termination signal for arbitrary console
// processes, so terminate degrades to a forced kill.
func terminateProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}

func killProcess(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
