//go:build unix

package transcode

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// isolateProcessGroup starts cmd in its own process group and makes context
// cancellation kill the whole group, including any children ffmpeg spawned.
func isolateProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return errNoProcess
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
