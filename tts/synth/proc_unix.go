//go:build !windows

package synth

import (
	"errors"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureCommand starts the process in its own process group so a kill
// also reaches anything it spawns, such as a player behind a shell.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// KillProcess kills the process group led by proc, or proc alone when it
// does not lead a group.
func KillProcess(proc *os.Process) error {
	return signalGroup(proc, unix.SIGKILL)
}

// TerminateProcess asks the process group led by proc to exit.
func TerminateProcess(proc *os.Process) error {
	return signalGroup(proc, unix.SIGTERM)
}

func signalGroup(proc *os.Process, sig unix.Signal) error {
	if err := unix.Kill(-proc.Pid, sig); err == nil {
		return nil
	}
	if err := proc.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}
