//go:build windows

package synth

import (
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// KillProcess kills proc and its children. taskkill walks the tree; if it
// is unavailable the process itself is still terminated.
func KillProcess(proc *os.Process) error {
	tree := exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(proc.Pid))
	if err := tree.Run(); err == nil {
		return nil
	}
	return proc.Kill()
}

// TerminateProcess has no graceful form on Windows.
func TerminateProcess(proc *os.Process) error {
	return KillProcess(proc)
}
