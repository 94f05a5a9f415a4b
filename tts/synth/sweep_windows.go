//go:build windows

package synth

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// killMatching stops processes whose command line contains pattern. The
// PowerShell host excludes itself, since its own command line matches.
func killMatching(ctx context.Context, pattern string) (bool, error) {
	literal := strings.ReplaceAll(pattern, "'", "''")
	script := fmt.Sprintf(
		"$p = Get-CimInstance Win32_Process | Where-Object { $_.CommandLine -and $_.CommandLine.Contains('%s') -and $_.ProcessId -ne $PID }; "+
			"$p | ForEach-Object { Stop-Process -Id $_.ProcessId -Force -ErrorAction SilentlyContinue }; "+
			"if ($p) { exit 0 } else { exit 3 }",
		literal,
	)
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 3 {
		return false, nil
	}
	return false, err
}
