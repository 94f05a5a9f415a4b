//go:build !windows

package synth

import (
	"context"
	"errors"
	"os/exec"
	"regexp"
)

// killMatching runs pkill against full command lines. pkill exits 1 when
// nothing matched.
func killMatching(ctx context.Context, pattern string) (bool, error) {
	cmd := exec.CommandContext(ctx, "pkill", "-KILL", "-f", "--", regexp.QuoteMeta(pattern))
	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return true, nil
	case errors.As(err, &exitErr) && exitErr.ExitCode() == 1:
		return false, nil
	default:
		return false, err
	}
}
