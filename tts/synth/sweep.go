package synth

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultStaleAfter is how old a leftover temp directory must be before a
// sweep removes it.
const DefaultStaleAfter = 10 * time.Minute

// Sweeper removes what crashed runs leave behind: engine processes, found by
// command line, and temp directories. Sweeps are not atomic. A process can
// start or exit between listing and killing, and another instance may sweep
// at the same time, so callers must not rely on a sweep for correctness.
type Sweeper struct {
	tempDir    string
	staleAfter time.Duration
	log        *log.Logger

	// runner executes the platform kill command. It returns true when at
	// least one process matched.
	runner func(ctx context.Context, pattern string) (bool, error)
}

// NewSweeper creates a sweeper for temp directories under tempDir.
func NewSweeper(tempDir string, logger *log.Logger) *Sweeper {
	if logger == nil {
		logger = log.Default()
	}
	return &Sweeper{
		tempDir:    tempDir,
		staleAfter: DefaultStaleAfter,
		log:        logger,
		runner:     killMatching,
	}
}

// Sweep kills engine processes left by crashed runs and removes their temp
// directories. Only directories older than the stale age count: processes
// of live instances name fresh directories and are left alone. Processes
// whose command line contains any of patterns are killed too. Finding
// nothing to clean is not an error.
func (s *Sweeper) Sweep(ctx context.Context, patterns []string) error {
	var errs []error

	stale, err := s.staleDirs(time.Now())
	if err != nil {
		errs = append(errs, err)
	}

	// The separator keeps readaloud-ab from matching readaloud-abc.
	targets := make([]string, 0, len(stale)+len(patterns))
	for _, dir := range stale {
		targets = append(targets, dir+string(filepath.Separator))
	}
	targets = append(targets, patterns...)

	for _, pattern := range targets {
		if strings.TrimSpace(pattern) == "" {
			continue
		}
		matched, err := s.runner(ctx, pattern)
		switch {
		case errors.Is(err, exec.ErrNotFound):
			s.log.Debug("No process killer available, skipping sweep", "pattern", pattern)
		case err != nil:
			errs = append(errs, err)
		case matched:
			s.log.Info("Killed orphaned engine processes", "pattern", pattern)
		}
	}

	removed := 0
	for _, dir := range stale {
		if err := os.RemoveAll(dir); err != nil {
			s.log.Debug("Could not remove stale temp directory", "dir", dir, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.log.Info("Removed stale temp directories", "count", removed)
	}

	return errors.Join(errs...)
}

// staleDirs lists temp directories older than the stale age.
func (s *Sweeper) staleDirs(now time.Time) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.tempDir, TempPrefix+"*"))
	if err != nil {
		return nil, err
	}

	var stale []string
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		if now.Sub(info.ModTime()) < s.staleAfter {
			continue
		}
		stale = append(stale, path)
	}
	return stale, nil
}
