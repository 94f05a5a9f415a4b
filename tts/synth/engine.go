// Package synth runs speech engines as external processes, one call at a
// time, and cleans up after them.
package synth

import (
	"context"
	"os"
	"path/filepath"
)

// Job describes one synthesis call to an engine.
type Job struct {
	Dir     string // Temp directory owned by the call
	Payload string // Path of the encoded text inside Dir
	Voice   string // Requested voice, empty for the engine default
}

// Path returns the path of a file named name inside the call's directory.
func (j Job) Path(name string) string {
	return filepath.Join(j.Dir, name)
}

// Step is one process an engine runs for a call. Steps run in order and
// never overlap.
type Step struct {
	Name string
	Args []string
}

// Engine turns a synthesis job into processes to run.
type Engine interface {
	// Name returns the engine name for logging.
	Name() string

	// Encode converts text into the payload file contents.
	Encode(text string) ([]byte, error)

	// Steps returns the processes that speak the job's payload.
	Steps(job Job) ([]Step, error)
}

// Preparer is implemented by engines that must wait before each call, such
// as rate-limited network engines.
type Preparer interface {
	Prepare(ctx context.Context) error
}

// OrphanMatcher is implemented by engines whose processes can be found by
// command line patterns other than the call's temp directory.
type OrphanMatcher interface {
	OrphanPatterns() []string
}

// Registry tracks live engine processes so they can be killed on shutdown.
type Registry interface {
	Register(name string, proc *os.Process)
	Unregister(name string)
}

type nopRegistry struct{}

func (nopRegistry) Register(string, *os.Process) {}
func (nopRegistry) Unregister(string)            {}
