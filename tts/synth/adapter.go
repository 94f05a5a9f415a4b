package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

// TempPrefix starts the name of every per-call temp directory.
const TempPrefix = "readaloud-"

// PayloadName is the file the encoded text is written to.
const PayloadName = "speech.txt"

// Removal of a call's temp directory is retried because the engine may still
// hold the payload open for a moment after it exits.
const (
	cleanupAttempts = 5
	cleanupBackoff  = 100 * time.Millisecond
)

// Config holds adapter configuration.
type Config struct {
	Timeout  time.Duration // Maximum wall-clock time per call
	TempDir  string        // Parent of per-call temp directories
	Registry Registry
	Logger   *log.Logger
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		Timeout: 60 * time.Second,
		TempDir: os.TempDir(),
	}
}

// Adapter runs an Engine as external processes and implements
// tts.Synthesizer.
type Adapter struct {
	engine   Engine
	timeout  time.Duration
	tempDir  string
	registry Registry
	sweeper  *Sweeper
	log      *log.Logger

	mu     sync.Mutex
	active bool
	cancel context.CancelCauseFunc
}

// New creates an adapter for engine.
func New(engine Engine, config Config) *Adapter {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.TempDir == "" {
		config.TempDir = os.TempDir()
	}
	if config.Registry == nil {
		config.Registry = nopRegistry{}
	}
	if config.Logger == nil {
		config.Logger = log.Default().WithPrefix(engine.Name())
	}

	return &Adapter{
		engine:   engine,
		timeout:  config.Timeout,
		tempDir:  config.TempDir,
		registry: config.Registry,
		sweeper:  NewSweeper(config.TempDir, config.Logger),
		log:      config.Logger,
	}
}

// Name returns the engine name.
func (a *Adapter) Name() string {
	return a.engine.Name()
}

// Engine returns the wrapped engine.
func (a *Adapter) Engine() Engine {
	return a.engine
}

// Synthesize speaks text with the engine. The call's temp directory is
// removed before it returns, whatever the outcome.
func (a *Adapter) Synthesize(ctx context.Context, text, voice string) tts.Result {
	a.mu.Lock()
	if a.active {
		a.mu.Unlock()
		return tts.Result{Outcome: tts.Failed, Err: tts.ErrBusy}
	}
	callCtx, cancel := context.WithCancelCause(ctx)
	a.active = true
	a.cancel = cancel
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.active = false
		a.cancel = nil
		a.mu.Unlock()
		cancel(nil)
	}()

	runCtx, stop := context.WithTimeoutCause(callCtx, a.timeout, tts.ErrSynthesisTimeout)
	defer stop()

	dir, err := os.MkdirTemp(a.tempDir, TempPrefix+"*")
	if err != nil {
		return failed(fmt.Errorf("%w: create temp dir: %w", tts.ErrSynthesisFailed, err))
	}
	defer a.release(dir)

	job := Job{Dir: dir, Payload: filepath.Join(dir, PayloadName), Voice: voice}

	payload, err := a.engine.Encode(text)
	if err != nil {
		return failed(fmt.Errorf("%w: encode payload: %w", tts.ErrSynthesisFailed, err))
	}
	if err := os.WriteFile(job.Payload, payload, 0o600); err != nil {
		return failed(fmt.Errorf("%w: write payload: %w", tts.ErrSynthesisFailed, err))
	}

	if p, ok := a.engine.(Preparer); ok {
		if err := p.Prepare(runCtx); err != nil {
			return a.classify(runCtx, "prepare", err)
		}
	}

	steps, err := a.engine.Steps(job)
	if err != nil {
		return failed(fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err))
	}

	for _, step := range steps {
		if runCtx.Err() != nil {
			return a.classify(runCtx, step.Name, runCtx.Err())
		}
		if err := a.run(runCtx, step); err != nil {
			return a.classify(runCtx, step.Name, err)
		}
	}
	return tts.Result{Outcome: tts.Completed}
}

// Kill cuts the outstanding call short. The call resolves as Killed.
func (a *Adapter) Kill() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel(tts.ErrKilled)
	}
}

// Active reports whether a call is outstanding.
func (a *Adapter) Active() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Cleanup kills engine processes and removes temp directories left behind
// by crashed runs. It is best-effort: another instance may be cleaning or
// speaking at the same time, and processes may come and go while it runs.
func (a *Adapter) Cleanup(ctx context.Context) error {
	if a.Active() {
		return tts.ErrBusy
	}

	var patterns []string
	if m, ok := a.engine.(OrphanMatcher); ok {
		patterns = m.OrphanPatterns()
	}
	return a.sweeper.Sweep(ctx, patterns)
}

// Voices lists the engine's voices when the engine supports it.
func (a *Adapter) Voices(ctx context.Context) ([]tts.Voice, error) {
	lister, ok := a.engine.(tts.VoiceLister)
	if !ok {
		return nil, nil
	}
	return lister.Voices(ctx)
}

// run starts one step and waits for it, killing its process group when ctx
// is done.
func (a *Adapter) run(ctx context.Context, step Step) error {
	if len(step.Args) == 0 {
		return fmt.Errorf("%w: empty command", tts.ErrSynthesisFailed)
	}

	cmd := exec.Command(step.Args[0], step.Args[1:]...) //nolint:gosec
	configureCommand(cmd)
	stderr := &limitedBuffer{max: 4096}
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		return err
	}

	name := fmt.Sprintf("%s/%s:%d", a.engine.Name(), step.Name, cmd.Process.Pid)
	a.registry.Register(name, cmd.Process)
	defer a.registry.Unregister(name)

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		a.log.Debug("Step finished", "step", step.Name, "duration", time.Since(startTime), "error", err)
		if err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				a.log.Debug("Step stderr", "step", step.Name, "stderr", msg)
			}
			return fmt.Errorf("%w: %w", tts.ErrSynthesisFailed, err)
		}
		return nil

	case <-ctx.Done():
		if err := KillProcess(cmd.Process); err != nil {
			a.log.Debug("Kill failed", "step", step.Name, "pid", cmd.Process.Pid, "error", err)
		}
		<-done
		a.log.Debug("Step interrupted", "step", step.Name, "duration", time.Since(startTime))
		return context.Cause(ctx)
	}
}

// classify maps a step error to a result. An interrupted context wins over
// the process error, since killing the process is what made it fail.
func (a *Adapter) classify(ctx context.Context, step string, err error) tts.Result {
	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), tts.ErrSynthesisTimeout) {
			a.log.Warn("Synthesis timed out", "step", step, "timeout", a.timeout)
			return failed(fmt.Errorf("%w after %s", tts.ErrSynthesisTimeout, a.timeout))
		}
		return tts.Result{Outcome: tts.Killed}
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return failed(fmt.Errorf("%w: %s: %w", tts.ErrEngineUnavailable, step, err))
	}
	if !errors.Is(err, tts.ErrSynthesisFailed) {
		err = fmt.Errorf("%w: %s: %w", tts.ErrSynthesisFailed, step, err)
	}
	return failed(err)
}

// release removes a call's temp directory. Failure is logged and otherwise
// ignored.
func (a *Adapter) release(dir string) {
	if err := removeWithRetry(dir, cleanupAttempts, cleanupBackoff); err != nil {
		a.log.Warn("Could not remove temp files", "dir", dir, "attempts", cleanupAttempts, "error", err)
	}
}

func removeWithRetry(path string, attempts int, backoff time.Duration) error {
	var err error
	for i := range attempts {
		if err = os.RemoveAll(path); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(backoff)
		}
	}
	return err
}

func failed(err error) tts.Result {
	return tts.Result{Outcome: tts.Failed, Err: err}
}

// limitedBuffer keeps the first max bytes written to it.
type limitedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
