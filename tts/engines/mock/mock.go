// Package mock provides an in-memory synthesizer for testing.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
)

// Call records one Synthesize call.
type Call struct {
	Text  string
	Voice string
}

// Engine implements tts.Synthesizer without running any process. Each call
// "speaks" for the configured delay, or until killed when blocking.
type Engine struct {
	mu sync.Mutex

	// Configuration
	delay    time.Duration
	blocking bool
	voices   []tts.Voice

	// Control for testing
	failAll  error
	failOn   map[string]error
	started  chan string
	calls    []Call
	active   int
	peak     int
	kills    int
	cleanups int
	cancel   context.CancelFunc
}

// New creates a mock engine with a 10ms delay per call.
func New() *Engine {
	return &Engine{
		delay:   10 * time.Millisecond,
		failOn:  make(map[string]error),
		started: make(chan string, 256),
		voices: []tts.Voice{
			{Name: "Mock Voice", Locale: "en-US", Gender: "neutral"},
			{Name: "Mock Voice UK", Locale: "en-GB", Gender: "female"},
			{Name: "Mock Voice Deep", Locale: "en-US", Gender: "male"},
		},
	}
}

// Synthesize simulates speaking text.
func (e *Engine) Synthesize(ctx context.Context, text, voice string) tts.Result {
	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.calls = append(e.calls, Call{Text: text, Voice: voice})
	e.active++
	e.peak = max(e.peak, e.active)
	e.cancel = cancel
	err := e.failureLocked(text)
	delay, blocking := e.delay, e.blocking
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active--
		e.cancel = nil
		e.mu.Unlock()
	}()

	select {
	case e.started <- text:
	default:
	}

	if err != nil {
		return tts.Result{Outcome: tts.Failed, Err: err}
	}

	if blocking {
		<-callCtx.Done()
		return tts.Result{Outcome: tts.Killed}
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return tts.Result{Outcome: tts.Completed}
	case <-callCtx.Done():
		return tts.Result{Outcome: tts.Killed}
	}
}

func (e *Engine) failureLocked(text string) error {
	if e.failAll != nil {
		return e.failAll
	}
	for substr, err := range e.failOn {
		if strings.Contains(text, substr) {
			return err
		}
	}
	return nil
}

// Kill cuts the outstanding call short.
func (e *Engine) Kill() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kills++
	if e.cancel != nil {
		e.cancel()
	}
}

// Cleanup counts sweeps.
func (e *Engine) Cleanup(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cleanups++
	return nil
}

// Voices returns the mock voices.
func (e *Engine) Voices(context.Context) ([]tts.Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.Voice(nil), e.voices...), nil
}

// Test control methods

// SetDelay sets how long each call speaks.
func (e *Engine) SetDelay(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = delay
}

// SetBlocking makes calls speak until killed.
func (e *Engine) SetBlocking(blocking bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blocking = blocking
}

// SetFailure makes every call fail with err.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failAll = err
}

// FailOn makes calls whose text contains substr fail with err.
func (e *Engine) FailOn(substr string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failOn[substr] = err
}

// ClearFailure resets the engine to normal operation.
func (e *Engine) ClearFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failAll = nil
	e.failOn = make(map[string]error)
}

// Started receives the text of each call as it begins.
func (e *Engine) Started() <-chan string {
	return e.started
}

// Calls returns the calls made so far.
func (e *Engine) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Call(nil), e.calls...)
}

// CallCount returns the number of Synthesize calls.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// Active returns the number of calls in progress.
func (e *Engine) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

// PeakActive returns the most calls ever in progress at once.
func (e *Engine) PeakActive() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.peak
}

// KillCount returns the number of Kill calls.
func (e *Engine) KillCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.kills
}

// CleanupCount returns the number of Cleanup calls.
func (e *Engine) CleanupCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cleanups
}
