// Package tts provides the speech playback state machine and its transport
// facade.
package tts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// ControllerConfig holds configuration for the playback controller.
type ControllerConfig struct {
	// BatchSize is the number of segments handed to one synthesis call.
	BatchSize int
	// SweepTimeout bounds the orphan sweep run at session start and stop.
	// Zero disables the sweep.
	SweepTimeout time.Duration
	// Logger receives controller diagnostics. Defaults to the global logger.
	Logger *log.Logger
	// Events receives notifications. A new broadcaster is created when nil.
	Events *Broadcaster
}

// DefaultControllerConfig returns the default controller configuration.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		BatchSize:    3,
		SweepTimeout: 5 * time.Second,
	}
}

// session is one speak call's worth of playback.
type session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	segments []Segment
	voice    string

	wake chan struct{} // resume while the driver waits in Paused
	kick chan struct{} // cut the inter-segment pause short
	done chan struct{} // closed when the driver exits
	err  error         // fatal error, written before done is closed
}

// Controller owns the playback session. All transitions happen under mu; the
// only concurrency is the external engine process, which runs in the
// session's driver goroutine.
type Controller struct {
	// Core components
	synth     Synthesizer
	segmenter Segmenter
	events    *Broadcaster
	log       *log.Logger

	// Configuration
	batchSize    int
	sweepTimeout time.Duration

	// Serializes session lifecycle so a new session never starts before the
	// previous driver has exited.
	opMu sync.Mutex

	mu         sync.Mutex
	settledCh  *sync.Cond
	current    *session
	state      StateType
	segments   []Segment
	index      int
	inFlight   bool
	batchStart int
	pending    int
	replay     bool
	settled    uint64             // bumped each time inFlight clears
	callCancel context.CancelFunc // cancels the in-flight call

	ctx    context.Context
	cancel context.CancelFunc
}

// NewController creates a playback controller.
func NewController(synth Synthesizer, segmenter Segmenter, config ControllerConfig) *Controller {
	if config.BatchSize < 1 {
		config.BatchSize = 1
	}
	if config.Logger == nil {
		config.Logger = log.Default().WithPrefix("controller")
	}
	if config.Events == nil {
		config.Events = NewBroadcaster(config.Logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		synth:        synth,
		segmenter:    segmenter,
		events:       config.Events,
		log:          config.Logger,
		batchSize:    config.BatchSize,
		sweepTimeout: config.SweepTimeout,
		state:        StateStopped,
		ctx:          ctx,
		cancel:       cancel,
	}
	c.settledCh = sync.NewCond(&c.mu)
	return c
}

// Events returns the controller's notification broadcaster.
func (c *Controller) Events() *Broadcaster {
	return c.events
}

// Speak replaces any running session with a new one for text and blocks until
// it finishes, is stopped or replaced, or ctx is done. Only a fatal engine
// error is returned; per-segment failures are skipped and published.
func (c *Controller) Speak(ctx context.Context, text, voice string) error {
	return c.SpeakFrom(ctx, text, voice, 0)
}

// SpeakFrom is Speak starting at segment index start.
func (c *Controller) SpeakFrom(ctx context.Context, text, voice string, start int) error {
	s := c.start(text, voice, start)
	if s == nil {
		return nil
	}

	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		c.stopSession(s)
		return ctx.Err()
	}
}

// Start is the fire-and-forget form of Speak. It returns the number of
// segments in the new session.
func (c *Controller) Start(text, voice string) int {
	return c.StartAt(text, voice, 0)
}

// StartAt is Start beginning at segment index start.
func (c *Controller) StartAt(text, voice string, start int) int {
	s := c.start(text, voice, start)
	if s == nil {
		return 0
	}
	return len(s.segments)
}

func (c *Controller) start(text, voice string, start int) *session {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stopLocked()
	if c.ctx.Err() != nil {
		return nil
	}

	segments := c.segmenter.Segment(text)
	if len(segments) == 0 {
		c.log.Debug("Nothing to speak")
		return nil
	}

	c.sweep()

	ctx, cancel := context.WithCancel(c.ctx)
	s := &session{
		ctx:      ctx,
		cancel:   cancel,
		segments: segments,
		voice:    voice,
		wake:     make(chan struct{}, 1),
		kick:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	prev := c.state
	c.current = s
	c.segments = segments
	c.index = clamp(start, 0, len(segments)-1)
	first := c.index
	c.batchStart = first
	c.pending = 0
	c.replay = false
	c.state = StatePlaying
	c.publishStateLocked(prev)
	c.mu.Unlock()

	c.log.Info("Starting session", "segments", len(segments), "voice", voice, "start", first)
	go c.run(s)
	return s
}

// run drives one session. Each iteration has a single suspension point: the
// synthesis call, or the pause that follows it.
func (c *Controller) run(s *session) {
	defer close(s.done)

	for {
		c.mu.Lock()
		if c.current != s {
			c.mu.Unlock()
			return
		}

		if s.ctx.Err() != nil {
			c.endLocked(s)
			c.mu.Unlock()
			return
		}

		if c.state == StatePaused {
			c.mu.Unlock()
			select {
			case <-s.wake:
			case <-s.ctx.Done():
			}
			continue
		}

		if c.index >= len(s.segments) {
			c.finishLocked(s)
			c.mu.Unlock()
			return
		}

		start := c.index
		end := min(start+c.batchSize, len(s.segments))
		batch := s.segments[start:end]
		callCtx, callCancel := context.WithCancel(s.ctx)
		c.inFlight = true
		c.batchStart = start
		c.callCancel = callCancel
		c.publishStateLocked(c.state)
		c.mu.Unlock()

		res := c.synth.Synthesize(callCtx, joinSegments(batch), s.voice)
		callCancel()

		c.mu.Lock()
		c.callCancel = nil
		if c.current != s {
			c.mu.Unlock()
			return
		}

		switch res.Outcome {
		case Completed:
			c.index = end
		case Failed:
			if !IsRecoverableError(res.Err) {
				c.failLocked(s, start, res.Err)
				c.mu.Unlock()
				return
			}
			c.skipLocked(start, end, res.Err)
			c.index = end
		case Killed:
			c.log.Debug("Synthesis killed", "index", start)
		}

		var pause time.Duration
		if res.Outcome == Completed && c.state == StatePlaying && c.pending == 0 && !c.replay {
			pause = batch[len(batch)-1].PauseAfter
		}
		if pause > 0 {
			drain(s.kick)
			c.mu.Unlock()
			timer := time.NewTimer(pause)
			select {
			case <-timer.C:
			case <-s.kick:
			case <-s.ctx.Done():
			}
			timer.Stop()
			c.mu.Lock()
			if c.current != s {
				c.mu.Unlock()
				return
			}
		}

		prev := c.state
		c.inFlight = false
		c.settled++
		if c.replay {
			c.index = c.batchStart
			c.replay = false
		} else {
			c.applyPendingLocked()
		}
		c.settledCh.Broadcast()
		c.publishStateLocked(prev)
		c.mu.Unlock()
	}
}

// applyPendingLocked folds the queued navigation delta into the index.
func (c *Controller) applyPendingLocked() {
	if c.pending == 0 {
		return
	}
	delta := c.pending
	c.pending = 0

	// A forward queued while the final batch completed finishes the session.
	if delta > 0 && c.index >= len(c.segments) {
		return
	}
	c.index = clamp(c.index+delta, 0, len(c.segments)-1)
	c.log.Debug("Applied queued navigation", "delta", delta, "index", c.index)
}

func (c *Controller) skipLocked(start, end int, err error) {
	if errors.Is(err, ErrSynthesisTimeout) {
		c.log.Warn("Synthesis timed out, skipping", "from", start, "to", end-1)
	} else {
		c.log.Warn("Synthesis failed, skipping", "from", start, "to", end-1, "error", err)
	}
	c.events.Publish(ErrorMsg{
		Index:     start,
		Reason:    sanitize(err).Error(),
		Timestamp: time.Now(),
	})
}

func (c *Controller) failLocked(s *session, index int, err error) {
	c.log.Error("Synthesis engine unavailable, ending session", "error", err)
	s.err = NewTTSError(sanitize(err), "controller", "speak").WithContext("index", index)

	prev := c.state
	c.current = nil
	c.state = StateStopped
	c.inFlight = false
	c.settled++
	c.pending = 0
	c.settledCh.Broadcast()

	c.events.Publish(ErrorMsg{
		Index:     index,
		Reason:    sanitize(err).Error(),
		Fatal:     true,
		Timestamp: time.Now(),
	})
	c.publishStateLocked(prev)

	// The notification above carries the failed position; the session
	// itself is gone.
	c.segments = nil
	c.index = 0
	s.cancel()
}

// endLocked drops s after its context was cancelled underneath it.
func (c *Controller) endLocked(s *session) {
	prev := c.state
	c.current = nil
	c.state = StateStopped
	c.inFlight = false
	c.pending = 0
	c.settledCh.Broadcast()
	c.publishStateLocked(prev)
}

func (c *Controller) finishLocked(s *session) {
	prev := c.state
	c.current = nil
	c.state = StateStopped
	c.inFlight = false
	c.pending = 0
	c.settledCh.Broadcast()
	s.cancel()

	c.log.Info("Session finished", "segments", len(s.segments))
	c.events.Publish(FinishedMsg{Total: len(s.segments), Timestamp: time.Now()})
	c.publishStateLocked(prev)
}

// Pause suspends a playing session at the current segment. It waits for the
// in-flight call to resolve and returns false unless the session was playing.
func (c *Controller) Pause() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying {
		return false
	}

	s := c.current
	prev := c.state
	c.state = StatePaused
	c.publishStateLocked(prev)

	if c.inFlight {
		c.killLocked()
		c.waitSettledLocked(s)
	}
	c.log.Debug("Paused", "index", c.index)
	return true
}

// Resume continues a paused session from the current segment.
func (c *Controller) Resume() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return false
	}

	prev := c.state
	c.state = StatePlaying
	kick(c.current.wake)
	c.publishStateLocked(prev)
	c.log.Debug("Resumed", "index", c.index)
	return true
}

// Stop ends the session from any state. It always succeeds.
func (c *Controller) Stop() bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.stopLocked()
	return true
}

// stopLocked requires opMu.
func (c *Controller) stopLocked() {
	c.mu.Lock()
	s := c.current
	prev := c.state
	c.current = nil
	c.state = StateStopped
	c.inFlight = false
	c.segments = nil
	c.index = 0
	c.pending = 0
	c.replay = false
	c.settledCh.Broadcast()
	c.mu.Unlock()

	if s == nil {
		return
	}

	s.cancel()
	c.synth.Kill()
	<-s.done

	c.mu.Lock()
	c.publishStateLocked(prev)
	c.mu.Unlock()

	c.log.Info("Session stopped")
	c.sweep()
}

// stopSession stops s if it is still the current session.
func (c *Controller) stopSession(s *session) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	same := c.current == s
	c.mu.Unlock()
	if same {
		c.stopLocked()
	}
}

// Forward moves n segments ahead. See navigate.
func (c *Controller) Forward(n int) bool {
	if n < 1 {
		return false
	}
	return c.navigate(n)
}

// Rewind moves n segments back. See navigate.
func (c *Controller) Rewind(n int) bool {
	if n < 1 {
		return false
	}
	return c.navigate(-n)
}

// navigate applies delta to the index. While a call is in flight the delta is
// queued and the call killed; the driver applies it once the call resolves.
// A paused session is repositioned without resuming.
func (c *Controller) navigate(delta int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return false
	}

	if c.inFlight {
		c.pending = mergeDelta(c.pending, delta)
		c.replay = false
		c.killLocked()
		c.log.Debug("Queued navigation", "pending", c.pending)
		return true
	}

	c.index = clamp(c.index+delta, 0, len(c.segments)-1)
	if c.state == StatePlaying {
		// Cut the inter-segment pause short.
		kick(c.current.kick)
	}
	c.publishStateLocked(c.state)
	return true
}

// Replay restarts the in-flight batch, or the last one spoken, from its
// beginning. A paused session starts playing again.
func (c *Controller) Replay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStopped {
		return false
	}

	c.pending = 0
	if c.inFlight {
		c.replay = true
		c.killLocked()
	} else {
		c.index = clamp(c.batchStart, 0, len(c.segments)-1)
		if c.state == StatePlaying {
			kick(c.current.kick)
			c.publishStateLocked(c.state)
		}
	}

	if c.state == StatePaused {
		prev := c.state
		c.state = StatePlaying
		kick(c.current.wake)
		c.publishStateLocked(prev)
	}
	return true
}

// IsPaused reports whether the session is paused.
func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StatePaused
}

// IsActive reports whether a session is playing or paused.
func (c *Controller) IsActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateStopped
}

// Snapshot returns the current state of the session.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Name implements the lifecycle component interface.
func (c *Controller) Name() string {
	return "Playback Controller"
}

// Shutdown stops the session and rejects new ones.
func (c *Controller) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.Stop()
		c.cancel()
		close(done)
	}()

	select {
	case <-done:
		c.events.Close()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ForceStop kills the engine process without waiting.
func (c *Controller) ForceStop() error {
	c.cancel()
	c.synth.Kill()
	return nil
}

// killLocked cuts the in-flight call short, or the pause that follows it.
func (c *Controller) killLocked() {
	if c.callCancel != nil {
		c.callCancel()
	}
	c.synth.Kill()
	if c.current != nil {
		kick(c.current.kick)
	}
}

func (c *Controller) waitSettledLocked(s *session) {
	gen := c.settled
	for c.current == s && c.settled == gen {
		c.settledCh.Wait()
	}
}

func (c *Controller) snapshotLocked() State {
	st := State{
		State:    c.state,
		Index:    c.index,
		Total:    len(c.segments),
		InFlight: c.inFlight,
	}
	if c.index >= 0 && c.index < len(c.segments) {
		st.Text = c.segments[c.index].Text
	}
	return st
}

func (c *Controller) publishStateLocked(prev StateType) {
	st := c.snapshotLocked()
	c.events.Publish(StateChangedMsg{
		State:     st.State,
		PrevState: prev,
		Index:     st.Index,
		Total:     st.Total,
		InFlight:  st.InFlight,
		Text:      st.Text,
		Timestamp: time.Now(),
	})
}

func (c *Controller) sweep() {
	if c.sweepTimeout <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, c.sweepTimeout)
	defer cancel()
	if err := c.synth.Cleanup(ctx); err != nil {
		c.log.Debug("Orphan sweep incomplete", "error", err)
	}
}

// mergeDelta coalesces navigation requests: same-direction requests add up,
// a change of direction replaces what was queued.
func mergeDelta(pending, delta int) int {
	if pending == 0 || (pending > 0) == (delta > 0) {
		return pending + delta
	}
	return delta
}

func joinSegments(batch []Segment) string {
	if len(batch) == 1 {
		return batch[0].Text
	}
	parts := make([]string, len(batch))
	for i, seg := range batch {
		parts[i] = seg.Text
	}
	return strings.Join(parts, "\n")
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return max(lo, min(v, hi))
}

func kick(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}
