package tts

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Transport is the caller-facing surface of the player: the CLI, the
// interactive player and the bridge all go through it. It holds no state of
// its own.
type Transport struct {
	controller *Controller
}

// NewTransport creates a transport over controller.
func NewTransport(controller *Controller) *Transport {
	return &Transport{controller: controller}
}

// Speak speaks text and blocks until the session ends. Fatal errors are
// returned as *TTSError; cancelling ctx stops the session and is not an error.
func (t *Transport) Speak(ctx context.Context, text, voice string) error {
	return t.SpeakFrom(ctx, text, voice, 0)
}

// SpeakFrom is Speak starting at segment index start.
func (t *Transport) SpeakFrom(ctx context.Context, text, voice string, start int) error {
	err := t.controller.SpeakFrom(ctx, text, voice, start)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return nil
	}

	var ttsErr *TTSError
	if errors.As(err, &ttsErr) {
		return ttsErr
	}
	return NewTTSError(sanitize(err), "transport", "speak")
}

// Start begins speaking text without waiting and returns the number of
// segments queued.
func (t *Transport) Start(text, voice string) int {
	return t.controller.Start(text, voice)
}

// StartAt is Start beginning at segment index start.
func (t *Transport) StartAt(text, voice string, start int) int {
	return t.controller.StartAt(text, voice, start)
}

// Pause suspends playback.
func (t *Transport) Pause() bool { return t.controller.Pause() }

// Resume continues paused playback.
func (t *Transport) Resume() bool { return t.controller.Resume() }

// Stop ends playback.
func (t *Transport) Stop() bool { return t.controller.Stop() }

// Forward skips n segments ahead.
func (t *Transport) Forward(n int) bool { return t.controller.Forward(n) }

// Rewind goes back n segments.
func (t *Transport) Rewind(n int) bool { return t.controller.Rewind(n) }

// Replay restarts the current segment.
func (t *Transport) Replay() bool { return t.controller.Replay() }

// IsPaused reports whether playback is paused.
func (t *Transport) IsPaused() bool { return t.controller.IsPaused() }

// IsActive reports whether playback is playing or paused.
func (t *Transport) IsActive() bool { return t.controller.IsActive() }

// Status returns the current playback state.
func (t *Transport) Status() State { return t.controller.Snapshot() }

// Subscribe returns a channel of StateChangedMsg, ErrorMsg and FinishedMsg
// values and a function that ends the subscription.
func (t *Transport) Subscribe(buffer int) (<-chan tea.Msg, func()) {
	return t.controller.Events().Subscribe(buffer)
}

// Control applies a named transport action, as sent by remote clients.
func (t *Transport) Control(action string, n int) (bool, error) {
	if n < 1 {
		n = 1
	}
	switch action {
	case "pause":
		return t.Pause(), nil
	case "resume":
		return t.Resume(), nil
	case "toggle":
		if t.IsPaused() {
			return t.Resume(), nil
		}
		return t.Pause(), nil
	case "stop":
		return t.Stop(), nil
	case "forward":
		return t.Forward(n), nil
	case "rewind":
		return t.Rewind(n), nil
	case "replay":
		return t.Replay(), nil
	default:
		return false, ErrInvalidOperation
	}
}
