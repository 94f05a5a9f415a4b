package tts

import (
	"context"
	"fmt"
)

// Outcome describes how a synthesis call ended.
type Outcome int

const (
	// Completed means the engine spoke the text and exited cleanly.
	Completed Outcome = iota
	// Failed means the engine could not be started, exited with an error,
	// or exceeded its time limit.
	Failed
	// Killed means the call was cut short on purpose.
	Killed
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// Result is the completion signal of one synthesis call.
type Result struct {
	Outcome Outcome
	Err     error // Set when Outcome is Failed
}

// String returns a short description of the result.
func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Outcome, r.Err)
	}
	return r.Outcome.String()
}

// Synthesizer speaks text through an external engine. Implementations run at
// most one synthesis call at a time.
type Synthesizer interface {
	// Synthesize speaks text and blocks until the engine exits, the call is
	// killed, or it times out. It always returns.
	Synthesize(ctx context.Context, text, voice string) Result

	// Kill cuts the outstanding call short. It is safe to call at any time.
	Kill()

	// Cleanup sweeps processes and temp files left by earlier runs.
	Cleanup(ctx context.Context) error
}

// Segmenter splits text into speakable segments.
type Segmenter interface {
	Segment(text string) []Segment
}

// SegmenterFunc adapts a plain function to the Segmenter interface.
type SegmenterFunc func(text string) []Segment

// Segment calls f(text).
func (f SegmenterFunc) Segment(text string) []Segment {
	return f(text)
}

// Voice describes a voice offered by an engine.
type Voice struct {
	Name   string `json:"name"`
	Locale string `json:"locale,omitempty"`
	Gender string `json:"gender,omitempty"`
}

// VoiceLister is implemented by engines that can enumerate their voices.
type VoiceLister interface {
	Voices(ctx context.Context) ([]Voice, error)
}
