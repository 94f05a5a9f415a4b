package tts

import (
	"fmt"
	"time"
)

// StateType represents the playback state of a session.
type StateType int

const (
	// StateStopped indicates no session is active. It is the initial and
	// terminal state.
	StateStopped StateType = iota
	// StatePlaying indicates the session is speaking segments.
	StatePlaying
	// StatePaused indicates the session is suspended at the current segment.
	StatePaused
)

// String returns the string representation of the state.
func (s StateType) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s StateType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *StateType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "stopped":
		*s = StateStopped
	case "playing":
		*s = StatePlaying
	case "paused":
		*s = StatePaused
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// SegmentKind classifies a speakable unit of text.
type SegmentKind int

const (
	// KindSentence is a sentence, or a clause of a long sentence.
	KindSentence SegmentKind = iota
	// KindListItem is a bulleted paragraph.
	KindListItem
	// KindEnumeration is a lettered or numbered paragraph.
	KindEnumeration
)

// String returns the string representation of the kind.
func (k SegmentKind) String() string {
	switch k {
	case KindSentence:
		return "sentence"
	case KindListItem:
		return "list-item"
	case KindEnumeration:
		return "enumeration"
	default:
		return "unknown"
	}
}

// Segment is one speakable unit of text. Segments are values and never change
// once produced.
type Segment struct {
	Kind       SegmentKind
	Text       string
	PauseAfter time.Duration // Delay before the next segment starts
}

// State is a point-in-time snapshot of the playback session.
type State struct {
	State    StateType `json:"state"`
	Index    int       `json:"index"`    // Current segment index (0-based)
	Total    int       `json:"total"`    // Number of segments in the session
	InFlight bool      `json:"inFlight"` // A synthesis call is outstanding
	Text     string    `json:"text,omitempty"`
}

// IsActive returns true if a session is playing or paused.
func (s State) IsActive() bool {
	return s.State == StatePlaying || s.State == StatePaused
}

// Progress returns the fraction of the session consumed, between 0 and 1.
func (s State) Progress() float64 {
	if s.Total == 0 {
		return 0
	}
	p := float64(s.Index) / float64(s.Total)
	if p > 1 {
		return 1
	}
	return p
}
