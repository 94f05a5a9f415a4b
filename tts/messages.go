package tts

import "time"

// Messages published on the notification channel. They are plain structs so
// they can be fed straight into a Bubble Tea program or encoded as JSON.

// StateChangedMsg indicates the playback state or position has changed.
type StateChangedMsg struct {
	State     StateType `json:"state"`
	PrevState StateType `json:"prevState"`
	Index     int       `json:"index"`
	Total     int       `json:"total"`
	InFlight  bool      `json:"inFlight"`
	Text      string    `json:"text,omitempty"` // Text of the current segment
	Timestamp time.Time `json:"timestamp"`
}

// ErrorMsg indicates a segment could not be spoken and was skipped, or that
// the session ended on a fatal error.
type ErrorMsg struct {
	Index     int       `json:"index"`
	Reason    string    `json:"reason"`
	Fatal     bool      `json:"fatal"`
	Timestamp time.Time `json:"timestamp"`
}

// FinishedMsg indicates every segment of the session has been consumed.
type FinishedMsg struct {
	Total     int       `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageType returns the wire name of a notification message, or an empty
// string for values that are not notifications.
func MessageType(msg any) string {
	switch msg.(type) {
	case StateChangedMsg:
		return "stateChanged"
	case ErrorMsg:
		return "error"
	case FinishedMsg:
		return "finished"
	default:
		return ""
	}
}
