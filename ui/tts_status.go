package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/muesli/reflow/truncate"
)

var (
	playingColor = lipgloss.AdaptiveColor{Light: "#04B575", Dark: "#00FF87"}
	pausedColor  = lipgloss.AdaptiveColor{Light: "#B58904", Dark: "#FFD700"}
	stoppedColor = lipgloss.AdaptiveColor{Light: "#888888", Dark: "#666666"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#D70000", Dark: "#FF5F5F"}
	dimColor     = lipgloss.AdaptiveColor{Light: "#A49FA5", Dark: "#777777"}

	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(dimColor)
	errorStyle = lipgloss.NewStyle().Foreground(errorColor)
	textStyle  = lipgloss.NewStyle().Italic(true)
)

// statusDisplay tracks playback from notifications.
type statusDisplay struct {
	state    tts.StateType
	index    int
	total    int
	inFlight bool
	text     string
	finished bool
	fatal    string

	errors    []string
	maxErrors int
}

func newStatusDisplay(maxErrors int) *statusDisplay {
	return &statusDisplay{
		state:     tts.StateStopped,
		maxErrors: maxErrors,
	}
}

// Update applies a notification. It reports whether msg was one.
func (s *statusDisplay) Update(msg any) bool {
	switch m := msg.(type) {
	case tts.StateChangedMsg:
		s.state = m.State
		s.inFlight = m.InFlight
		// Stop clears the session; keep the last position on screen.
		if m.Total > 0 {
			s.index = m.Index
			s.total = m.Total
			s.text = m.Text
		}

	case tts.ErrorMsg:
		if m.Fatal {
			s.fatal = m.Reason
			return true
		}
		s.errors = append(s.errors, fmt.Sprintf("Segment %d skipped: %s", m.Index+1, m.Reason))
		if len(s.errors) > s.maxErrors {
			s.errors = s.errors[len(s.errors)-s.maxErrors:]
		}

	case tts.FinishedMsg:
		s.finished = true
		s.index = m.Total
		s.total = m.Total
		s.text = ""

	default:
		return false
	}
	return true
}

// Progress returns the fraction of segments consumed.
func (s *statusDisplay) Progress() float64 {
	return tts.State{Index: s.index, Total: s.total}.Progress()
}

// Counter returns "Segment i/N" with a 1-based i.
func (s *statusDisplay) Counter() string {
	if s.total == 0 {
		return ""
	}
	return fmt.Sprintf("Segment %d/%d", min(s.index+1, s.total), s.total)
}

// StateLabel returns the colored state name with its icon.
func (s *statusDisplay) StateLabel() string {
	label := s.getStateIcon() + " " + s.stateName()
	return lipgloss.NewStyle().Foreground(s.getStateColor()).Bold(true).Render(label)
}

func (s *statusDisplay) stateName() string {
	switch {
	case s.fatal != "":
		return "Failed"
	case s.finished:
		return "Finished"
	}
	switch s.state {
	case tts.StatePlaying:
		return "Playing"
	case tts.StatePaused:
		return "Paused"
	default:
		return "Stopped"
	}
}

// CurrentText returns the current segment's text cut to width.
func (s *statusDisplay) CurrentText(width int) string {
	if s.text == "" || width < 4 {
		return ""
	}
	line := strings.Join(strings.Fields(s.text), " ")
	return textStyle.Render(truncate.StringWithTail(line, uint(width), "…")) //nolint:gosec
}

// ErrorLines returns the most recent skipped-segment messages, and the fatal
// error if there is one.
func (s *statusDisplay) ErrorLines(width int) []string {
	var lines []string
	for _, e := range s.errors {
		lines = append(lines, errorStyle.Render("✗ "+truncate.StringWithTail(e, uint(max(width-2, 1)), "…"))) //nolint:gosec
	}
	if s.fatal != "" {
		lines = append(lines, errorStyle.Bold(true).Render("Error: "+s.fatal))
	}
	return lines
}

func (s *statusDisplay) getStateColor() lipgloss.TerminalColor {
	switch {
	case s.fatal != "":
		return errorColor
	case s.finished:
		return stoppedColor
	}
	switch s.state {
	case tts.StatePlaying:
		return playingColor
	case tts.StatePaused:
		return pausedColor
	default:
		return stoppedColor
	}
}

func (s *statusDisplay) getStateIcon() string {
	switch {
	case s.fatal != "":
		return "✗"
	case s.finished:
		return "✓"
	}
	switch s.state {
	case tts.StatePlaying:
		return "▶"
	case tts.StatePaused:
		return "⏸"
	default:
		return "■"
	}
}
