package ui

import (
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dgnsrekt/readaloud/tts"
)

// fakePlayer records transport calls.
type fakePlayer struct {
	mu     sync.Mutex
	calls  []string
	paused bool
}

func (p *fakePlayer) record(call string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return true
}

func (p *fakePlayer) Pause() bool {
	p.paused = true
	return p.record("pause")
}

func (p *fakePlayer) Resume() bool {
	p.paused = false
	return p.record("resume")
}

func (p *fakePlayer) Stop() bool         { return p.record("stop") }
func (p *fakePlayer) Forward(n int) bool { return p.record("forward") }
func (p *fakePlayer) Rewind(n int) bool  { return p.record("rewind") }
func (p *fakePlayer) Replay() bool       { return p.record("replay") }
func (p *fakePlayer) IsPaused() bool     { return p.paused }

func (p *fakePlayer) last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.calls) == 0 {
		return ""
	}
	return p.calls[len(p.calls)-1]
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// TestPlayerKeys tests that each key drives the matching transport action.
func TestPlayerKeys(t *testing.T) {
	testCases := []struct {
		key      tea.KeyMsg
		expected string
	}{
		{tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, "pause"},
		{runes("p"), "pause"},
		{tea.KeyMsg{Type: tea.KeyRight}, "forward"},
		{runes("l"), "forward"},
		{runes("f"), "forward"},
		{tea.KeyMsg{Type: tea.KeyLeft}, "rewind"},
		{runes("h"), "rewind"},
		{runes("b"), "rewind"},
		{runes("r"), "replay"},
		{runes("s"), "stop"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.key.String(), func(t *testing.T) {
			player := &fakePlayer{}
			m := newModel(Config{}, player, make(chan tea.Msg))

			_, cmd := m.Update(testCase.key)
			if cmd == nil {
				t.Fatalf("Expected a command for key %q", testCase.key.String())
			}
			msg, ok := cmd().(actionMsg)
			if !ok || !msg.ok {
				t.Errorf("Expected a successful action, got %#v", msg)
			}
			if player.last() != testCase.expected {
				t.Errorf("Expected %s, got %q", testCase.expected, player.last())
			}
		})
	}
}

// TestPlayerToggle tests that the toggle key alternates pause and resume.
func TestPlayerToggle(t *testing.T) {
	player := &fakePlayer{}
	m := newModel(Config{}, player, make(chan tea.Msg))

	for _, expected := range []string{"pause", "resume", "pause"} {
		_, cmd := m.Update(runes("p"))
		if msg := cmd().(actionMsg); msg.action != expected {
			t.Errorf("Expected %s, got %s", expected, msg.action)
		}
	}
}

// TestPlayerQuit tests that quitting stops playback.
func TestPlayerQuit(t *testing.T) {
	for _, k := range []tea.KeyMsg{runes("q"), {Type: tea.KeyCtrlC}} {
		player := &fakePlayer{}
		m := newModel(Config{}, player, make(chan tea.Msg))

		next, cmd := m.Update(k)
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("Expected %q to quit", k.String())
		}
		if player.last() != "stop" {
			t.Errorf("Expected %q to stop playback, got %q", k.String(), player.last())
		}
		if next.View() != "" {
			t.Error("Expected an empty view after quitting")
		}
	}
}

// TestPlayerHelp tests toggling the full help.
func TestPlayerHelp(t *testing.T) {
	m := newModel(Config{}, &fakePlayer{}, make(chan tea.Msg))

	if strings.Contains(m.View(), "replay") {
		t.Error("Expected short help by default")
	}
	next, _ := m.Update(runes("?"))
	if !strings.Contains(next.View(), "replay") {
		t.Error("Expected full help after ?")
	}
}

// TestPlayerEvents tests that notifications update the view and end the
// program when the session does.
func TestPlayerEvents(t *testing.T) {
	events := make(chan tea.Msg, 4)
	m := newModel(Config{Title: "notes.md"}, &fakePlayer{}, events)

	next, cmd := m.Update(tts.StateChangedMsg{
		State:     tts.StatePlaying,
		PrevState: tts.StateStopped,
		Index:     0,
		Total:     2,
		Text:      "Hello there.",
	})
	if cmd == nil {
		t.Fatal("Expected to keep listening for events")
	}
	events <- tts.ErrorMsg{Index: 0, Reason: "speech synthesis failed"}
	if _, ok := cmd().(tts.ErrorMsg); !ok {
		t.Error("Expected the next event to be delivered")
	}

	view := next.View()
	for _, want := range []string{"notes.md", "Segment 1/2", "Hello there.", "Playing"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q:\n%s", want, view)
		}
	}

	next, _ = next.Update(tts.ErrorMsg{Index: 0, Reason: "speech synthesis failed"})
	if !strings.Contains(next.View(), "Segment 1 skipped") {
		t.Errorf("Expected the skipped segment in the view:\n%s", next.View())
	}

	_, cmd = next.Update(tts.FinishedMsg{Total: 2})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected the program to quit when the session finishes")
	}
}

// TestPlayerStoppedElsewhere tests quitting when the session is stopped by
// another client.
func TestPlayerStoppedElsewhere(t *testing.T) {
	player := &fakePlayer{}
	m := newModel(Config{}, player, make(chan tea.Msg))

	next, cmd := m.Update(tts.StateChangedMsg{State: tts.StateStopped, PrevState: tts.StatePaused})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected the program to quit")
	}

	// Keys do nothing once the session is over.
	if _, cmd := next.Update(runes("f")); cmd != nil {
		t.Error("Expected no command after the session ended")
	}
	if len(player.calls) != 0 {
		t.Errorf("Expected no transport calls, got %v", player.calls)
	}
}

// TestPlayerEventsClosed tests quitting when the event channel closes.
func TestPlayerEventsClosed(t *testing.T) {
	events := make(chan tea.Msg)
	close(events)
	m := newModel(Config{}, &fakePlayer{}, events)

	msg := waitForEvent(m.events)()
	if _, ok := msg.(eventsClosedMsg); !ok {
		t.Fatalf("Expected eventsClosedMsg, got %T", msg)
	}
	if _, cmd := m.Update(msg); cmd == nil {
		t.Error("Expected the program to quit")
	}
}

// TestLoadConfig tests reading player settings from the environment.
func TestLoadConfig(t *testing.T) {
	t.Setenv("READALOUD_UI_PROGRESS_WIDTH", "60")
	t.Setenv("READALOUD_UI_THEME", "neon")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.ProgressWidth != 60 {
		t.Errorf("Expected width 60, got %d", cfg.ProgressWidth)
	}
	if cfg.MaxErrors != 3 {
		t.Errorf("Expected 3 errors by default, got %d", cfg.MaxErrors)
	}
	if cfg.Theme != ThemeAuto {
		t.Errorf("Expected an unknown theme to fall back to auto, got %q", cfg.Theme)
	}
}
