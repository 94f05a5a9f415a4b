// Package ui is the interactive terminal player.
package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/tts"
)

// Player is the transport the model drives. *tts.Transport implements it.
type Player interface {
	Pause() bool
	Resume() bool
	Stop() bool
	Forward(n int) bool
	Rewind(n int) bool
	Replay() bool
	IsPaused() bool
}

// NewProgram returns a new Tea program for a session whose notifications
// arrive on events.
func NewProgram(cfg Config, player Player, events <-chan tea.Msg) *tea.Program {
	log.Debug("Starting player", "title", cfg.Title)

	switch cfg.Theme {
	case ThemeLight:
		lipgloss.SetHasDarkBackground(false)
	case ThemeDark:
		lipgloss.SetHasDarkBackground(true)
	}

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	return tea.NewProgram(newModel(cfg, player, events), opts...)
}

// eventsClosedMsg is sent when the notification channel closes.
type eventsClosedMsg struct{}

// actionMsg reports the result of a transport action run as a command.
type actionMsg struct {
	action string
	ok     bool
}

type model struct {
	cfg    Config
	player Player
	events <-chan tea.Msg

	keys     keyMap
	help     help.Model
	progress progress.Model
	spinner  spinner.Model
	status   *statusDisplay

	width    int
	done     bool
	quitting bool
}

func newModel(cfg Config, player Player, events <-chan tea.Msg) model {
	cfg = cfg.withDefaults()

	h := help.New()
	h.ShowAll = cfg.ShowHelp

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(playingColor)

	return model{
		cfg:      cfg,
		player:   player,
		events:   events,
		keys:     newKeyMap(),
		help:     h,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(cfg.ProgressWidth)),
		spinner:  sp,
		status:   newStatusDisplay(cfg.MaxErrors),
		width:    80,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), m.spinner.Tick)
}

// waitForEvent delivers the next notification as a message.
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return msg
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.progress.Width = min(m.cfg.ProgressWidth, max(msg.Width-8, 10))
		return m, nil

	case tts.StateChangedMsg:
		m.status.Update(msg)
		// A session that went from active to stopped without finishing was
		// stopped from elsewhere.
		if msg.State == tts.StateStopped && msg.PrevState != tts.StateStopped {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case tts.ErrorMsg:
		m.status.Update(msg)
		if msg.Fatal {
			m.done = true
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case tts.FinishedMsg:
		m.status.Update(msg)
		m.done = true
		return m, tea.Quit

	case eventsClosedMsg:
		m.done = true
		return m, tea.Quit

	case actionMsg:
		if !msg.ok {
			log.Debug("Action ignored", "action", msg.action)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		player := m.player
		return m, func() tea.Msg {
			player.Stop()
			return tea.QuitMsg{}
		}

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case m.done:
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		player := m.player
		return m, func() tea.Msg {
			if player.IsPaused() {
				return actionMsg{"resume", player.Resume()}
			}
			return actionMsg{"pause", player.Pause()}
		}

	case key.Matches(msg, m.keys.Forward):
		return m, m.action("forward", func(p Player) bool { return p.Forward(1) })

	case key.Matches(msg, m.keys.Rewind):
		return m, m.action("rewind", func(p Player) bool { return p.Rewind(1) })

	case key.Matches(msg, m.keys.Replay):
		return m, m.action("replay", Player.Replay)

	case key.Matches(msg, m.keys.Stop):
		return m, m.action("stop", Player.Stop)
	}

	return m, nil
}

// action runs fn off the update loop; Pause and Stop wait for the engine.
func (m model) action(name string, fn func(Player) bool) tea.Cmd {
	player := m.player
	return func() tea.Msg {
		return actionMsg{name, fn(player)}
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := titleStyle.Render("readaloud")
	if m.cfg.Title != "" {
		title += dimStyle.Render(" · " + m.cfg.Title)
	}
	if m.cfg.Voice != "" {
		title += dimStyle.Render(" · " + m.cfg.Voice)
	}
	b.WriteString(title + "\n\n")

	b.WriteString(m.progress.ViewAs(m.status.Progress()) + "\n")

	line := m.status.StateLabel()
	if counter := m.status.Counter(); counter != "" {
		line += "  " + dimStyle.Render(counter)
	}
	if m.status.inFlight && m.status.state == tts.StatePlaying {
		line += "  " + m.spinner.View()
	}
	b.WriteString(line + "\n")

	if text := m.status.CurrentText(m.width - 2); text != "" {
		b.WriteString("\n" + text + "\n")
	}

	if lines := m.status.ErrorLines(m.width); len(lines) > 0 {
		b.WriteString("\n" + strings.Join(lines, "\n") + "\n")
	}

	if !m.done {
		b.WriteString("\n" + m.help.View(m.keys) + "\n")
	}
	return b.String()
}

