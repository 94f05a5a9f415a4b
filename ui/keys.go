package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Toggle  key.Binding
	Forward key.Binding
	Rewind  key.Binding
	Replay  key.Binding
	Stop    key.Binding
	Quit    key.Binding
	Help    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp("space/p", "pause/resume"),
		),
		Forward: key.NewBinding(
			key.WithKeys("right", "l", "f"),
			key.WithHelp("→/l/f", "forward"),
		),
		Rewind: key.NewBinding(
			key.WithKeys("left", "h", "b"),
			key.WithHelp("←/h/b", "rewind"),
		),
		Replay: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "replay"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Forward, k.Rewind, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.Replay, k.Stop},
		{k.Forward, k.Rewind},
		{k.Quit, k.Help},
	}
}
