package ui

import "github.com/caarlos0/env/v11"

// Themes accepted by Config.Theme.
const (
	ThemeAuto  = "auto"
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Config contains player configuration. The env tagged fields are read from
// the environment; the rest are filled in by the caller.
type Config struct {
	ProgressWidth int    `env:"READALOUD_UI_PROGRESS_WIDTH" envDefault:"40"`
	MaxErrors     int    `env:"READALOUD_UI_MAX_ERRORS"     envDefault:"3"`
	Theme         string `env:"READALOUD_UI_THEME"          envDefault:"auto"`
	ShowHelp      bool   `env:"READALOUD_UI_SHOW_HELP"`
	AltScreen     bool   `env:"READALOUD_UI_ALT_SCREEN"`

	// Title is shown above the progress bar, usually the source name.
	Title string
	// Voice is shown next to the title when set.
	Voice string
}

// LoadConfig reads the player configuration from the environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, err
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.ProgressWidth < 10 {
		c.ProgressWidth = 40
	}
	if c.MaxErrors < 1 {
		c.MaxErrors = 3
	}
	switch c.Theme {
	case ThemeLight, ThemeDark:
	default:
		c.Theme = ThemeAuto
	}
	return c
}
