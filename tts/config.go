package tts

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Engine names accepted by Config.Engine.
const (
	EngineAuto    = "auto"
	EngineEspeak  = "espeak"
	EngineSay     = "say"
	EngineSAPI    = "sapi"
	EngineGTTS    = "gtts"
	EngineCommand = "command"
)

// KnownEngine reports whether name is an engine Config.Engine accepts.
func KnownEngine(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case EngineAuto, EngineEspeak, EngineSay, EngineSAPI, EngineGTTS, EngineCommand:
		return true
	}
	return false
}

// Config contains all speech configuration options.
type Config struct {
	Engine string  `yaml:"engine" env:"READALOUD_TTS_ENGINE" envDefault:"auto"`
	Voice  string  `yaml:"voice" env:"READALOUD_TTS_VOICE"`
	Rate   float64 `yaml:"rate" env:"READALOUD_TTS_RATE" envDefault:"1.0"`

	// Playback settings
	BatchSize int           `yaml:"batch_size" env:"READALOUD_TTS_BATCH_SIZE" envDefault:"3"`
	Timeout   time.Duration `yaml:"timeout" env:"READALOUD_TTS_TIMEOUT" envDefault:"60s"`
	TempDir   string        `yaml:"temp_dir" env:"READALOUD_TTS_TEMP_DIR"`

	// Engine-specific configurations
	Espeak  EspeakConfig  `yaml:"espeak"`
	Say     SayConfig     `yaml:"say"`
	SAPI    SAPIConfig    `yaml:"sapi"`
	GTTS    GTTSConfig    `yaml:"gtts"`
	Command CommandConfig `yaml:"command"`
}

// EspeakConfig contains eSpeak NG engine settings.
type EspeakConfig struct {
	Binary string `yaml:"binary" env:"READALOUD_TTS_ESPEAK_BINARY" envDefault:"espeak-ng"`
}

// SayConfig contains macOS say engine settings.
type SayConfig struct {
	Binary string `yaml:"binary" env:"READALOUD_TTS_SAY_BINARY" envDefault:"say"`
}

// SAPIConfig contains Windows speech engine settings.
type SAPIConfig struct {
	PowerShell string `yaml:"powershell" env:"READALOUD_TTS_SAPI_POWERSHELL" envDefault:"powershell"`
}

// GTTSConfig contains Google Translate TTS engine settings.
type GTTSConfig struct {
	Binary            string `yaml:"binary" env:"READALOUD_TTS_GTTS_BINARY" envDefault:"gtts-cli"`
	Player            string `yaml:"player" env:"READALOUD_TTS_GTTS_PLAYER" envDefault:"ffplay"`
	Language          string `yaml:"language" env:"READALOUD_TTS_GTTS_LANGUAGE" envDefault:"en"`
	RequestsPerMinute int    `yaml:"requests_per_minute" env:"READALOUD_TTS_GTTS_RPM" envDefault:"30"`
}

// CommandConfig contains settings for a user-defined engine command.
type CommandConfig struct {
	Template string   `yaml:"template" env:"READALOUD_TTS_COMMAND_TEMPLATE"`
	Orphans  []string `yaml:"orphans" env:"READALOUD_TTS_COMMAND_ORPHANS"`
}

// DefaultConfig returns the default speech configuration.
func DefaultConfig() Config {
	return Config{
		Engine:    EngineAuto,
		Rate:      1.0,
		BatchSize: 3,
		Timeout:   60 * time.Second,
		Espeak:    EspeakConfig{Binary: "espeak-ng"},
		Say:       SayConfig{Binary: "say"},
		SAPI:      SAPIConfig{PowerShell: "powershell"},
		GTTS: GTTSConfig{
			Binary:            "gtts-cli",
			Player:            "ffplay",
			Language:          "en",
			RequestsPerMinute: 30,
		},
	}
}

// ResolvedEngine returns the configured engine, with auto mapped to the
// platform engine.
func (c Config) ResolvedEngine() string {
	engine := strings.ToLower(strings.TrimSpace(c.Engine))
	if engine != "" && engine != EngineAuto {
		return engine
	}
	switch runtime.GOOS {
	case "windows":
		return EngineSAPI
	case "darwin":
		return EngineSay
	default:
		return EngineEspeak
	}
}

// Validate checks the configuration for errors.
func (c Config) Validate() error {
	switch c.ResolvedEngine() {
	case EngineEspeak:
		if c.Espeak.Binary == "" {
			return fmt.Errorf("%w: espeak binary is required", ErrInvalidConfig)
		}
	case EngineSay:
		if c.Say.Binary == "" {
			return fmt.Errorf("%w: say binary is required", ErrInvalidConfig)
		}
	case EngineSAPI:
		if c.SAPI.PowerShell == "" {
			return fmt.Errorf("%w: powershell binary is required", ErrInvalidConfig)
		}
	case EngineGTTS:
		if c.GTTS.Binary == "" || c.GTTS.Player == "" {
			return fmt.Errorf("%w: gtts binary and player are required", ErrInvalidConfig)
		}
		if c.GTTS.RequestsPerMinute < 1 {
			return fmt.Errorf("%w: gtts requests_per_minute must be positive", ErrInvalidConfig)
		}
	case EngineCommand:
		if strings.TrimSpace(c.Command.Template) == "" {
			return fmt.Errorf("%w: command template is required", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEngine, c.Engine)
	}

	if c.Rate < 0.5 || c.Rate > 2.0 {
		return fmt.Errorf("%w: rate must be between 0.5 and 2.0, got %g", ErrInvalidConfig, c.Rate)
	}
	if c.BatchSize < 1 || c.BatchSize > 10 {
		return fmt.Errorf("%w: batch_size must be between 1 and 10, got %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1s, got %s", ErrInvalidConfig, c.Timeout)
	}
	return nil
}
