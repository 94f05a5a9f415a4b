package tts

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadConfigFromViper overlays the tts.* keys set in v onto DefaultConfig and
// validates the result.
func LoadConfigFromViper(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()

	if v.IsSet("tts.engine") {
		cfg.Engine = v.GetString("tts.engine")
	}
	if v.IsSet("tts.voice") {
		cfg.Voice = v.GetString("tts.voice")
	}
	if v.IsSet("tts.rate") {
		cfg.Rate = v.GetFloat64("tts.rate")
	}

	// Playback settings
	if v.IsSet("tts.batch_size") {
		cfg.BatchSize = v.GetInt("tts.batch_size")
	}
	if v.IsSet("tts.timeout") {
		cfg.Timeout = v.GetDuration("tts.timeout")
	}
	if v.IsSet("tts.temp_dir") {
		cfg.TempDir = v.GetString("tts.temp_dir")
	}

	// Engine settings
	if v.IsSet("tts.espeak.binary") {
		cfg.Espeak.Binary = v.GetString("tts.espeak.binary")
	}
	if v.IsSet("tts.say.binary") {
		cfg.Say.Binary = v.GetString("tts.say.binary")
	}
	if v.IsSet("tts.sapi.powershell") {
		cfg.SAPI.PowerShell = v.GetString("tts.sapi.powershell")
	}
	cfg.GTTS = loadGTTSConfig(v, cfg.GTTS)
	if v.IsSet("tts.command.template") {
		cfg.Command.Template = v.GetString("tts.command.template")
	}
	if v.IsSet("tts.command.orphans") {
		cfg.Command.Orphans = v.GetStringSlice("tts.command.orphans")
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid tts configuration: %w", err)
	}
	return cfg, nil
}

func loadGTTSConfig(v *viper.Viper, cfg GTTSConfig) GTTSConfig {
	if v.IsSet("tts.gtts.binary") {
		cfg.Binary = v.GetString("tts.gtts.binary")
	}
	if v.IsSet("tts.gtts.player") {
		cfg.Player = v.GetString("tts.gtts.player")
	}
	if v.IsSet("tts.gtts.language") {
		cfg.Language = v.GetString("tts.gtts.language")
	}
	if v.IsSet("tts.gtts.requests_per_minute") {
		cfg.RequestsPerMinute = v.GetInt("tts.gtts.requests_per_minute")
	}
	return cfg
}
