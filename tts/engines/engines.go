// Package engines provides the speech engines readaloud can drive.
package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os/exec"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/synth"
)

// New creates the engine selected by cfg.
func New(cfg tts.Config) (synth.Engine, error) {
	switch cfg.ResolvedEngine() {
	case tts.EngineEspeak:
		return NewEspeak(cfg.Espeak, cfg.Rate), nil
	case tts.EngineSay:
		return NewSay(cfg.Say, cfg.Rate), nil
	case tts.EngineSAPI:
		return NewSAPI(cfg.SAPI, cfg.Rate), nil
	case tts.EngineGTTS:
		return NewGTTS(cfg.GTTS, cfg.Rate), nil
	case tts.EngineCommand:
		return NewCommand(cfg.Command, cfg.Rate)
	default:
		return nil, fmt.Errorf("%w: %q", tts.ErrUnknownEngine, cfg.Engine)
	}
}

// Names returns the engine names New accepts, without auto.
func Names() []string {
	return []string{tts.EngineEspeak, tts.EngineSay, tts.EngineSAPI, tts.EngineGTTS, tts.EngineCommand}
}

// wordsPerMinute scales an engine's normal speaking speed by rate.
func wordsPerMinute(base int, rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	return int(math.Round(float64(base) * rate))
}

// output runs a short-lived query command, such as a voice listing, and
// returns its standard output.
func output(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s: %w", tts.ErrEngineUnavailable, args[0], err)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s: %w: %s", args[0], err, msg)
		}
		return nil, fmt.Errorf("%s: %w", args[0], err)
	}
	return out, nil
}
