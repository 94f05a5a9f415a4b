package engines

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/synth"
	"golang.org/x/time/rate"
)

// slowBelow is the rate under which gTTS is asked for slow speech. gTTS has
// no finer speed control.
const slowBelow = 0.75

const gttsAudioName = "speech.mp3"

// GTTS fetches speech from Google Translate with gtts-cli and plays the
// result with a command line player.
type GTTS struct {
	binary   string
	player   string
	language string
	slow     bool

	// Requests are rate limited to avoid being blocked by Google.
	limiter *rate.Limiter
}

// NewGTTS creates a gTTS engine.
func NewGTTS(cfg tts.GTTSConfig, speed float64) *GTTS {
	if cfg.Binary == "" {
		cfg.Binary = "gtts-cli"
	}
	if cfg.Player == "" {
		cfg.Player = "ffplay"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 30
	}

	return &GTTS{
		binary:   cfg.Binary,
		player:   cfg.Player,
		language: cfg.Language,
		slow:     speed > 0 && speed < slowBelow,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
	}
}

func (g *GTTS) Name() string { return tts.EngineGTTS }

func (g *GTTS) Encode(text string) ([]byte, error) {
	return []byte(text), nil
}

// Prepare waits for the rate limiter.
func (g *GTTS) Prepare(ctx context.Context) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Steps fetches the audio to the call's directory, then plays it. The voice,
// when set, is a gTTS language code.
func (g *GTTS) Steps(job synth.Job) ([]synth.Step, error) {
	lang := g.language
	if job.Voice != "" {
		lang = job.Voice
	}
	audio := job.Path(gttsAudioName)

	fetch := []string{g.binary, "--file", job.Payload, "--lang", lang, "--output", audio}
	if g.slow {
		fetch = append(fetch, "--slow")
	}

	return []synth.Step{
		{Name: "fetch", Args: fetch},
		{Name: "play", Args: g.playArgs(audio)},
	}, nil
}

func (g *GTTS) playArgs(audio string) []string {
	if strings.TrimSuffix(filepath.Base(g.player), ".exe") == "ffplay" {
		return []string{g.player, "-nodisp", "-autoexit", "-loglevel", "quiet", audio}
	}
	return []string{g.player, audio}
}

func (g *GTTS) OrphanPatterns() []string { return nil }

// Voices lists the languages gTTS supports. Each language is offered as a
// voice.
func (g *GTTS) Voices(ctx context.Context) ([]tts.Voice, error) {
	out, err := output(ctx, g.binary, "--all")
	if err != nil {
		return nil, err
	}
	return parseGTTSLanguages(out), nil
}

// parseGTTSLanguages reads lines like "  en: English".
func parseGTTSLanguages(out []byte) []tts.Voice {
	var voices []tts.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		code, name, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok || code == "" || strings.ContainsAny(code, " \t") {
			continue
		}
		voices = append(voices, tts.Voice{
			Name:   code,
			Locale: strings.TrimSpace(name),
		})
	}
	return voices
}
