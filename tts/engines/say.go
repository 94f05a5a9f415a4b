package engines

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/synth"
)

const sayWPM = 200

// sayVoiceRegex matches lines of `say -v ?` such as
// "Samantha            en_US    # Hello, my name is Samantha."
var sayVoiceRegex = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// Say drives the macOS say command.
type Say struct {
	binary string
	rate   float64
}

// NewSay creates a say engine.
func NewSay(cfg tts.SayConfig, rate float64) *Say {
	binary := cfg.Binary
	if binary == "" {
		binary = "say"
	}
	return &Say{binary: binary, rate: rate}
}

func (s *Say) Name() string { return tts.EngineSay }

func (s *Say) Encode(text string) ([]byte, error) {
	return []byte(text), nil
}

func (s *Say) Steps(job synth.Job) ([]synth.Step, error) {
	args := []string{s.binary}
	if job.Voice != "" {
		args = append(args, "-v", job.Voice)
	}
	args = append(args, "-r", strconv.Itoa(wordsPerMinute(sayWPM, s.rate)), "-f", job.Payload)
	return []synth.Step{{Name: "speak", Args: args}}, nil
}

func (s *Say) OrphanPatterns() []string { return nil }

// Voices lists installed voices from `say -v ?`.
func (s *Say) Voices(ctx context.Context) ([]tts.Voice, error) {
	out, err := output(ctx, s.binary, "-v", "?")
	if err != nil {
		return nil, err
	}
	return parseSayVoices(out), nil
}

func parseSayVoices(out []byte) []tts.Voice {
	var voices []tts.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := sayVoiceRegex.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		voices = append(voices, tts.Voice{
			Name:   strings.TrimSpace(m[1]),
			Locale: strings.ReplaceAll(m[2], "_", "-"),
		})
	}
	return voices
}
