package engines

import (
	"bufio"
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/synth"
)

// espeakWPM is espeak-ng's default speed.
const espeakWPM = 175

// Espeak drives eSpeak NG.
type Espeak struct {
	binary string
	rate   float64
}

// NewEspeak creates an eSpeak NG engine.
func NewEspeak(cfg tts.EspeakConfig, rate float64) *Espeak {
	binary := cfg.Binary
	if binary == "" {
		binary = "espeak-ng"
	}
	return &Espeak{binary: binary, rate: rate}
}

func (e *Espeak) Name() string { return tts.EngineEspeak }

// Encode writes the text as UTF-8, which espeak-ng reads by default.
func (e *Espeak) Encode(text string) ([]byte, error) {
	return []byte(text), nil
}

func (e *Espeak) Steps(job synth.Job) ([]synth.Step, error) {
	args := []string{e.binary}
	if job.Voice != "" {
		args = append(args, "-v", job.Voice)
	}
	args = append(args, "-s", strconv.Itoa(wordsPerMinute(espeakWPM, e.rate)), "-f", job.Payload)
	return []synth.Step{{Name: "speak", Args: args}}, nil
}

func (e *Espeak) OrphanPatterns() []string { return nil }

// Voices lists installed voices from `espeak-ng --voices`.
func (e *Espeak) Voices(ctx context.Context) ([]tts.Voice, error) {
	out, err := output(ctx, e.binary, "--voices")
	if err != nil {
		return nil, err
	}
	return parseEspeakVoices(out), nil
}

// parseEspeakVoices reads the table printed by --voices:
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  af              --/M      Afrikaans          gmw/af
func parseEspeakVoices(out []byte) []tts.Voice {
	var voices []tts.Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[0] == "Pty" {
			continue
		}
		voices = append(voices, tts.Voice{
			Name:   fields[3],
			Locale: fields[1],
			Gender: espeakGender(fields[2]),
		})
	}
	return voices
}

func espeakGender(field string) string {
	_, g, _ := strings.Cut(field, "/")
	switch strings.ToUpper(g) {
	case "M":
		return "male"
	case "F":
		return "female"
	default:
		return ""
	}
}
