package engines

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/synth"
	"golang.org/x/text/encoding/unicode"
)

var testJob = synth.Job{
	Dir:     "/tmp/readaloud-123",
	Payload: "/tmp/readaloud-123/speech.txt",
}

func TestNew(t *testing.T) {
	tests := []struct {
		engine   string
		expected string
	}{
		{tts.EngineEspeak, tts.EngineEspeak},
		{tts.EngineSay, tts.EngineSay},
		{tts.EngineSAPI, tts.EngineSAPI},
		{tts.EngineGTTS, tts.EngineGTTS},
		{"ESPEAK", tts.EngineEspeak},
	}

	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			cfg := tts.DefaultConfig()
			cfg.Engine = tt.engine
			engine, err := New(cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if engine.Name() != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, engine.Name())
			}
		})
	}
}

func TestNewUnknownEngine(t *testing.T) {
	cfg := tts.DefaultConfig()
	cfg.Engine = "festival"
	if _, err := New(cfg); !errors.Is(err, tts.ErrUnknownEngine) {
		t.Errorf("Expected ErrUnknownEngine, got %v", err)
	}
}

func TestEspeakSteps(t *testing.T) {
	engine := NewEspeak(tts.EspeakConfig{}, 1.2)

	job := testJob
	job.Voice = "en-us"
	steps, err := engine.Steps(job)
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}

	expected := []string{"espeak-ng", "-v", "en-us", "-s", "210", "-f", job.Payload}
	if len(steps) != 1 || !slices.Equal(steps[0].Args, expected) {
		t.Errorf("Expected %q, got %+v", expected, steps)
	}

	steps, _ = engine.Steps(testJob)
	if slices.Contains(steps[0].Args, "-v") {
		t.Errorf("Expected no voice flag without a voice, got %q", steps[0].Args)
	}
}

func TestParseEspeakVoices(t *testing.T) {
	out := []byte(`Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 2  en-us           --/F      English_(America)  gmw/en-US            (en 10)
`)
	voices := parseEspeakVoices(out)
	if len(voices) != 2 {
		t.Fatalf("Expected 2 voices, got %d", len(voices))
	}
	if voices[0].Name != "Afrikaans" || voices[0].Locale != "af" || voices[0].Gender != "male" {
		t.Errorf("Unexpected first voice: %+v", voices[0])
	}
	if voices[1].Gender != "female" {
		t.Errorf("Expected female, got %q", voices[1].Gender)
	}
}

func TestSaySteps(t *testing.T) {
	engine := NewSay(tts.SayConfig{Binary: "/usr/bin/say"}, 0.5)

	steps, err := engine.Steps(testJob)
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}
	expected := []string{"/usr/bin/say", "-r", "100", "-f", testJob.Payload}
	if !slices.Equal(steps[0].Args, expected) {
		t.Errorf("Expected %q, got %q", expected, steps[0].Args)
	}
}

func TestParseSayVoices(t *testing.T) {
	out := []byte(`Alex                en_US    # Most people recognize me by my voice.
Bad News            en_US    # The light you see at the end of the tunnel.
Thomas              fr_FR    # Bonjour, je m'appelle Thomas.
garbage line
`)
	voices := parseSayVoices(out)
	if len(voices) != 3 {
		t.Fatalf("Expected 3 voices, got %d: %+v", len(voices), voices)
	}
	if voices[1].Name != "Bad News" {
		t.Errorf("Expected multi-word name, got %q", voices[1].Name)
	}
	if voices[2].Locale != "fr-FR" {
		t.Errorf("Expected fr-FR, got %q", voices[2].Locale)
	}
}

func TestSAPIEncode(t *testing.T) {
	engine := NewSAPI(tts.SAPIConfig{}, 1)

	payload, err := engine.Encode("héllo")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if len(payload) < 2 || payload[0] != 0xFF || payload[1] != 0xFE {
		t.Fatalf("Expected UTF-16LE byte order mark, got % x", payload[:min(2, len(payload))])
	}

	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(payload)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if string(decoded) != "héllo" {
		t.Errorf("Expected round trip, got %q", decoded)
	}
}

func TestSAPIScript(t *testing.T) {
	engine := NewSAPI(tts.SAPIConfig{}, 1.5)

	job := testJob
	job.Voice = "Microsoft Zira's Desktop"
	steps, err := engine.Steps(job)
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}
	args := steps[0].Args
	if args[0] != "powershell" || args[len(args)-2] != "-Command" {
		t.Fatalf("Unexpected command line: %q", args)
	}

	script := args[len(args)-1]
	for _, want := range []string{
		"'" + job.Payload + "'",
		"SelectVoice('Microsoft Zira''s Desktop')",
		"$s.Rate = 5;",
		"[System.Text.Encoding]::Unicode",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("Expected script to contain %q:\n%s", want, script)
		}
	}
}

func TestSAPIRate(t *testing.T) {
	tests := map[float64]int{0.5: -5, 1: 0, 1.25: 3, 2: 10, 5: 10}
	for in, want := range tests {
		if got := sapiRate(in); got != want {
			t.Errorf("sapiRate(%g): expected %d, got %d", in, want, got)
		}
	}
}

func TestParseSAPIVoices(t *testing.T) {
	out := []byte("\xef\xbb\xbf" + `[{"Name":"Microsoft David Desktop","Culture":"en-US","Gender":"Male"}]` + "\r\n")
	voices, err := parseSAPIVoices(out)
	if err != nil {
		t.Fatalf("parseSAPIVoices failed: %v", err)
	}
	if len(voices) != 1 || voices[0].Name != "Microsoft David Desktop" || voices[0].Gender != "male" {
		t.Errorf("Unexpected voices: %+v", voices)
	}

	if voices, err := parseSAPIVoices(nil); err != nil || voices != nil {
		t.Errorf("Expected empty result, got %+v, %v", voices, err)
	}
}

func TestGTTSSteps(t *testing.T) {
	cfg := tts.DefaultConfig().GTTS
	engine := NewGTTS(cfg, 0.6)

	steps, err := engine.Steps(testJob)
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("Expected fetch and play steps, got %d", len(steps))
	}

	audio := testJob.Path(gttsAudioName)
	fetch := []string{"gtts-cli", "--file", testJob.Payload, "--lang", "en", "--output", audio, "--slow"}
	if !slices.Equal(steps[0].Args, fetch) {
		t.Errorf("Expected %q, got %q", fetch, steps[0].Args)
	}
	play := []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", audio}
	if !slices.Equal(steps[1].Args, play) {
		t.Errorf("Expected %q, got %q", play, steps[1].Args)
	}
}

func TestGTTSVoiceIsLanguage(t *testing.T) {
	cfg := tts.DefaultConfig().GTTS
	cfg.Player = "mpv"
	engine := NewGTTS(cfg, 1)

	job := testJob
	job.Voice = "fr"
	steps, _ := engine.Steps(job)
	if !slices.Contains(steps[0].Args, "fr") || slices.Contains(steps[0].Args, "--slow") {
		t.Errorf("Unexpected fetch args: %q", steps[0].Args)
	}
	if len(steps[1].Args) != 2 || steps[1].Args[0] != "mpv" {
		t.Errorf("Expected plain player invocation, got %q", steps[1].Args)
	}
}

func TestGTTSPrepareHonoursContext(t *testing.T) {
	cfg := tts.DefaultConfig().GTTS
	cfg.RequestsPerMinute = 1
	engine := NewGTTS(cfg, 1)

	if err := engine.Prepare(context.Background()); err != nil {
		t.Fatalf("First request should not wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := engine.Prepare(ctx); err == nil {
		t.Error("Expected an error from a cancelled wait")
	}
}

func TestParseGTTSLanguages(t *testing.T) {
	out := []byte("  af: Afrikaans\n  en: English\n  zh-TW: Chinese (Mandarin/Taiwan)\n")
	voices := parseGTTSLanguages(out)
	if len(voices) != 3 {
		t.Fatalf("Expected 3 languages, got %d", len(voices))
	}
	if voices[2].Name != "zh-TW" {
		t.Errorf("Expected zh-TW, got %q", voices[2].Name)
	}
}

func TestCommandSteps(t *testing.T) {
	engine, err := NewCommand(tts.CommandConfig{
		Template: `speak-it --in {file} --voice "{voice}" --rate {rate} --tmp={dir}`,
		Orphans:  []string{"speak-it"},
	}, 1.5)
	if err != nil {
		t.Fatalf("NewCommand failed: %v", err)
	}

	steps, err := engine.Steps(testJob)
	if err != nil {
		t.Fatalf("Steps failed: %v", err)
	}

	expected := []string{"speak-it", "--in", testJob.Payload, "--voice", "--rate", "1.5", "--tmp=" + testJob.Dir}
	if !slices.Equal(steps[0].Args, expected) {
		t.Errorf("Expected %q, got %q", expected, steps[0].Args)
	}
	if !slices.Equal(engine.OrphanPatterns(), []string{"speak-it"}) {
		t.Errorf("Unexpected orphan patterns: %q", engine.OrphanPatterns())
	}
}

func TestNewCommandInvalid(t *testing.T) {
	for _, template := range []string{"", "   ", `say "unterminated`} {
		if _, err := NewCommand(tts.CommandConfig{Template: template}, 1); !errors.Is(err, tts.ErrInvalidConfig) {
			t.Errorf("Template %q: expected ErrInvalidConfig, got %v", template, err)
		}
	}
}
