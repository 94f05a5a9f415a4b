package engines

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/synth"
	"golang.org/x/text/encoding/unicode"
)

const sapiVoicesScript = `Add-Type -AssemblyName System.Speech; ` +
	`$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ` +
	`ConvertTo-Json -Compress -InputObject @($s.GetInstalledVoices() | ForEach-Object { ` +
	`$i = $_.VoiceInfo; [pscustomobject]@{ Name = $i.Name; Culture = $i.Culture.Name; Gender = $i.Gender.ToString() } }); ` +
	`$s.Dispose()`

// SAPI drives the Windows speech synthesizer through PowerShell.
type SAPI struct {
	powershell string
	rate       float64
}

// NewSAPI creates a Windows speech engine.
func NewSAPI(cfg tts.SAPIConfig, rate float64) *SAPI {
	ps := cfg.PowerShell
	if ps == "" {
		ps = "powershell"
	}
	return &SAPI{powershell: ps, rate: rate}
}

func (s *SAPI) Name() string { return tts.EngineSAPI }

// Encode writes UTF-16LE with a byte order mark so that ReadAllText keeps
// non-ASCII text intact regardless of the console code page.
func (s *SAPI) Encode(text string) ([]byte, error) {
	enc := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder()
	out, err := enc.Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode utf-16: %w", err)
	}
	return out, nil
}

func (s *SAPI) Steps(job synth.Job) ([]synth.Step, error) {
	return []synth.Step{{
		Name: "speak",
		Args: []string{s.powershell, "-NoProfile", "-NonInteractive", "-Command", s.script(job)},
	}}, nil
}

func (s *SAPI) script(job synth.Job) string {
	var b strings.Builder
	b.WriteString("Add-Type -AssemblyName System.Speech; ")
	fmt.Fprintf(&b, "$text = [System.IO.File]::ReadAllText(%s, [System.Text.Encoding]::Unicode); ", psQuote(job.Payload))
	b.WriteString("$s = New-Object System.Speech.Synthesis.SpeechSynthesizer; ")
	if job.Voice != "" {
		fmt.Fprintf(&b, "$s.SelectVoice(%s); ", psQuote(job.Voice))
	}
	fmt.Fprintf(&b, "$s.Rate = %d; ", sapiRate(s.rate))
	b.WriteString("$s.Speak($text); $s.Dispose()")
	return b.String()
}

// OrphanPatterns matches speech hosts that outlive a killed PowerShell.
func (s *SAPI) OrphanPatterns() []string {
	return []string{"System.Speech.Synthesis.SpeechSynthesizer"}
}

// Voices lists installed voices.
func (s *SAPI) Voices(ctx context.Context) ([]tts.Voice, error) {
	out, err := output(ctx, s.powershell, "-NoProfile", "-NonInteractive", "-Command", sapiVoicesScript)
	if err != nil {
		return nil, err
	}
	return parseSAPIVoices(out)
}

func parseSAPIVoices(out []byte) ([]tts.Voice, error) {
	out = bytes.TrimPrefix(bytes.TrimSpace(out), []byte("\xef\xbb\xbf"))
	if len(out) == 0 {
		return nil, nil
	}

	var raw []struct {
		Name    string `json:"Name"`
		Culture string `json:"Culture"`
		Gender  string `json:"Gender"`
	}
	if err := json.Unmarshal(out, &raw); err != nil {
		return nil, fmt.Errorf("parse voice list: %w", err)
	}

	voices := make([]tts.Voice, 0, len(raw))
	for _, v := range raw {
		voices = append(voices, tts.Voice{
			Name:   v.Name,
			Locale: v.Culture,
			Gender: strings.ToLower(v.Gender),
		})
	}
	return voices, nil
}

// sapiRate maps a speed multiplier onto the synthesizer's -10..10 scale.
func sapiRate(rate float64) int {
	if rate <= 0 {
		rate = 1
	}
	r := int(math.Round((rate - 1) * 10))
	return max(-10, min(10, r))
}

// psQuote quotes s as a PowerShell single-quoted string.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
