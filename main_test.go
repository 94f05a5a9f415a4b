package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgnsrekt/readaloud/internal/history"
	"gopkg.in/yaml.v3"
)

func TestEnsureConfigFile(t *testing.T) {
	saved := configFile
	t.Cleanup(func() { configFile = saved })

	configFile = filepath.Join(t.TempDir(), "nested", "readaloud.yml")
	if err := ensureConfigFile(); err != nil {
		t.Fatalf("ensureConfigFile failed: %v", err)
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		t.Fatalf("Expected the config file to be written: %v", err)
	}
	var parsed struct {
		TTS struct {
			Engine string  `yaml:"engine"`
			Rate   float64 `yaml:"rate"`
		} `yaml:"tts"`
		Serve struct {
			Addr string `yaml:"addr"`
		} `yaml:"serve"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("Expected the default config to be valid YAML: %v", err)
	}
	if parsed.TTS.Engine != "auto" || parsed.TTS.Rate != 1.0 {
		t.Errorf("Expected engine auto at rate 1.0, got %q at %v", parsed.TTS.Engine, parsed.TTS.Rate)
	}
	if parsed.Serve.Addr != "127.0.0.1:7457" {
		t.Errorf("Expected the default bridge address, got %q", parsed.Serve.Addr)
	}

	// An existing file is left alone.
	if err := os.WriteFile(configFile, []byte("tts:\n  engine: say\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := ensureConfigFile(); err != nil {
		t.Fatalf("ensureConfigFile failed: %v", err)
	}
	if data, _ := os.ReadFile(configFile); !strings.Contains(string(data), "say") {
		t.Error("Expected the existing config file to be kept")
	}
}

func TestEnsureConfigFileExtension(t *testing.T) {
	saved := configFile
	t.Cleanup(func() { configFile = saved })

	configFile = filepath.Join(t.TempDir(), "readaloud.toml")
	if err := ensureConfigFile(); err == nil {
		t.Error("Expected an error for a .toml config file")
	}
}

func TestRemoteCommands(t *testing.T) {
	cmds := remoteCmds()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}
	for _, want := range []string{"pause", "resume", "stop", "replay", "forward", "rewind"} {
		if !names[want] {
			t.Errorf("Expected a %s command", want)
		}
	}

	for _, c := range cmds {
		if c.Name() != "forward" {
			continue
		}
		testCases := []struct {
			args    []string
			wantErr bool
		}{
			{nil, false},
			{[]string{"3"}, false},
			{[]string{"1", "2"}, true},
		}
		for _, tc := range testCases {
			err := c.Args(c, tc.args)
			if (err != nil) != tc.wantErr {
				t.Errorf("Args(%v): expected error %v, got %v", tc.args, tc.wantErr, err)
			}
		}
	}
}

func TestProgressLabel(t *testing.T) {
	testCases := []struct {
		entry    history.Entry
		expected string
	}{
		{history.Entry{Position: 0, Total: 10}, "1/10"},
		{history.Entry{Position: 4, Total: 10}, "5/10"},
		{history.Entry{Position: 10, Total: 10}, "finished"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.expected, func(t *testing.T) {
			if got := progressLabel(testCase.entry); got != testCase.expected {
				t.Errorf("Expected %s, got %s", testCase.expected, got)
			}
		})
	}
}

func TestStatusLine(t *testing.T) {
	line := statusLine("playing", 2, 5, "Third sentence.")
	for _, want := range []string{"playing", "3/5", "Third sentence."} {
		if !strings.Contains(line, want) {
			t.Errorf("Expected %q in %q", want, line)
		}
	}
	if line := statusLine("stopped", 0, 0, ""); strings.Contains(line, "/") {
		t.Errorf("Expected no counter without a session, got %q", line)
	}
}

func TestDash(t *testing.T) {
	if dash("  ") != "-" || dash("en-US") != "en-US" {
		t.Error("Expected blank cells to show a dash")
	}
}
