package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
)

const defaultConfig = `# Speech engine: auto, espeak, say, sapi, gtts or command.
# auto picks SAPI on Windows, say on macOS and eSpeak NG elsewhere.
tts:
  engine: "auto"
  # Voice name; partial names are matched. Empty uses the engine default.
  voice: ""
  # Speaking rate, from 0.5 to 2.0.
  rate: 1.0
  # Segments spoken per engine call.
  batch_size: 3
  # Longest a single engine call may run.
  timeout: "60s"
  # temp_dir: "/tmp"

  espeak:
    binary: "espeak-ng"
  say:
    binary: "say"
  sapi:
    powershell: "powershell"
  gtts:
    binary: "gtts-cli"
    player: "ffplay"
    language: "en"
    requests_per_minute: 30
  # A custom engine. {text} is the payload file, {voice} and {rate} the
  # current settings.
  command:
    # template: "piper --model en_US-lessac-medium --input_file {text} --output_raw | aplay -r 22050 -f S16_LE -t raw -"
    # orphans: ["piper", "aplay"]

# Browser and editor bridge.
serve:
  addr: "127.0.0.1:7457"

# Remember where each file or page was left off.
history:
  enabled: true

# Deadline for fetching web pages.
web:
  timeout: "20s"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the readaloud config file",
	Long:    paragraph(fmt.Sprintf("\n%s the readaloud config file with $EDITOR. A commented default file is written first if none exists.", keyword("Edit"))),
	Example: paragraph("readaloud config\nreadaloud config --config path/to/readaloud.yml"),
	Args:    cobra.NoArgs,
	// The file may not exist yet.
	PersistentPreRunE: func(*cobra.Command, []string) error {
		applyLogLevel()
		return nil
	},
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("readaloud", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Config file:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = defaultConfigFile
	}
	if configFile == "" {
		return errors.New("no configuration file location")
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable to create config directory: %w", err)
		}
		if err := os.WriteFile(configFile, []byte(defaultConfig), 0o600); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil {
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
