package engines

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/synth"
	"github.com/mattn/go-shellwords"
)

// Placeholders substituted in a command template.
const (
	PlaceholderFile  = "{file}"
	PlaceholderVoice = "{voice}"
	PlaceholderDir   = "{dir}"
	PlaceholderRate  = "{rate}"
)

// Command runs a user-supplied command line for each call, such as
//
//	festival --tts {file}
//
// The template is split like a shell would, but no shell runs it.
type Command struct {
	args    []string
	rate    float64
	orphans []string
}

// NewCommand parses cfg.Template into an engine.
func NewCommand(cfg tts.CommandConfig, rate float64) (*Command, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("%w: parse command template: %w", tts.ErrInvalidConfig, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: command template empty", tts.ErrInvalidConfig)
	}
	if rate <= 0 {
		rate = 1
	}
	return &Command{args: args, rate: rate, orphans: cfg.Orphans}, nil
}

func (c *Command) Name() string { return tts.EngineCommand }

func (c *Command) Encode(text string) ([]byte, error) {
	return []byte(text), nil
}

// Steps substitutes the placeholders in each template argument. Arguments
// that end up empty, such as a lone {voice} with no voice set, are dropped.
func (c *Command) Steps(job synth.Job) ([]synth.Step, error) {
	replacer := strings.NewReplacer(
		PlaceholderFile, job.Payload,
		PlaceholderVoice, job.Voice,
		PlaceholderDir, job.Dir,
		PlaceholderRate, strconv.FormatFloat(c.rate, 'f', -1, 64),
	)

	args := make([]string, 0, len(c.args))
	for _, arg := range c.args {
		if arg = replacer.Replace(arg); arg != "" {
			args = append(args, arg)
		}
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("command template expands to nothing")
	}
	return []synth.Step{{Name: "command", Args: args}}, nil
}

// OrphanPatterns returns the configured patterns.
func (c *Command) OrphanPatterns() []string {
	return c.orphans
}
