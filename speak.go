package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/history"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/ui"
	"github.com/spf13/cobra"
)

var (
	speakCmd = &cobra.Command{
		Use:   "speak SOURCE",
		Short: "Read a file, web page or standard input aloud",
		Long: paragraph(fmt.Sprintf("\n%s a text, markdown, HTML or PDF file, an http(s) URL, or %s for standard input.\nWith %s, reading continues where it was last left off.",
			keyword("Speak"), keyword("-"), keyword("--resume"))),
		Example: paragraph("readaloud speak chapter1.md\nreadaloud speak --resume paper.pdf\nreadaloud speak -v alex https://example.com/post"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSource(cmd, args[0])
		},
	}

	sayCmd = &cobra.Command{
		Use:     "say [TEXT...]",
		Short:   "Say the given text, or the clipboard",
		Example: paragraph("readaloud say Hello there.\nreadaloud say --clipboard"),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if fromClip {
				var err error
				if text, err = reader.Clipboard(); err != nil {
					return err //nolint:wrapcheck
				}
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("%w: nothing to say", tts.ErrEmptyContent)
			}
			return play(cmd.Context(), text, "", "")
		},
	}
)

func init() {
	sayCmd.Flags().BoolVar(&fromClip, "clipboard", false, "say the clipboard contents")
}

// runSource extracts the text of source and speaks it.
func runSource(cmd *cobra.Command, source string) error {
	ctx := cmd.Context()

	// Progress is kept per absolute path so the same file resumes from any
	// directory. Standard input has no history.
	key, title := "", "stdin"
	switch {
	case source == reader.Stdin:
	case reader.IsURL(source):
		key, title = source, source
	default:
		abs, err := filepath.Abs(source)
		if err != nil {
			return fmt.Errorf("unable to resolve %s: %w", source, err)
		}
		key, title = abs, filepath.Base(source)
	}

	text, err := newReader().Extract(ctx, source)
	if err != nil {
		return err //nolint:wrapcheck
	}
	return play(ctx, text, title, key)
}

// play speaks text with the interactive player when there is a terminal, and
// records progress under source when it is set.
func play(ctx context.Context, text, title, source string) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			log.Warn("Shutdown incomplete", "error", err)
		}
	}()
	a.lifecycle.Start()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-a.lifecycle.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	voice, err := a.resolveVoice(ctx)
	if err != nil {
		return err
	}

	start := 0
	if resume && source != "" && a.history != nil {
		entry, err := a.history.Get(ctx, source)
		switch {
		case err == nil:
			start = entry.ResumeIndex()
			log.Info("Resuming", "source", source, "position", start, "total", entry.Total)
		case !errors.Is(err, history.ErrNotFound):
			log.Warn("Could not look up reading position", "source", source, "error", err)
		}
	}

	// Subscribers are in place before the session starts so that none of
	// its notifications are missed.
	if a.history != nil && source != "" {
		msgs, unsubscribe := a.transport.Subscribe(tts.DefaultSubscriberBuffer)
		tracked := make(chan struct{})
		go func() {
			defer close(tracked)
			// Not ctx: the final notifications arrive after it is cancelled.
			a.history.Track(context.Background(), source, msgs)
		}()
		defer func() {
			unsubscribe()
			<-tracked
		}()
	}

	if !interactive() {
		return speakPlain(ctx, a.transport, text, voice, start)
	}
	return speakInteractive(ctx, a.transport, text, voice, start, title)
}

// speakPlain speaks without the player, reporting skipped segments on
// stderr.
func speakPlain(ctx context.Context, transport *tts.Transport, text, voice string, start int) error {
	msgs, unsubscribe := transport.Subscribe(tts.DefaultSubscriberBuffer)
	reported := make(chan struct{})
	go func() {
		defer close(reported)
		for msg := range msgs {
			if e, ok := msg.(tts.ErrorMsg); ok && !e.Fatal {
				fmt.Fprintf(os.Stderr, "segment %d skipped: %s\n", e.Index+1, e.Reason)
			}
		}
	}()

	err := transport.SpeakFrom(ctx, text, voice, start)
	unsubscribe()
	<-reported
	return err //nolint:wrapcheck
}

func speakInteractive(ctx context.Context, transport *tts.Transport, text, voice string, start int, title string) error {
	cfg, err := ui.LoadConfig()
	if err != nil {
		return fmt.Errorf("unable to read player settings: %w", err)
	}
	cfg.Title = title
	cfg.Voice = voice
	if os.Getenv("READALOUD_UI_THEME") == "" && savedSettings.Theme != "" {
		cfg.Theme = savedSettings.Theme
	}

	events, unsubscribe := transport.Subscribe(tts.DefaultSubscriberBuffer)
	defer unsubscribe()

	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.SpeakFrom(ctx, text, voice, start)
	}()

	p := ui.NewProgram(cfg, transport, events)
	go func() {
		<-ctx.Done()
		p.Send(tea.Quit())
	}()
	if _, err := p.Run(); err != nil {
		transport.Stop()
		<-errCh
		return fmt.Errorf("unable to run player: %w", err)
	}

	// Quitting the player ends the session.
	transport.Stop()
	return <-errCh
}
