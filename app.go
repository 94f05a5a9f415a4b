package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/history"
	"github.com/dgnsrekt/readaloud/internal/lifecycle"
	"github.com/dgnsrekt/readaloud/internal/reader"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines"
	"github.com/dgnsrekt/readaloud/tts/sentence"
	"github.com/dgnsrekt/readaloud/tts/synth"
	"github.com/spf13/viper"
)

// app wires the speech stack for one command.
type app struct {
	cfg       tts.Config
	adapter   *synth.Adapter
	transport *tts.Transport
	lifecycle *lifecycle.Manager
	history   *history.Store // nil when history is disabled or unavailable
}

// newApp builds the engine, adapter, controller and transport from the
// current configuration and registers them for shutdown.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := tts.LoadConfigFromViper(viper.GetViper())
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	engine, err := engines.New(cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	log.Debug("Using speech engine", "engine", engine.Name(), "rate", cfg.Rate)

	manager := lifecycle.NewManager(log.Default().WithPrefix("lifecycle"))
	registry := lifecycle.NewProcessRegistry(log.Default().WithPrefix("processes"))

	adapter := synth.New(engine, synth.Config{
		Timeout:  cfg.Timeout,
		TempDir:  cfg.TempDir,
		Registry: registry,
		Logger:   log.Default().WithPrefix(engine.Name()),
	})
	controller := tts.NewController(adapter, sentence.NewParser(), tts.ControllerConfig{
		BatchSize:    cfg.BatchSize,
		SweepTimeout: 5 * time.Second,
		Logger:       log.Default().WithPrefix("controller"),
	})

	// Shutdown runs newest first: controller, engine, then stray processes.
	manager.Register(registry)
	manager.Register(lifecycle.NewEngine(adapter, engine.Name()))
	manager.Register(controller)

	a := &app{
		cfg:       cfg,
		adapter:   adapter,
		transport: tts.NewTransport(controller),
		lifecycle: manager,
	}

	if viper.GetBool("history.enabled") {
		dir, err := dataDir()
		if err == nil {
			a.history, err = history.Open(ctx, filepath.Join(dir, history.FileName), log.Default().WithPrefix("history"))
		}
		if err != nil {
			// Reading works without history.
			log.Warn("History unavailable", "error", err)
			a.history = nil
		}
	}
	return a, nil
}

// newReader returns a reader honoring web.timeout.
func newReader() *reader.Reader {
	return reader.New(reader.Options{
		Timeout:   viper.GetDuration("web.timeout"),
		UserAgent: appName + "/" + Version,
		Logger:    log.Default().WithPrefix("reader"),
	})
}

// resolveVoice maps the configured voice onto one the engine offers. Engines
// that cannot list voices get the name as given.
func (a *app) resolveVoice(ctx context.Context) (string, error) {
	if a.cfg.Voice == "" {
		return "", nil
	}
	voices, err := a.adapter.Voices(ctx)
	if err != nil || len(voices) == 0 {
		if err != nil {
			log.Debug("Voice listing unavailable", "error", err)
		}
		return a.cfg.Voice, nil
	}
	v, err := tts.ResolveVoice(a.cfg.Voice, voices)
	if err != nil {
		return "", err //nolint:wrapcheck
	}
	return v.Name, nil
}

// close shuts the speech stack down and closes the history store.
func (a *app) close() error {
	err := a.lifecycle.Shutdown()
	if a.history != nil {
		if cerr := a.history.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close history: %w", cerr))
		}
	}
	return err
}
