package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

const appName = "readaloud"

func getLogFilePath() (string, error) {
	path, err := gap.NewScope(gap.User, appName).LogPath(appName + ".log")
	if err != nil {
		return "", fmt.Errorf("could not find log directory: %w", err)
	}
	return path, nil
}

// setupLog sends log output to the log file. Nothing is logged to the
// terminal, which belongs to the player.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		// Logging is best-effort.
		return func() error { return nil }, nil
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return func() error { return nil }, nil
	}

	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetLevel(log.InfoLevel)
	return f.Close, nil
}

// applyLogLevel switches to debug logging when --debug or READALOUD_DEBUG is
// set.
func applyLogLevel() {
	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
}
