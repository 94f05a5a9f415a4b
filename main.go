// readaloud reads text aloud with the platform speech engine.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/readaloud/internal/bridge"
	"github.com/dgnsrekt/readaloud/internal/settings"
	"github.com/dgnsrekt/readaloud/tts"
	"github.com/dgnsrekt/readaloud/tts/engines"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	debug             bool
	savedSettings     settings.Settings

	// Speak flags
	voice    string
	engine   string
	rate     float64
	resume   bool
	noTUI    bool
	fromClip bool

	rootCmd = &cobra.Command{
		Use:   "readaloud [SOURCE|-]",
		Short: "Read text aloud",
		Long: paragraph(fmt.Sprintf("\nRead files, web pages and the clipboard %s with your platform's speech engine.\n\nSOURCE is a text, markdown, HTML or PDF file, an http(s) URL, or %s for standard input.",
			keyword("aloud"), keyword("-"))),
		Example: paragraph("readaloud notes.md\nreadaloud https://example.com/article\ncat story.txt | readaloud -"),
		SilenceUsage:      true,
		TraverseChildren:  true,
		Args:              cobra.MaximumNArgs(1),
		PersistentPreRunE: validateOptions,
		RunE:              execute,
	}
)

// validateOptions applies saved settings and flags to the configuration.
func validateOptions(cmd *cobra.Command, _ []string) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("could not read config file: %w", err)
		}
	}
	applyLogLevel()

	store, err := settingsStore()
	if err != nil {
		return err
	}
	saved, err := store.Load()
	if err != nil {
		log.Warn("Ignoring unreadable settings", "path", store.Path(), "error", err)
		saved = settings.Default()
	}
	savedSettings = saved
	for key, value := range saved.Defaults() {
		viper.SetDefault(key, value)
	}

	if cmd.Flags().Changed("rate") && (rate < 0.5 || rate > 2.0) {
		return fmt.Errorf("%w: rate must be between 0.5 and 2.0", tts.ErrInvalidConfig)
	}
	if e := viper.GetString("tts.engine"); !tts.KnownEngine(e) {
		return fmt.Errorf("%w: %q (choose from %s)", tts.ErrUnknownEngine, e, strings.Join(append([]string{tts.EngineAuto}, engines.Names()...), ", "))
	}
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		if piped, err := stdinIsPipe(); err == nil && piped {
			return runSource(cmd, "-")
		}
		return cmd.Help()
	}
	return runSource(cmd, args[0])
}

func stdinIsPipe() (bool, error) {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false, err //nolint:wrapcheck
	}
	if stat.Mode()&os.ModeCharDevice == 0 || stat.Size() > 0 {
		return true, nil
	}
	return false, nil
}

// interactive reports whether the player can take over the terminal.
func interactive() bool {
	return !noTUI &&
		term.IsTerminal(int(os.Stdout.Fd())) && //nolint:gosec
		term.IsTerminal(int(os.Stdin.Fd())) //nolint:gosec
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", defaultConfigFile))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write debug output to the log file")
	addSpeakFlags(rootCmd)

	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	// Defaults
	defaults := tts.DefaultConfig()
	viper.SetDefault("tts.engine", defaults.Engine)
	viper.SetDefault("tts.rate", defaults.Rate)
	viper.SetDefault("tts.batch_size", defaults.BatchSize)
	viper.SetDefault("tts.timeout", defaults.Timeout)
	viper.SetDefault("tts.gtts.language", defaults.GTTS.Language)
	viper.SetDefault("tts.gtts.requests_per_minute", defaults.GTTS.RequestsPerMinute)
	viper.SetDefault("serve.addr", bridge.DefaultAddr)
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("web.timeout", "20s")

	rootCmd.AddGroup(&cobra.Group{ID: remoteGroup, Title: "Remote control (readaloud serve):"})
	rootCmd.AddCommand(
		speakCmd, sayCmd, voicesCmd, historyCmd, serveCmd, statusCmd,
		configCmd, manCmd,
	)
	rootCmd.AddCommand(remoteCmds()...)
}

// addSpeakFlags adds the flags shared by the commands that speak.
func addSpeakFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVarP(&voice, "voice", "v", "", "voice name; partial names are matched")
	flags.StringVarP(&engine, "engine", "e", "", "speech engine (auto, espeak, say, sapi, gtts, command)")
	flags.Float64Var(&rate, "rate", 0, "speaking rate, from 0.5 to 2.0")
	flags.BoolVar(&noTUI, "no-tui", false, "speak without the interactive player")
	flags.BoolVar(&resume, "resume", false, "continue from where the source was left off")

	_ = viper.BindPFlag("tts.voice", flags.Lookup("voice"))
	_ = viper.BindPFlag("tts.engine", flags.Lookup("engine"))
	_ = viper.BindPFlag("tts.rate", flags.Lookup("rate"))
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, appName)
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, appName)}, dirs...)
	}

	if c := os.Getenv("READALOUD_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName(appName)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix(appName)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		defaultConfigFile = used
		return
	}

	defaultConfigFile = filepath.Join(dirs[0], appName+".yml")
}

// dataDir is where settings and history live.
func dataDir() (string, error) {
	if d := os.Getenv("READALOUD_DATA_HOME"); d != "" {
		return d, nil
	}
	path, err := gap.NewScope(gap.User, appName).DataPath("")
	if err != nil {
		return "", fmt.Errorf("could not find data directory: %w", err)
	}
	return path, nil
}

func settingsStore() (*settings.Store, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, err
	}
	return settings.NewStore(dir), nil
}
