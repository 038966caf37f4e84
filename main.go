// Package main provides the entry point for the pcmbridge CLI application.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
	"github.com/dgnsrekt/pcmbridge/utils"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile        string
	defaultConfigFile string
	debug             bool

	rootCmd = &cobra.Command{
		Use:   "pcmbridge",
		Short: "Play streamed PCM speech with amplitude lip sync",
		Long: paragraph(
			fmt.Sprintf("\nReassemble %s into clips, play them and drive a mouth from their loudness.",
				keyword("streamed base64 PCM speech")),
		),
		SilenceErrors:     false,
		SilenceUsage:      true,
		TraverseChildren:  true,
		Args:              cobra.NoArgs,
		PersistentPreRunE: preRun,
	}
)

func preRun(cmd *cobra.Command, _ []string) error {
	if cmd.Flags().Changed("config") {
		viper.SetConfigFile(utils.ExpandPath(configFile))
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
	}

	if viper.GetBool("debug") {
		logToStderr()
	}
	applyLogLevel()
	watchConfig()
	return nil
}

// applyLogLevel sets the level from configuration, leaving it unchanged
// when the configured value is invalid.
func applyLogLevel() {
	if viper.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
		return
	}
	level, err := log.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		log.Warn("Ignoring invalid log level", "log_level", viper.GetString("log_level"))
		return
	}
	log.SetLevel(level)
}

func watchConfig() {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		applyLogLevel()
		log.Info("Reloaded configuration", "path", e.Name, "log_level", log.GetLevel())
	})
	viper.WatchConfig()
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

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", configPath()))
	flags.BoolVar(&debug, "debug", false, "log at debug level and mirror the log on stderr")
	flags.Bool("mock-audio", false, "never open the system audio output")
	flags.Bool("meter", false, "draw a level meter on stderr")
	flags.Int("window", lipsync.DefaultWindowSize, "samples averaged per lip-sync reading")
	flags.Int("tick-rate", lipsync.DefaultTickRate, "lip-sync readings per second")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")

	// Config bindings
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("mock_audio", flags.Lookup("mock-audio"))
	_ = viper.BindPFlag("meter", flags.Lookup("meter"))
	_ = viper.BindPFlag("window", flags.Lookup("window"))
	_ = viper.BindPFlag("tick_rate", flags.Lookup("tick-rate"))
	_ = viper.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))

	setDefaults(viper.GetViper())

	rootCmd.AddCommand(playCmd, listenCmd, sendCmd, configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "pcmbridge")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "pcmbridge")}, dirs...)
	}

	if c := os.Getenv("PCMBRIDGE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("pcmbridge")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("pcmbridge")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	defaultConfigFile = filepath.Join(dirs[0], "pcmbridge.yml")
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
