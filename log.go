package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"

	"github.com/dgnsrekt/pcmbridge/utils"
)

// envConfig holds settings that only come from the environment.
type envConfig struct {
	LogFile   string `env:"PCMBRIDGE_LOG_FILE"`
	MockAudio bool   `env:"PCMBRIDGE_MOCK_AUDIO"`
}

var (
	environ envConfig
	logFile io.Writer = io.Discard
)

func getLogFilePath(cfg envConfig) (string, error) {
	if cfg.LogFile != "" {
		return utils.ExpandPath(cfg.LogFile), nil
	}
	dir, err := gap.NewScope(gap.User, "pcmbridge").CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "pcmbridge.log"), nil
}

func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	cfg, err := env.ParseAs[envConfig]()
	if err != nil {
		return nil, err
	}
	environ = cfg

	// Log to file, if set
	path, err := getLogFilePath(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, err
	}
	logFile = f
	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetLevel(log.InfoLevel)
	return f.Close, nil
}

// logToStderr mirrors the log file on stderr.
func logToStderr() {
	log.SetOutput(io.MultiWriter(logFile, os.Stderr))
}
