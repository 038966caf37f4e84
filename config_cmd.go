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
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pcmbridge/utils"
)

const defaultConfig = `# log level: debug, info, warn or error
log_level: "info"
# audio output: auto, oto or mock
audio: "auto"

# lip sync
# samples averaged per reading
window: 256
# readings per second
tick_rate: 60
# draw a level meter on stderr
meter: false

# serve Prometheus metrics, e.g. "127.0.0.1:9464" (empty disables)
metrics_addr: ""

# NATS transport for "listen" and "send"
nats:
  url: "nats://127.0.0.1:4222"
  # messages arrive on <prefix>.chunk and <prefix>.error
  subject_prefix: "pcmbridge.audio"
  timeout: "5s"
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the pcmbridge config file",
	Long:    paragraph(fmt.Sprintf("\n%s the pcmbridge config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("pcmbridge config\npcmbridge config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("pcmbridge", configPath())
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configPath())
		return nil
	},
}

// configPath returns the config file in use: the --config flag, the file
// viper loaded, or the default location.
func configPath() string {
	switch {
	case configFile != "":
		return utils.ExpandPath(configFile)
	case viper.GetViper().ConfigFileUsed() != "":
		return viper.GetViper().ConfigFileUsed()
	default:
		return defaultConfigFile
	}
}

func ensureConfigFile() error {
	file := configPath()
	if file == "" {
		return errors.New("no configuration directory found")
	}

	if ext := path.Ext(file); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(file) //nolint:gosec
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
