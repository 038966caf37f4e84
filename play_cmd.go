package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pcmbridge/internal/bridge"
	"github.com/dgnsrekt/pcmbridge/utils"
)

var playCmd = &cobra.Command{
	Use:   "play [FILE|-]",
	Short: "Play audio messages from a file or stdin",
	Long: paragraph(fmt.Sprintf("\n%s protocol messages, one per line, and play every completed transfer. Lines starting with ERROR| abort the current transfer.",
		keyword("Read"))),
	Example: paragraph("pcmbridge play speech.txt\nhost-process | pcmbridge play --meter"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		o, err := loadOptions(viper.GetViper(), environ)
		if err != nil {
			return err
		}

		var arg string
		if len(args) > 0 {
			arg = args[0]
		}
		src, err := openSource(arg)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		logger := log.Default()
		p, err := newPipeline(o, logger)
		if err != nil {
			return err
		}
		defer p.Close() //nolint:errcheck

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		n, err := bridge.ReadLines(ctx, src, p.manager, logger)
		if err != nil {
			return fmt.Errorf("unable to read audio messages: %w", err)
		}
		logger.Debug("Waiting for playback to finish", "messages", n)
		p.Wait(ctx)
		return nil
	},
}

// openSource opens a file argument, or stdin for "-" and no argument.
func openSource(arg string) (io.ReadCloser, error) {
	if utils.IsStdin(arg) {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(utils.ExpandPath(arg))
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	return f, nil
}
