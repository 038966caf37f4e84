package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pcmbridge/internal/bridge"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Play audio messages published on NATS",
	Long: paragraph(fmt.Sprintf("\n%s to <prefix>.chunk and <prefix>.error and play every completed transfer until interrupted.",
		keyword("Subscribe"))),
	Example: paragraph("pcmbridge listen --nats-url nats://robot.local:4222 --subject-prefix robot.voice"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		bindNATSFlags(cmd)
		o, err := loadOptions(viper.GetViper(), environ)
		if err != nil {
			return err
		}
		logger := log.Default()

		conn, err := bridge.Connect(o.NATSURL, o.NATSTimeout, logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		p, err := newPipeline(o, logger)
		if err != nil {
			return err
		}
		defer p.Close() //nolint:errcheck

		b := bridge.NewNATSBridge(conn, o.SubjectPrefix, p.manager, logger)
		if err := b.Start(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		// Delivery must stop before the deferred pipeline close.
		logger.Info("Stopping listener")
		if err := b.Close(o.NATSTimeout); err != nil {
			logger.Warn("Unable to drain NATS connection", "error", err)
		}
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send [FILE|-]",
	Short: "Publish audio messages from a file or stdin to NATS",
	Long: paragraph(fmt.Sprintf("\n%s protocol messages the way a host would, one per line. Lines starting with ERROR| go to the error subject.",
		keyword("Publish"))),
	Example: paragraph("pcmbridge send speech.txt --subject-prefix robot.voice"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindNATSFlags(cmd)
		o, err := loadOptions(viper.GetViper(), environ)
		if err != nil {
			return err
		}
		logger := log.Default()

		var arg string
		if len(args) > 0 {
			arg = args[0]
		}
		src, err := openSource(arg)
		if err != nil {
			return err
		}
		defer src.Close() //nolint:errcheck

		conn, err := bridge.Connect(o.NATSURL, o.NATSTimeout, logger)
		if err != nil {
			return err
		}
		defer conn.Close()

		n, err := bridge.Forward(cmd.Context(), src, conn, o.SubjectPrefix)
		if err != nil {
			return err
		}
		if err := conn.Flush(); err != nil {
			return fmt.Errorf("unable to flush messages: %w", err)
		}
		logger.Info("Published audio messages", "count", n, "prefix", o.SubjectPrefix)
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{listenCmd, sendCmd} {
		cmd.Flags().String("nats-url", "", "NATS server URL")
		cmd.Flags().String("subject-prefix", "", "subject prefix for audio messages")
	}
}

// bindNATSFlags binds the NATS flags of the running command.
func bindNATSFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("nats.url", cmd.Flags().Lookup("nats-url"))
	_ = viper.BindPFlag("nats.subject_prefix", cmd.Flags().Lookup("subject-prefix"))
}
