package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/pcmbridge/internal/audio"
	"github.com/dgnsrekt/pcmbridge/internal/bridge"
	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
	"github.com/dgnsrekt/pcmbridge/internal/pcm"
)

// options is the validated runtime configuration.
type options struct {
	LogLevel    log.Level
	Audio       audio.Kind
	Window      int
	TickRate    int
	Meter       bool
	MetricsAddr string

	NATSURL       string
	SubjectPrefix string
	NATSTimeout   time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("audio", audio.KindAuto.String())
	v.SetDefault("window", lipsync.DefaultWindowSize)
	v.SetDefault("tick_rate", lipsync.DefaultTickRate)
	v.SetDefault("meter", false)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("nats.subject_prefix", bridge.DefaultSubjectPrefix)
	v.SetDefault("nats.timeout", "5s")
}

// loadOptions reads and validates v. Errors name the offending key.
func loadOptions(v *viper.Viper, cfg envConfig) (options, error) {
	var o options

	level, err := log.ParseLevel(v.GetString("log_level"))
	if err != nil {
		return o, fmt.Errorf("log_level: %w", err)
	}
	o.LogLevel = level
	if v.GetBool("debug") {
		o.LogLevel = log.DebugLevel
	}

	o.Audio, err = audio.ParseKind(v.GetString("audio"))
	if err != nil {
		return o, fmt.Errorf("audio: %w", err)
	}
	if cfg.MockAudio || v.GetBool("mock_audio") {
		o.Audio = audio.KindMock
	}

	o.Window = v.GetInt("window")
	if o.Window < 1 || o.Window > pcm.SampleRate {
		return o, fmt.Errorf("window must be between 1 and %d samples, got %d", pcm.SampleRate, o.Window)
	}

	o.TickRate = v.GetInt("tick_rate")
	if o.TickRate < 1 || o.TickRate > 1000 {
		return o, fmt.Errorf("tick_rate must be between 1 and 1000 per second, got %d", o.TickRate)
	}

	o.Meter = v.GetBool("meter")

	o.MetricsAddr = strings.TrimSpace(v.GetString("metrics_addr"))
	if o.MetricsAddr != "" {
		if _, _, err := net.SplitHostPort(o.MetricsAddr); err != nil {
			return o, fmt.Errorf("metrics_addr: %w", err)
		}
	}

	o.NATSURL = strings.TrimSpace(v.GetString("nats.url"))
	o.SubjectPrefix = strings.Trim(strings.TrimSpace(v.GetString("nats.subject_prefix")), ".")
	if o.SubjectPrefix == "" || strings.ContainsAny(o.SubjectPrefix, " *>") {
		return o, fmt.Errorf("nats.subject_prefix %q is not a valid subject", v.GetString("nats.subject_prefix"))
	}
	o.NATSTimeout = v.GetDuration("nats.timeout")
	if o.NATSTimeout <= 0 {
		return o, fmt.Errorf("nats.timeout must be positive, got %q", v.GetString("nats.timeout"))
	}

	return o, nil
}
