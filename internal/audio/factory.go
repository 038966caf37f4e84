package audio

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
)

// Device is a playback device the engine can own and shut down.
type Device interface {
	lipsync.Device
	lipsync.Releaser
	io.Closer
}

// Kind selects a device implementation.
type Kind int

const (
	// KindAuto uses the system output unless running in CI or it fails to open.
	KindAuto Kind = iota
	// KindOto always uses the system output.
	KindOto
	// KindMock never produces sound.
	KindMock
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindAuto:
		return "auto"
	case KindOto:
		return "oto"
	case KindMock:
		return "mock"
	default:
		return "unknown"
	}
}

// ParseKind parses a device name as used in configuration.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return KindAuto, nil
	case "oto", "system":
		return KindOto, nil
	case "mock", "none":
		return KindMock, nil
	default:
		return KindAuto, fmt.Errorf("unknown audio device %q (want auto, oto or mock)", s)
	}
}

// IsCI detects if we're running in a CI environment.
func IsCI() bool {
	ciVars := []string{
		"CI",
		"CONTINUOUS_INTEGRATION",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
	}
	for _, envVar := range ciVars {
		if val := os.Getenv(envVar); val != "" && val != "false" {
			log.Debug("CI environment detected", "variable", envVar)
			return true
		}
	}
	return false
}

// Open creates the device selected by kind.
func Open(kind Kind, logger *log.Logger) (Device, error) {
	if logger == nil {
		logger = log.Default()
	}

	switch kind {
	case KindMock:
		return NewMockDevice(WithMockLogger(logger)), nil
	case KindOto:
		d, err := NewOtoDevice(logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindAuto:
		if IsCI() {
			logger.Info("Using mock audio device", "reason", "ci")
			return NewMockDevice(WithMockLogger(logger)), nil
		}
		d, err := NewOtoDevice(logger)
		if err != nil {
			logger.Warn("Audio output unavailable, falling back to mock device", "error", err)
			return NewMockDevice(WithMockLogger(logger)), nil
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown audio device kind %d", kind)
	}
}
