//go:build nocgo
// +build nocgo

package audio

import (
	"errors"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
)

// Stub implementations for builds without CGO

// OtoDevice stub for nocgo builds.
type OtoDevice struct{}

// NewOtoDevice always fails in nocgo builds.
func NewOtoDevice(*log.Logger) (*OtoDevice, error) {
	return nil, errors.New("audio not available in nocgo build")
}

func (d *OtoDevice) Load([]float32, int, int) (lipsync.Handle, error) {
	return 0, errors.New("audio not available in nocgo build")
}

func (d *OtoDevice) Play(lipsync.Handle) error {
	return errors.New("audio not available in nocgo build")
}

func (d *OtoDevice) IsPlaying(lipsync.Handle) bool { return false }

func (d *OtoDevice) ReadCurrentWindow(_ lipsync.Handle, size int) []float32 {
	return make([]float32, size)
}

func (d *OtoDevice) Release(lipsync.Handle) error { return nil }

func (d *OtoDevice) Close() error { return nil }
