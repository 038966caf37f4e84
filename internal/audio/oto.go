//go:build !nocgo
// +build !nocgo

package audio

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
	"github.com/dgnsrekt/pcmbridge/internal/pcm"
)

// readyTimeout bounds how long we wait for the audio backend.
const readyTimeout = 5 * time.Second

// OtoDevice plays clips through the system audio output.
type OtoDevice struct {
	context *oto.Context
	logger  *log.Logger

	mu      sync.Mutex
	next    lipsync.Handle
	streams map[lipsync.Handle]*otoStream
}

type otoStream struct {
	samples []float32
	reader  *positionTrackingReader
	player  *oto.Player
}

// NewOtoDevice opens the audio output at the fixed speech format. oto allows
// a single context per process.
func NewOtoDevice(logger *log.Logger) (*OtoDevice, error) {
	if logger == nil {
		logger = log.Default()
	}

	options := &oto.NewContextOptions{
		SampleRate:   pcm.SampleRate,
		ChannelCount: pcm.Channels,
		Format:       oto.FormatFloat32LE,
	}

	// Platform-specific buffer size adjustments
	switch runtime.GOOS {
	case "darwin":
		options.BufferSize = 100 * time.Millisecond
	case "windows":
		options.BufferSize = 80 * time.Millisecond
	default:
		options.BufferSize = 50 * time.Millisecond
	}

	logger.Debug("Initializing audio context",
		"sample_rate", options.SampleRate,
		"channels", options.ChannelCount,
		"buffer_size", options.BufferSize)

	context, readyChan, err := oto.NewContext(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create audio context: %w", err)
	}

	select {
	case <-readyChan:
	case <-time.After(readyTimeout):
		return nil, fmt.Errorf("audio context initialization timeout after %v", readyTimeout)
	}

	logger.Debug("Audio context initialized")
	return &OtoDevice{
		context: context,
		logger:  logger,
		streams: make(map[lipsync.Handle]*otoStream),
	}, nil
}

// Load implements lipsync.Device.
func (d *OtoDevice) Load(samples []float32, sampleRate, channels int) (lipsync.Handle, error) {
	if sampleRate != pcm.SampleRate || channels != pcm.Channels {
		return 0, fmt.Errorf("%w: %d Hz/%d ch, device runs %d Hz/%d ch",
			ErrFormatMismatch, sampleRate, channels, pcm.SampleRate, pcm.Channels)
	}

	reader := newPositionTrackingReader(encodeFloat32LE(samples))
	player := d.context.NewPlayer(reader)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.streams[d.next] = &otoStream{
		samples: samples,
		reader:  reader,
		player:  player,
	}
	return d.next, nil
}

// Play implements lipsync.Device.
func (d *OtoDevice) Play(h lipsync.Handle) error {
	s, err := d.stream(h)
	if err != nil {
		return err
	}
	s.player.Play()
	return nil
}

// IsPlaying implements lipsync.Device.
func (d *OtoDevice) IsPlaying(h lipsync.Handle) bool {
	s, err := d.stream(h)
	if err != nil {
		return false
	}
	return s.player.IsPlaying()
}

// ReadCurrentWindow implements lipsync.Device. The playhead is what oto has
// pulled from the reader minus what is still queued in its buffer.
func (d *OtoDevice) ReadCurrentWindow(h lipsync.Handle, size int) []float32 {
	s, err := d.stream(h)
	if err != nil {
		return make([]float32, size)
	}
	played := s.reader.Position() - int64(s.player.BufferedSize())
	return window(s.samples, int(played/bytesPerFloat), size)
}

// Release implements lipsync.Releaser.
func (d *OtoDevice) Release(h lipsync.Handle) error {
	d.mu.Lock()
	s, ok := d.streams[h]
	delete(d.streams, h)
	d.mu.Unlock()

	if !ok {
		return ErrUnknownHandle
	}
	return s.player.Close()
}

// Close releases every loaded clip.
func (d *OtoDevice) Close() error {
	d.mu.Lock()
	streams := d.streams
	d.streams = make(map[lipsync.Handle]*otoStream)
	d.mu.Unlock()

	var firstErr error
	for _, s := range streams {
		if err := s.player.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (d *OtoDevice) stream(h lipsync.Handle) (*otoStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.streams[h]
	if !ok {
		return nil, ErrUnknownHandle
	}
	return s, nil
}
