package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
)

var (
	// ErrUnknownHandle is returned for a handle the device does not know.
	ErrUnknownHandle = errors.New("unknown clip handle")
	// ErrFormatMismatch is returned when a clip does not match the device format.
	ErrFormatMismatch = errors.New("clip format does not match device")
)

// MockDevice implements lipsync.Device without producing sound. Playback
// advances with the injected clock, so tests control it precisely.
type MockDevice struct {
	mu     sync.Mutex
	now    func() time.Time
	next   lipsync.Handle
	clips  map[lipsync.Handle]*mockClip
	logger *log.Logger

	// Test helpers
	ClipsLoaded   int
	ClipsPlayed   int
	ClipsReleased int
}

type mockClip struct {
	samples    []float32
	sampleRate int
	started    time.Time
	playing    bool
}

// MockOption configures a MockDevice.
type MockOption func(*MockDevice)

// WithClock replaces time.Now as the playback clock.
func WithClock(now func() time.Time) MockOption {
	return func(d *MockDevice) {
		d.now = now
	}
}

// WithMockLogger sets the logger.
func WithMockLogger(l *log.Logger) MockOption {
	return func(d *MockDevice) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewMockDevice creates a silent device.
func NewMockDevice(opts ...MockOption) *MockDevice {
	d := &MockDevice{
		now:    time.Now,
		clips:  make(map[lipsync.Handle]*mockClip),
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger.Debug("Created mock audio device")
	return d
}

// Load implements lipsync.Device.
func (d *MockDevice) Load(samples []float32, sampleRate, channels int) (lipsync.Handle, error) {
	if sampleRate <= 0 || channels != 1 {
		return 0, ErrFormatMismatch
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.clips[d.next] = &mockClip{samples: samples, sampleRate: sampleRate}
	d.ClipsLoaded++
	d.logger.Debug("Loaded mock clip", "clip", d.next, "samples", len(samples))
	return d.next, nil
}

// Play implements lipsync.Device.
func (d *MockDevice) Play(h lipsync.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clips[h]
	if !ok {
		return ErrUnknownHandle
	}
	c.started = d.now()
	c.playing = true
	d.ClipsPlayed++
	return nil
}

// IsPlaying implements lipsync.Device.
func (d *MockDevice) IsPlaying(h lipsync.Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clips[h]
	if !ok || !c.playing {
		return false
	}
	return d.position(c) < len(c.samples)
}

// ReadCurrentWindow implements lipsync.Device.
func (d *MockDevice) ReadCurrentWindow(h lipsync.Handle, size int) []float32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clips[h]
	if !ok || !c.playing {
		return make([]float32, size)
	}
	return window(c.samples, d.position(c), size)
}

// Position returns the playhead of a clip in samples.
func (d *MockDevice) Position(h lipsync.Handle) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.clips[h]
	if !ok || !c.playing {
		return 0
	}
	return d.position(c)
}

// Stop halts a clip as if the output had been interrupted.
func (d *MockDevice) Stop(h lipsync.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.clips[h]; ok {
		c.playing = false
	}
}

// Release implements lipsync.Releaser.
func (d *MockDevice) Release(h lipsync.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.clips[h]; !ok {
		return ErrUnknownHandle
	}
	delete(d.clips, h)
	d.ClipsReleased++
	return nil
}

// Close releases every clip.
func (d *MockDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ClipsReleased += len(d.clips)
	d.clips = make(map[lipsync.Handle]*mockClip)
	d.logger.Debug("Mock audio device closed")
	return nil
}

// position must be called with d.mu held.
func (d *MockDevice) position(c *mockClip) int {
	elapsed := d.now().Sub(c.started)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed * time.Duration(c.sampleRate) / time.Second)
}
