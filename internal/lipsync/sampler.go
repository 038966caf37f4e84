package lipsync

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultWindowSize is the number of samples averaged per tick.
const DefaultWindowSize = 256

// Reading is one amplitude sample.
type Reading struct {
	Handle    Handle
	Tick      int           // 0-based iteration number
	Elapsed   time.Duration // Elapsed time when the window was read
	Amplitude float32       // Mean absolute amplitude of the window
}

// Sink consumes readings, typically an animation driver.
type Sink func(Reading)

// Sampler polls one playing clip once per host tick.
type Sampler struct {
	device   Device
	handle   Handle
	duration time.Duration
	window   int
	sink     Sink
	logger   *log.Logger

	elapsed time.Duration
	ticks   int
	done    bool
}

// SamplerOption configures a Sampler.
type SamplerOption func(*Sampler)

// WithWindowSize sets the number of samples read per tick.
func WithWindowSize(n int) SamplerOption {
	return func(s *Sampler) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithSink sets the reading consumer.
func WithSink(fn Sink) SamplerOption {
	return func(s *Sampler) {
		s.sink = fn
	}
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) SamplerOption {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSampler creates a sampler for a clip that is already playing.
func NewSampler(device Device, handle Handle, duration time.Duration, opts ...SamplerOption) *Sampler {
	s := &Sampler{
		device:   device,
		handle:   handle,
		duration: duration,
		window:   DefaultWindowSize,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tick runs one iteration: while elapsed < duration and the clip is still
// playing it reads a window, emits its amplitude and advances the cursor by
// delta. It returns false once sampling has finished; no read happens then.
func (s *Sampler) Tick(delta time.Duration) (Reading, bool) {
	if s.done {
		return Reading{}, false
	}
	if s.elapsed >= s.duration || !s.device.IsPlaying(s.handle) {
		s.done = true
		s.logger.Debug("Lip sync finished", "clip", s.handle, "ticks", s.ticks, "elapsed", s.elapsed)
		return Reading{}, false
	}

	window := s.device.ReadCurrentWindow(s.handle, s.window)
	r := Reading{
		Handle:    s.handle,
		Tick:      s.ticks,
		Elapsed:   s.elapsed,
		Amplitude: Amplitude(window),
	}
	if s.sink != nil {
		s.sink(r)
	}

	s.ticks++
	if delta > 0 {
		s.elapsed += delta
	}
	return r, true
}

// Run calls Tick once per value received on ticks. It returns nil when
// sampling finishes or ticks is closed, and ctx.Err() when ctx is done.
func (s *Sampler) Run(ctx context.Context, ticks <-chan time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delta, ok := <-ticks:
			if !ok {
				return nil
			}
			if _, more := s.Tick(delta); !more {
				return nil
			}
		}
	}
}

// Elapsed returns the playback cursor.
func (s *Sampler) Elapsed() time.Duration {
	return s.elapsed
}

// Done reports whether sampling has finished.
func (s *Sampler) Done() bool {
	return s.done
}

// Amplitude returns the mean absolute value of window, or 0 when empty.
func Amplitude(window []float32) float32 {
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, v := range window {
		if v < 0 {
			v = -v
		}
		sum += float64(v)
	}
	return float32(sum / float64(len(window)))
}
