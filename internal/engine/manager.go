// Package engine ties the pipeline together: protocol messages go into a
// receiver, completed transfers are assembled into clips, clips are played
// on a device and sampled for lip sync.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
	"github.com/dgnsrekt/pcmbridge/internal/pcm"
	"github.com/dgnsrekt/pcmbridge/internal/protocol"
	"github.com/dgnsrekt/pcmbridge/internal/receiver"
)

// TickSource delivers host frame deltas to one sampler.
type TickSource interface {
	Ticks() <-chan time.Duration
	Stop()
}

// Recorder receives pipeline measurements. *metrics.Metrics implements it.
type Recorder interface {
	receiver.Observer
	ObserveDiagnostic(err error)
	ObserveClip(d time.Duration)
	ObserveAmplitude(v float32)
}

// Config holds the tunables of a Manager.
type Config struct {
	WindowSize int // Samples averaged per tick
	TickRate   int // Host ticks per second
}

// DefaultConfig returns the defaults used by the CLI.
func DefaultConfig() Config {
	return Config{
		WindowSize: lipsync.DefaultWindowSize,
		TickRate:   lipsync.DefaultTickRate,
	}
}

// Manager receives audio transfers and plays them with lip sync. Message
// methods are serialized internally and may be called from any goroutine;
// sampling runs on its own goroutine per clip.
type Manager struct {
	cfg      Config
	device   lipsync.Device
	receiver *receiver.Receiver
	logger   *log.Logger
	sink     lipsync.Sink
	report   receiver.Reporter
	recorder Recorder
	ticker   func(rate int) TickSource

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// in serializes message handling against Close.
	in     sync.Mutex
	closed bool

	mu     sync.Mutex
	active int
	clips  int
}

// Option configures a Manager.
type Option func(*Manager)

// WithConfig sets the tunables.
func WithConfig(cfg Config) Option {
	return func(m *Manager) {
		if cfg.WindowSize > 0 {
			m.cfg.WindowSize = cfg.WindowSize
		}
		if cfg.TickRate > 0 {
			m.cfg.TickRate = cfg.TickRate
		}
	}
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithSink sets the consumer of amplitude readings. It is called from every
// clip's sampler goroutine at once and must be safe for concurrent use.
func WithSink(fn lipsync.Sink) Option {
	return func(m *Manager) {
		m.sink = fn
	}
}

// WithReporter sets a hook that receives every recovered error and warning.
func WithReporter(fn receiver.Reporter) Option {
	return func(m *Manager) {
		m.report = fn
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) {
		m.recorder = r
	}
}

// WithTickSource replaces the wall-clock ticker used for each clip.
func WithTickSource(fn func(rate int) TickSource) Option {
	return func(m *Manager) {
		m.ticker = fn
	}
}

// New creates a Manager playing on device.
func New(device lipsync.Device, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		cfg:    DefaultConfig(),
		device: device,
		logger: log.Default(),
		ticker: func(rate int) TickSource { return lipsync.NewClock(rate) },
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(m)
	}

	recvOpts := []receiver.Option{
		receiver.WithLogger(m.logger),
		receiver.WithReporter(m.diagnostic),
	}
	if m.recorder != nil {
		recvOpts = append(recvOpts, receiver.WithObserver(m.recorder))
	}
	m.receiver = receiver.New(m.handoff, recvOpts...)
	return m
}

// OnAudioChunk handles one protocol message from the host. Messages
// arriving after Close are dropped.
func (m *Manager) OnAudioChunk(message string) {
	m.in.Lock()
	defer m.in.Unlock()
	if m.closed {
		m.logger.Debug("Dropping audio message after close", "message", protocol.Preview(message))
		return
	}
	m.receiver.OnAudioChunk(message)
}

// OnAudioError handles an error signal from the host.
func (m *Manager) OnAudioError(reason string) {
	m.in.Lock()
	defer m.in.Unlock()
	if m.closed {
		m.logger.Debug("Dropping audio error after close", "reason", reason)
		return
	}
	m.receiver.OnAudioError(reason)
}

// Stats returns a snapshot of the receiver counters.
func (m *Manager) Stats() receiver.Stats {
	m.in.Lock()
	defer m.in.Unlock()
	return m.receiver.Stats()
}

// Active returns the number of clips still being sampled.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Clips returns the number of clips started so far.
func (m *Manager) Clips() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clips
}

// Wait blocks until every started clip has finished sampling. It must not
// race with message delivery; use Close for that.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close stops accepting messages, stops all samplers and waits for them to
// exit. No clip starts once Close has begun.
func (m *Manager) Close() error {
	m.in.Lock()
	m.closed = true
	m.in.Unlock()

	m.cancel()
	m.wg.Wait()
	return nil
}

func (m *Manager) handoff(chunks [][]byte) {
	clip, err := pcm.Assemble(chunks)

	var trunc *pcm.TruncatedPCMError
	switch {
	case errors.Is(err, pcm.ErrNoSamples):
		m.logger.Warn("No complete samples in audio transfer", "error", err)
		m.diagnostic(err)
		return
	case errors.As(err, &trunc):
		m.logger.Warn("Dropped trailing PCM bytes", "discarded", trunc.Discarded, "total", trunc.Total)
		m.diagnostic(err)
	case err != nil:
		m.logger.Error("Failed to assemble audio", "error", err)
		m.diagnostic(err)
		return
	}

	m.logger.Debug("Combined PCM audio data",
		"bytes", humanize.Bytes(uint64(clip.Len()*pcm.BytesPerSample+clip.DiscardedBytes)))
	m.logger.Info("Created audio clip",
		"duration", fmt.Sprintf("%.2fs", clip.Seconds()),
		"samples", clip.Len())

	m.play(clip)
}

func (m *Manager) play(clip *pcm.Clip) {
	h, err := m.device.Load(clip.Samples, clip.SampleRate, clip.Channels)
	if err != nil {
		m.logger.Error("Failed to load audio clip", "error", err)
		m.diagnostic(err)
		return
	}
	if err := m.device.Play(h); err != nil {
		m.logger.Error("Failed to play audio clip", "clip", h, "error", err)
		m.diagnostic(err)
		m.release(h)
		return
	}
	m.logger.Info("Playing audio clip", "clip", h, "duration", fmt.Sprintf("%.2fs", clip.Seconds()))
	if m.recorder != nil {
		m.recorder.ObserveClip(clip.Duration)
	}

	sampler := lipsync.NewSampler(m.device, h, clip.Duration,
		lipsync.WithWindowSize(m.cfg.WindowSize),
		lipsync.WithSink(m.observe),
		lipsync.WithLogger(m.logger),
	)
	ticks := m.ticker(m.cfg.TickRate)

	m.mu.Lock()
	m.clips++
	m.mu.Unlock()
	m.track(1)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer ticks.Stop()

		if err := sampler.Run(m.ctx, ticks.Ticks()); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("Lip sync stopped", "clip", h, "error", err)
		}
		m.release(h)

		m.track(-1)
	}()
}

func (m *Manager) observe(r lipsync.Reading) {
	if m.recorder != nil {
		m.recorder.ObserveAmplitude(r.Amplitude)
	}
	if m.sink != nil {
		m.sink(r)
	}
}

func (m *Manager) release(h lipsync.Handle) {
	rel, ok := m.device.(lipsync.Releaser)
	if !ok {
		return
	}
	if err := rel.Release(h); err != nil {
		m.logger.Debug("Failed to release audio clip", "clip", h, "error", err)
	}
}

func (m *Manager) track(delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active += delta
	type activeGauge interface{ SetActiveSamplers(n int) }
	if g, ok := m.recorder.(activeGauge); ok {
		g.SetActiveSamplers(m.active)
	}
}

func (m *Manager) diagnostic(err error) {
	if m.recorder != nil {
		m.recorder.ObserveDiagnostic(err)
	}
	if m.report != nil {
		m.report(err)
	}
}
