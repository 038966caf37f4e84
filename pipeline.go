package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	"github.com/dgnsrekt/pcmbridge/internal/audio"
	"github.com/dgnsrekt/pcmbridge/internal/engine"
	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
	"github.com/dgnsrekt/pcmbridge/internal/meter"
	"github.com/dgnsrekt/pcmbridge/internal/metrics"
)

// Readings are logged at most this often.
const volumeLogRate = 4

// pipeline owns everything a playing session needs.
type pipeline struct {
	manager *engine.Manager
	device  audio.Device
	metrics *metrics.Metrics
	meter   *meter.Terminal
	server  *http.Server
	logger  *log.Logger
}

func newPipeline(o options, logger *log.Logger) (*pipeline, error) {
	device, err := audio.Open(o.Audio, logger)
	if err != nil {
		return nil, fmt.Errorf("unable to open audio device: %w", err)
	}

	p := &pipeline{
		device:  device,
		metrics: metrics.New(),
		logger:  logger,
	}

	sinks := []lipsync.Sink{meter.LogSink(logger, volumeLogRate)}
	if o.Meter {
		if fd := int(os.Stderr.Fd()); term.IsTerminal(fd) { //nolint:gosec
			width := meter.DefaultWidth
			if w, _, err := term.GetSize(fd); err == nil && w-24 < width {
				width = max(w-24, 10)
			}
			p.meter = meter.NewTerminal(os.Stderr, width)
			sinks = append(sinks, p.meter.Sink())
		} else {
			logger.Debug("Not drawing level meter, stderr is not a terminal")
		}
	}

	p.manager = engine.New(device,
		engine.WithLogger(logger),
		engine.WithRecorder(p.metrics),
		engine.WithSink(meter.Fanout(sinks...)),
		engine.WithConfig(engine.Config{WindowSize: o.Window, TickRate: o.TickRate}),
	)

	if o.MetricsAddr != "" {
		p.serveMetrics(o.MetricsAddr)
	}
	return p, nil
}

func (p *pipeline) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.metrics.Handler())
	p.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		p.logger.Info("Serving metrics", "addr", addr)
		if err := p.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("Metrics server stopped", "error", err)
		}
	}()
}

// Wait blocks until every clip has finished or ctx is done.
func (p *pipeline) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		p.manager.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Close stops sampling, shuts down the metrics server and releases the
// device.
func (p *pipeline) Close() error {
	_ = p.manager.Close()
	if p.meter != nil {
		p.meter.Clear()
	}

	var errs []error
	if p.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to stop metrics server: %w", err))
		}
	}
	if err := p.device.Close(); err != nil {
		errs = append(errs, fmt.Errorf("unable to close audio device: %w", err))
	}

	stats := p.manager.Stats()
	p.logger.Info("Session summary",
		"transfers", stats.SessionsCompleted,
		"clips", p.manager.Clips(),
		"aborted", stats.SessionsAborted,
		"dropped_chunks", stats.ChunksDropped)
	return errors.Join(errs...)
}
