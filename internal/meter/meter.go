// Package meter renders lip-sync readings for humans: a terminal level bar
// and a throttled log line.
package meter

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/pcmbridge/internal/lipsync"
)

// DefaultWidth is the bar width in cells.
const DefaultWidth = 40

// Speech amplitude rarely exceeds a third of full scale; the bar saturates
// there so normal speech uses its whole width.
const fullScale = 0.33

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	lowStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	midStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5C542"))
	highStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F25D94"))
	emptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
)

// Bar renders a level as a colored bar of width cells.
func Bar(level float32, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	filled := int(float64(level) / fullScale * float64(width))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	style := lowStyle
	switch {
	case filled > width*5/6:
		style = highStyle
	case filled > width/2:
		style = midStyle
	}
	return style.Render(strings.Repeat("█", filled)) + emptyStyle.Render(strings.Repeat("░", width-filled))
}

// Terminal redraws a single status line with the latest reading.
type Terminal struct {
	mu    sync.Mutex
	out   io.Writer
	width int
}

// NewTerminal creates a meter writing to out.
func NewTerminal(out io.Writer, width int) *Terminal {
	return &Terminal{out: out, width: width}
}

// Sink returns a lipsync.Sink that redraws the meter.
func (m *Terminal) Sink() lipsync.Sink {
	return func(r lipsync.Reading) {
		m.mu.Lock()
		defer m.mu.Unlock()
		_, _ = fmt.Fprintf(m.out, "\r%s %s %s",
			labelStyle.Render(r.Handle.String()),
			Bar(r.Amplitude, m.width),
			labelStyle.Render(fmt.Sprintf("%.3f", r.Amplitude)))
	}
}

// Clear erases the status line.
func (m *Terminal) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = fmt.Fprint(m.out, "\r\033[K")
}

// LogSink returns a sink that logs at most perSecond readings per second.
// Sampling runs once per frame, which is far too chatty for a log.
func LogSink(logger *log.Logger, perSecond float64) lipsync.Sink {
	if logger == nil {
		logger = log.Default()
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)
	return func(r lipsync.Reading) {
		if !limiter.Allow() {
			return
		}
		logger.Debug("Current volume",
			"clip", r.Handle,
			"tick", r.Tick,
			"elapsed", r.Elapsed.Round(time.Millisecond),
			"amplitude", r.Amplitude)
	}
}

// Fanout delivers each reading to every non-nil sink.
func Fanout(sinks ...lipsync.Sink) lipsync.Sink {
	var active []lipsync.Sink
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return func(r lipsync.Reading) {
		for _, s := range active {
			s(r)
		}
	}
}
