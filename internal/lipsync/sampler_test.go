package lipsync

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

// stubDevice plays a constant level until stopped.
type stubDevice struct {
	level   float32
	playing bool
	reads   int
	sizes   []int
}

func (d *stubDevice) Load([]float32, int, int) (Handle, error) { return 1, nil }
func (d *stubDevice) Play(Handle) error                      { d.playing = true; return nil }
func (d *stubDevice) IsPlaying(Handle) bool                  { return d.playing }

func (d *stubDevice) ReadCurrentWindow(_ Handle, size int) []float32 {
	d.reads++
	d.sizes = append(d.sizes, size)
	w := make([]float32, size)
	for i := range w {
		if i%2 == 0 {
			w[i] = d.level
		} else {
			w[i] = -d.level
		}
	}
	return w
}

var quiet = log.New(io.Discard)

func TestAmplitude(t *testing.T) {
	tests := []struct {
		name   string
		window []float32
		want   float32
	}{
		{"empty", nil, 0},
		{"silence", []float32{0, 0, 0, 0}, 0},
		{"constant", []float32{0.5, 0.5}, 0.5},
		{"symmetric", []float32{0.25, -0.25, 0.25, -0.25}, 0.25},
		{"mixed", []float32{1, 0, -1, 0}, 0.5},
		{"full scale negative", []float32{-1, -1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Amplitude(tt.window); got != tt.want {
				t.Errorf("Amplitude() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTickStopsAtDuration(t *testing.T) {
	dev := &stubDevice{level: 0.5, playing: true}
	var readings []Reading
	s := NewSampler(dev, 1, 100*time.Millisecond,
		WithLogger(quiet),
		WithSink(func(r Reading) { readings = append(readings, r) }),
	)

	frame := 25 * time.Millisecond
	for i := 0; i < 10; i++ {
		if _, ok := s.Tick(frame); !ok {
			break
		}
	}

	if len(readings) != 4 {
		t.Fatalf("got %d readings, want 4", len(readings))
	}
	if dev.reads != 4 {
		t.Errorf("device was read %d times, want 4", dev.reads)
	}
	for i, r := range readings {
		if r.Tick != i {
			t.Errorf("reading %d has Tick %d", i, r.Tick)
		}
		if want := time.Duration(i) * frame; r.Elapsed != want {
			t.Errorf("reading %d Elapsed = %v, want %v", i, r.Elapsed, want)
		}
		if r.Amplitude != 0.5 {
			t.Errorf("reading %d Amplitude = %v, want 0.5", i, r.Amplitude)
		}
	}
	if !s.Done() {
		t.Error("Done() = false after duration elapsed")
	}
	if s.Elapsed() != 100*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 100ms", s.Elapsed())
	}
}

func TestTickStopsWhenPlaybackEnds(t *testing.T) {
	dev := &stubDevice{level: 0.1, playing: true}
	s := NewSampler(dev, 1, time.Hour, WithLogger(quiet))

	if _, ok := s.Tick(time.Millisecond); !ok {
		t.Fatal("first Tick() returned false")
	}
	dev.playing = false
	if _, ok := s.Tick(time.Millisecond); ok {
		t.Error("Tick() returned true after playback stopped")
	}

	// Finished samplers stay finished, even if the device resumes.
	dev.playing = true
	if _, ok := s.Tick(time.Millisecond); ok {
		t.Error("Tick() returned true after sampling finished")
	}
	if dev.reads != 1 {
		t.Errorf("device was read %d times, want 1", dev.reads)
	}
}

func TestTickZeroDurationReadsNothing(t *testing.T) {
	dev := &stubDevice{playing: true}
	s := NewSampler(dev, 1, 0, WithLogger(quiet))
	if _, ok := s.Tick(time.Millisecond); ok {
		t.Error("Tick() returned true for an empty clip")
	}
	if dev.reads != 0 {
		t.Errorf("device was read %d times, want 0", dev.reads)
	}
}

func TestTickIgnoresNegativeDelta(t *testing.T) {
	dev := &stubDevice{playing: true}
	s := NewSampler(dev, 1, time.Second, WithLogger(quiet))
	s.Tick(10 * time.Millisecond)
	s.Tick(-5 * time.Millisecond)
	if s.Elapsed() != 10*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 10ms", s.Elapsed())
	}
}

func TestWindowSize(t *testing.T) {
	tests := []struct {
		name string
		opt  SamplerOption
		want int
	}{
		{"default", WithWindowSize(0), DefaultWindowSize},
		{"custom", WithWindowSize(512), 512},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &stubDevice{playing: true}
			s := NewSampler(dev, 1, time.Second, WithLogger(quiet), tt.opt)
			s.Tick(time.Millisecond)
			if len(dev.sizes) != 1 || dev.sizes[0] != tt.want {
				t.Errorf("window sizes = %v, want [%d]", dev.sizes, tt.want)
			}
		})
	}
}

func TestRunOneReadPerTick(t *testing.T) {
	dev := &stubDevice{level: 0.2, playing: true}
	s := NewSampler(dev, 1, 50*time.Millisecond, WithLogger(quiet))

	ticks := make(chan time.Duration)
	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background(), ticks) }()

	for i := 0; i < 5; i++ {
		ticks <- 10 * time.Millisecond
	}
	// The sixth tick observes elapsed == duration and ends the loop.
	ticks <- 10 * time.Millisecond

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after duration elapsed")
	}
	if dev.reads != 5 {
		t.Errorf("device was read %d times, want 5", dev.reads)
	}
}

func TestRunReturnsWhenTicksClose(t *testing.T) {
	dev := &stubDevice{playing: true}
	s := NewSampler(dev, 1, time.Hour, WithLogger(quiet))

	ticks := make(chan time.Duration, 2)
	ticks <- time.Millisecond
	ticks <- time.Millisecond
	close(ticks)

	if err := s.Run(context.Background(), ticks); err != nil {
		t.Errorf("Run() error = %v", err)
	}
	if dev.reads != 2 {
		t.Errorf("device was read %d times, want 2", dev.reads)
	}
}

func TestRunHonorsContext(t *testing.T) {
	dev := &stubDevice{playing: true}
	s := NewSampler(dev, 1, time.Hour, WithLogger(quiet))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, make(chan time.Duration))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if dev.reads != 0 {
		t.Errorf("device was read %d times without a tick", dev.reads)
	}
}

func TestClock(t *testing.T) {
	c := NewClock(1000)

	for i := 0; i < 3; i++ {
		select {
		case d, ok := <-c.Ticks():
			if !ok {
				t.Fatal("Ticks() closed early")
			}
			if d <= 0 {
				t.Errorf("tick %d delta = %v, want > 0", i, d)
			}
		case <-time.After(time.Second):
			t.Fatal("no tick within a second")
		}
	}

	c.Stop()
	c.Stop()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-c.Ticks():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("Ticks() not closed after Stop")
		}
	}
}

func TestHandleString(t *testing.T) {
	if got := Handle(7).String(); got != "clip-7" {
		t.Errorf("Handle.String() = %q, want %q", got, "clip-7")
	}
}
