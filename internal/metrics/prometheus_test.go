package metrics

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dgnsrekt/pcmbridge/internal/pcm"
	"github.com/dgnsrekt/pcmbridge/internal/receiver"
)

func TestTransitionCounters(t *testing.T) {
	m := New()

	m.Transition(receiver.StateIdle, receiver.StateReceiving, receiver.EventStart)
	m.Transition(receiver.StateReceiving, receiver.StateIdle, receiver.EventEnd)
	m.Transition(receiver.StateIdle, receiver.StateReceiving, receiver.EventStart)
	m.Transition(receiver.StateReceiving, receiver.StateIdle, receiver.EventAbort)
	// Idle END and Idle abort are not transfers.
	m.Transition(receiver.StateIdle, receiver.StateIdle, receiver.EventEnd)
	m.Transition(receiver.StateIdle, receiver.StateIdle, receiver.EventAbort)

	if got := testutil.ToFloat64(m.TransfersStarted); got != 2 {
		t.Errorf("TransfersStarted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.TransfersCompleted); got != 1 {
		t.Errorf("TransfersCompleted = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TransfersAborted); got != 1 {
		t.Errorf("TransfersAborted = %v, want 1", got)
	}
}

func TestChunkAccepted(t *testing.T) {
	m := New()
	m.ChunkAccepted(512)
	m.ChunkAccepted(1024)
	if got := testutil.ToFloat64(m.ChunksReceived); got != 2 {
		t.Errorf("ChunksReceived = %v, want 2", got)
	}
}

func TestDiagnosticKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&receiver.DecodeError{Ordinal: 1, Err: errors.New("bad")}, "decode"},
		{&receiver.TransportAbortError{Reason: "gone"}, "transport_abort"},
		{receiver.ErrEmptySession, "empty_session"},
		{pcm.ErrNoSamples, "empty_session"},
		{errors.Join(pcm.ErrNoSamples, &pcm.TruncatedPCMError{Total: 1, Discarded: 1}), "empty_session"},
		{&pcm.TruncatedPCMError{Total: 3, Discarded: 1}, "truncated_pcm"},
		{receiver.ErrChunkOutsideSession, "chunk_outside_session"},
		{fmt.Errorf("wrapped: %w", receiver.ErrUnknownMessage), "unknown_message"},
		{errors.New("something else"), "other"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := DiagnosticKind(tt.err); got != tt.want {
				t.Errorf("DiagnosticKind(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New()
	m.ObserveClip(2 * time.Second)
	m.ObserveAmplitude(0.3)
	m.ObserveDiagnostic(receiver.ErrEmptySession)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, name := range []string{
		"pcmbridge_clips_played_total 1",
		`pcmbridge_diagnostics_total{kind="empty_session"} 1`,
		"pcmbridge_clip_duration_seconds_count 1",
		"pcmbridge_amplitude_count 1",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %q", name)
		}
	}
}

func TestNewUsesIsolatedRegistries(t *testing.T) {
	a, b := New(), New()
	a.ClipsPlayed.Inc()
	if got := testutil.ToFloat64(b.ClipsPlayed); got != 0 {
		t.Errorf("second registry saw %v clips, want 0", got)
	}
}
