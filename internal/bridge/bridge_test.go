package bridge

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

type call struct {
	kind    string
	payload string
}

type recorder struct {
	calls []call
}

func (r *recorder) OnAudioChunk(message string) {
	r.calls = append(r.calls, call{"chunk", message})
}

func (r *recorder) OnAudioError(reason string) {
	r.calls = append(r.calls, call{"error", reason})
}

func quiet() *log.Logger {
	return log.New(io.Discard)
}

func TestReadLines(t *testing.T) {
	input := "START\r\nCHUNK|AAAA\n\n   \nERROR|socket closed\nEND\n"
	var rec recorder

	n, err := ReadLines(context.Background(), strings.NewReader(input), &rec, quiet())
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if n != 4 {
		t.Errorf("ReadLines() delivered %d lines, want 4", n)
	}

	want := []call{
		{"chunk", "START"},
		{"chunk", "CHUNK|AAAA"},
		{"error", "socket closed"},
		{"chunk", "END"},
	}
	if len(rec.calls) != len(want) {
		t.Fatalf("got %d calls, want %d: %v", len(rec.calls), len(want), rec.calls)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, rec.calls[i], want[i])
		}
	}
}

func TestReadLinesLongChunk(t *testing.T) {
	long := "CHUNK|" + strings.Repeat("A", 1<<20)
	var rec recorder

	if _, err := ReadLines(context.Background(), strings.NewReader(long+"\n"), &rec, quiet()); err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0].payload != long {
		t.Errorf("long line not delivered intact")
	}
}

func TestReadLinesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var rec recorder

	_, err := ReadLines(ctx, strings.NewReader("START\nEND\n"), &rec, quiet())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ReadLines() error = %v, want context.Canceled", err)
	}
	if len(rec.calls) != 0 {
		t.Errorf("delivered %d calls after cancel", len(rec.calls))
	}
}

type fakeSubscriber struct {
	subject string
	cb      nats.MsgHandler
	err     error
}

func (f *fakeSubscriber) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject, f.cb = subject, cb
	return nil, nil
}

func TestNATSBridgeRoutesBySubject(t *testing.T) {
	sub := &fakeSubscriber{}
	var rec recorder
	b := NewNATSBridge(sub, "robot.voice.", &rec, quiet())

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if sub.subject != "robot.voice.*" {
		t.Errorf("subscribed to %q, want %q", sub.subject, "robot.voice.*")
	}

	for _, m := range []*nats.Msg{
		{Subject: "robot.voice.chunk", Data: []byte("START")},
		{Subject: "robot.voice.chunk", Data: []byte("CHUNK|AAAA")},
		{Subject: "robot.voice.status", Data: []byte("ignored")},
		{Subject: "robot.voice.error", Data: []byte("timeout")},
	} {
		sub.cb(m)
	}

	want := []call{
		{"chunk", "START"},
		{"chunk", "CHUNK|AAAA"},
		{"error", "timeout"},
	}
	if len(rec.calls) != len(want) {
		t.Fatalf("got %v, want %v", rec.calls, want)
	}
	for i := range want {
		if rec.calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, rec.calls[i], want[i])
		}
	}

	if err := b.Close(time.Second); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// drainingSubscriber behaves like a connection whose last message is
// still being delivered when Drain is called.
type drainingSubscriber struct {
	fakeSubscriber
	pending  *nats.Msg
	onClosed nats.ConnHandler
	stuck    bool
}

func (d *drainingSubscriber) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	d.subject, d.cb = subject, cb
	return &nats.Subscription{}, nil
}

func (d *drainingSubscriber) SetClosedHandler(cb nats.ConnHandler) {
	d.onClosed = cb
}

func (d *drainingSubscriber) Drain() error {
	if d.stuck {
		return nil
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		d.cb(d.pending)
		d.onClosed(nil)
	}()
	return nil
}

func TestNATSBridgeCloseWaitsForDrain(t *testing.T) {
	sub := &drainingSubscriber{pending: &nats.Msg{Subject: "x.chunk", Data: []byte("END")}}
	var rec recorder
	b := NewNATSBridge(sub, "x", &rec, quiet())
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := b.Close(time.Second); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if len(rec.calls) != 1 || rec.calls[0] != (call{"chunk", "END"}) {
		t.Errorf("calls after Close = %v, want the in-flight END", rec.calls)
	}
	if err := b.Close(time.Second); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNATSBridgeCloseTimeout(t *testing.T) {
	sub := &drainingSubscriber{stuck: true}
	b := NewNATSBridge(sub, "x", &recorder{}, quiet())
	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := b.Close(10 * time.Millisecond); !errors.Is(err, ErrDrainTimeout) {
		t.Errorf("Close() error = %v, want %v", err, ErrDrainTimeout)
	}
}

func TestNATSBridgeDefaultPrefix(t *testing.T) {
	b := NewNATSBridge(&fakeSubscriber{}, "", &recorder{}, nil)
	if got, want := b.Subject(), DefaultSubjectPrefix+".*"; got != want {
		t.Errorf("Subject() = %q, want %q", got, want)
	}
}

func TestNATSBridgeSubscribeError(t *testing.T) {
	boom := errors.New("not connected")
	b := NewNATSBridge(&fakeSubscriber{err: boom}, "x", &recorder{}, quiet())
	if err := b.Start(); !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want %v", err, boom)
	}
}

type fakePublisher struct {
	subjects []string
	payloads []string
	failAt   int
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.failAt > 0 && len(f.subjects)+1 == f.failAt {
		return nats.ErrConnectionClosed
	}
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, string(data))
	return nil
}

func TestForward(t *testing.T) {
	pub := &fakePublisher{}
	n, err := Forward(context.Background(), strings.NewReader("START\nERROR|gone\n\nEND\n"), pub, "a.b")
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Forward() published %d, want 3", n)
	}

	wantSubjects := []string{"a.b.chunk", "a.b.error", "a.b.chunk"}
	wantPayloads := []string{"START", "gone", "END"}
	for i := range wantSubjects {
		if pub.subjects[i] != wantSubjects[i] || pub.payloads[i] != wantPayloads[i] {
			t.Errorf("publish %d = %s %q, want %s %q",
				i, pub.subjects[i], pub.payloads[i], wantSubjects[i], wantPayloads[i])
		}
	}
}

func TestForwardPublishError(t *testing.T) {
	pub := &fakePublisher{failAt: 2}
	n, err := Forward(context.Background(), strings.NewReader("START\nEND\n"), pub, "")
	if !errors.Is(err, nats.ErrConnectionClosed) {
		t.Errorf("Forward() error = %v, want ErrConnectionClosed", err)
	}
	if n != 1 {
		t.Errorf("Forward() published %d before failing, want 1", n)
	}
}

func TestConnectRequiresURL(t *testing.T) {
	if _, err := Connect("  ", 0, quiet()); !errors.Is(err, ErrNoServers) {
		t.Errorf("Connect() error = %v, want ErrNoServers", err)
	}
}
