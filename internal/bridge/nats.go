package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/nats-io/nats.go"
)

// DefaultSubjectPrefix is the subject namespace used when none is configured.
const DefaultSubjectPrefix = "pcmbridge.audio"

// Subject suffixes under the prefix.
const (
	ChunkSubject = "chunk"
	ErrorSubject = "error"
)

// ErrNoServers is returned by Connect without a server URL.
var ErrNoServers = errors.New("no NATS server configured")

// ErrDrainTimeout is returned by Close when the connection did not finish
// draining in time.
var ErrDrainTimeout = errors.New("timed out draining NATS connection")

// Subscriber is the part of *nats.Conn the bridge needs to listen.
type Subscriber interface {
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// drainer is the part of *nats.Conn used to stop delivery. Drain returns
// before pending callbacks have run; the closed handler fires after.
type drainer interface {
	SetClosedHandler(cb nats.ConnHandler)
	Drain() error
}

// Publisher is the part of *nats.Conn the bridge needs to send.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect opens a NATS connection named after the bridge.
func Connect(url string, timeout time.Duration, logger *log.Logger) (*nats.Conn, error) {
	if strings.TrimSpace(url) == "" {
		return nil, ErrNoServers
	}
	if logger == nil {
		logger = log.Default()
	}

	conn, err := nats.Connect(url,
		nats.Name("pcmbridge"),
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("Disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("Reconnected to NATS", "server", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	logger.Info("Connected to NATS", "server", url)
	return conn, nil
}

// NATSBridge delivers messages published under a subject prefix to a
// Handler. A single wildcard subscription keeps chunk and error messages in
// publish order.
type NATSBridge struct {
	sub     Subscriber
	prefix  string
	handler Handler
	logger  *log.Logger

	subscription *nats.Subscription
}

// NewNATSBridge creates a bridge. An empty prefix uses DefaultSubjectPrefix.
func NewNATSBridge(sub Subscriber, prefix string, h Handler, logger *log.Logger) *NATSBridge {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = log.Default()
	}
	return &NATSBridge{
		sub:     sub,
		prefix:  strings.TrimSuffix(prefix, "."),
		handler: h,
		logger:  logger,
	}
}

// Subject returns the wildcard subject the bridge listens on.
func (b *NATSBridge) Subject() string {
	return b.prefix + ".*"
}

// Start subscribes to the prefix.
func (b *NATSBridge) Start() error {
	sub, err := b.sub.Subscribe(b.Subject(), b.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", b.Subject(), err)
	}
	b.subscription = sub
	b.logger.Info("Listening for audio", "subject", b.Subject())
	return nil
}

// Close stops delivery and waits up to timeout for in-flight messages to
// reach the handler. When the subscriber is a connection, the whole
// connection is drained and closed. No handler call is made after Close
// returns nil.
func (b *NATSBridge) Close(timeout time.Duration) error {
	if b.subscription == nil {
		return nil
	}
	defer func() { b.subscription = nil }()

	d, ok := b.sub.(drainer)
	if !ok {
		return b.subscription.Drain()
	}

	closed := make(chan struct{})
	var once sync.Once
	d.SetClosedHandler(func(*nats.Conn) {
		once.Do(func() { close(closed) })
	})
	if err := d.Drain(); err != nil {
		return fmt.Errorf("drain: %w", err)
	}

	select {
	case <-closed:
		b.logger.Debug("Drained NATS connection")
		return nil
	case <-time.After(timeout):
		return ErrDrainTimeout
	}
}

func (b *NATSBridge) handle(msg *nats.Msg) {
	switch strings.TrimPrefix(msg.Subject, b.prefix+".") {
	case ChunkSubject:
		b.handler.OnAudioChunk(string(msg.Data))
	case ErrorSubject:
		b.handler.OnAudioError(string(msg.Data))
	default:
		b.logger.Warn("Ignoring message on unexpected subject", "subject", msg.Subject)
	}
}

// Forward publishes every non-blank line of r under prefix, the way a host
// would. Lines starting with ErrorPrefix go to the error subject.
func Forward(ctx context.Context, r io.Reader, pub Publisher, prefix string) (int, error) {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	prefix = strings.TrimSuffix(prefix, ".")

	return scanLines(ctx, r, func(line string) error {
		subject, data := prefix+"."+ChunkSubject, line
		if reason, ok := strings.CutPrefix(line, ErrorPrefix); ok {
			subject, data = prefix+"."+ErrorSubject, reason
		}
		if err := pub.Publish(subject, []byte(data)); err != nil {
			return fmt.Errorf("publish %s: %w", subject, err)
		}
		return nil
	})
}
