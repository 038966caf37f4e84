// Package receiver reassembles START/CHUNK/END transfers into ordered chunk
// sequences.
//
// A Receiver is not safe for concurrent use. Callers deliver messages one at
// a time in arrival order, which is what the bridge dispatcher guarantees.
package receiver

import (
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/pcmbridge/internal/protocol"
)

// Handoff receives the chunks of a completed transfer. Ownership moves to
// the callee; the receiver keeps no reference.
type Handoff func(chunks [][]byte)

// Reporter receives every recovered error and warning.
type Reporter func(err error)

// Observer is notified of accepted transitions and chunks.
type Observer interface {
	Transition(from, to State, event Event)
	ChunkAccepted(size int)
}

// Stats counts what the receiver has seen since it was created.
type Stats struct {
	SessionsStarted   int
	SessionsCompleted int
	SessionsDiscarded int // Restarted before END
	SessionsAborted   int
	SessionsEmpty     int
	ChunksAccepted    int
	ChunksDropped     int
	BytesAccepted     int
}

// Receiver is a two-state machine over protocol messages.
type Receiver struct {
	state    State
	chunks   [][]byte
	received int // CHUNK messages seen in the current transfer
	bytes    int

	handoff  Handoff
	report   Reporter
	observer Observer
	logger   *log.Logger
	stats    Stats
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithLogger sets the logger. The default is log.Default().
func WithLogger(l *log.Logger) Option {
	return func(r *Receiver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithReporter sets the diagnostic hook.
func WithReporter(fn Reporter) Option {
	return func(r *Receiver) {
		r.report = fn
	}
}

// WithObserver sets the transition observer.
func WithObserver(o Observer) Option {
	return func(r *Receiver) {
		r.observer = o
	}
}

// New creates an idle receiver that passes completed transfers to handoff.
func New(handoff Handoff, opts ...Option) *Receiver {
	r := &Receiver{
		state:   StateIdle,
		handoff: handoff,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns the current state.
func (r *Receiver) State() State {
	return r.state
}

// Pending returns the number of chunks held by the current transfer.
func (r *Receiver) Pending() int {
	return len(r.chunks)
}

// Stats returns a snapshot of the counters.
func (r *Receiver) Stats() Stats {
	return r.stats
}

// OnAudioChunk handles one protocol message.
func (r *Receiver) OnAudioChunk(message string) {
	r.logger.Debug("Received audio message", "message", protocol.Preview(message))

	msg := protocol.Parse(message)
	switch msg.Kind {
	case protocol.KindStart:
		r.start()
	case protocol.KindChunk:
		r.chunk(msg)
	case protocol.KindEnd:
		r.end()
	default:
		r.logger.Warn("Ignoring unknown audio message", "message", protocol.Preview(msg.Payload))
		r.emit(ErrUnknownMessage)
	}
}

// OnAudioError aborts the current transfer, discarding any buffered chunks.
func (r *Receiver) OnAudioError(reason string) {
	discarded := len(r.chunks)
	from := r.state
	r.transition(EventAbort)
	r.clear()

	if from == StateReceiving {
		r.stats.SessionsAborted++
	}
	r.logger.Error("Audio error from transport", "reason", reason, "discarded_chunks", discarded)
	r.emit(&TransportAbortError{Reason: reason, Discarded: discarded})
}

func (r *Receiver) start() {
	if r.state == StateReceiving {
		r.stats.SessionsDiscarded++
		r.logger.Debug("Discarding incomplete audio transfer", "chunks", len(r.chunks))
	}
	r.clear()
	r.transition(EventStart)
	r.stats.SessionsStarted++
	r.logger.Debug("Started receiving audio chunks")
}

func (r *Receiver) chunk(msg protocol.Message) {
	if r.state != StateReceiving {
		r.stats.ChunksDropped++
		r.logger.Warn("Ignoring audio chunk outside of a transfer")
		r.emit(ErrChunkOutsideSession)
		return
	}

	r.received++
	data, err := msg.Decode()
	if err != nil {
		r.stats.ChunksDropped++
		decodeErr := &DecodeError{Ordinal: r.received, Err: err}
		r.logger.Error("Failed to decode audio chunk", "chunk", r.received, "error", err)
		r.emit(decodeErr)
		return
	}
	if len(data) == 0 {
		r.logger.Debug("Skipping empty audio chunk", "chunk", r.received)
		return
	}

	r.transition(EventChunk)
	r.chunks = append(r.chunks, data)
	r.bytes += len(data)
	r.stats.ChunksAccepted++
	r.stats.BytesAccepted += len(data)
	if r.observer != nil {
		r.observer.ChunkAccepted(len(data))
	}
	r.logger.Debug("Received chunk", "count", len(r.chunks), "size", len(data))
}

func (r *Receiver) end() {
	chunks, total := r.chunks, r.bytes
	r.chunks, r.bytes, r.received = nil, 0, 0
	r.transition(EventEnd)

	r.logger.Debug("Finished receiving audio chunks", "count", len(chunks), "bytes", humanize.Bytes(uint64(total)))
	if len(chunks) == 0 {
		r.stats.SessionsEmpty++
		r.logger.Warn("No audio chunks to process")
		r.emit(ErrEmptySession)
		return
	}

	r.stats.SessionsCompleted++
	if r.handoff != nil {
		r.handoff(chunks)
	}
}

func (r *Receiver) transition(e Event) {
	to, ok := next(r.state, e)
	if !ok {
		return
	}
	from := r.state
	r.state = to
	if r.observer != nil {
		r.observer.Transition(from, to, e)
	}
}

func (r *Receiver) clear() {
	r.chunks = nil
	r.bytes = 0
	r.received = 0
}

func (r *Receiver) emit(err error) {
	if r.report != nil {
		r.report(err)
	}
}
