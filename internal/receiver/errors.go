package receiver

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptySession is reported when END closes a transfer with no chunks.
	ErrEmptySession = errors.New("no audio chunks to process")
	// ErrChunkOutsideSession is reported for a CHUNK that arrives before START.
	ErrChunkOutsideSession = errors.New("audio chunk received outside of a transfer")
	// ErrUnknownMessage is reported for input that is not part of the protocol.
	ErrUnknownMessage = errors.New("unknown audio message")
)

// DecodeError reports a chunk whose payload is not valid base64. The chunk
// is dropped and reception continues.
type DecodeError struct {
	Ordinal int   // 1-based position of the chunk in its transfer
	Err     error // Underlying decoder error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode audio chunk %d: %v", e.Ordinal, e.Err)
}

// Unwrap returns the underlying error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TransportAbortError reports an error signal from the transport. Any
// partially received transfer is discarded.
type TransportAbortError struct {
	Reason    string
	Discarded int // Chunks thrown away
}

// Error implements the error interface.
func (e *TransportAbortError) Error() string {
	return fmt.Sprintf("audio transfer aborted by transport: %s", e.Reason)
}

// Severity represents how loudly a condition should be reported.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for conditions that drop input but keep going.
	SeverityWarning
	// SeverityError is for failures reported by the peer or its payload.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// SeverityOf classifies a reported error. None of them are fatal.
func SeverityOf(err error) Severity {
	var decodeErr *DecodeError
	var abortErr *TransportAbortError
	switch {
	case err == nil:
		return SeverityInfo
	case errors.As(err, &decodeErr), errors.As(err, &abortErr):
		return SeverityError
	default:
		return SeverityWarning
	}
}
