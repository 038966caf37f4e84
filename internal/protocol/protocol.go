// Package protocol parses the textual messages that carry a streamed audio
// transfer across the host bridge.
//
// A transfer is framed as:
//
//	START
//	CHUNK|<base64 PCM fragment>
//	...
//	END
//
// Errors travel on a separate channel and are not part of this grammar.
package protocol

import (
	"encoding/base64"
	"strings"
)

// Protocol markers.
const (
	StartMarker = "START"
	EndMarker   = "END"
	ChunkPrefix = "CHUNK|"
)

// PreviewLength is the number of characters kept by Preview.
const PreviewLength = 50

// Kind identifies the shape of a message.
type Kind int

const (
	// KindUnknown is anything that is not part of the grammar.
	KindUnknown Kind = iota
	// KindStart opens a transfer.
	KindStart
	// KindChunk carries one base64 fragment.
	KindChunk
	// KindEnd closes a transfer.
	KindEnd
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindChunk:
		return "chunk"
	case KindEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Message is one parsed protocol message.
type Message struct {
	Kind    Kind
	Payload string // Base64 text for KindChunk, the raw text for KindUnknown
}

// Parse classifies a raw message. Markers are matched exactly; only a
// trailing line terminator is removed.
func Parse(raw string) Message {
	s := strings.TrimRight(raw, "\r\n")
	switch {
	case s == StartMarker:
		return Message{Kind: KindStart}
	case s == EndMarker:
		return Message{Kind: KindEnd}
	case strings.HasPrefix(s, ChunkPrefix):
		return Message{Kind: KindChunk, Payload: s[len(ChunkPrefix):]}
	default:
		return Message{Kind: KindUnknown, Payload: s}
	}
}

// Decode returns the PCM bytes of a chunk payload.
func (m Message) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(m.Payload)
}

// Preview shortens a message for logging. Only the kept prefix is
// scanned, so it is cheap on multi-megabyte chunks.
func Preview(raw string) string {
	n := 0
	for i := range raw {
		if n == PreviewLength {
			return raw[:i] + "..."
		}
		n++
	}
	return raw
}
