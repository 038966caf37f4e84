// Package bridge carries protocol messages from a transport to a Handler.
//
// Two transports exist: newline-delimited text (a file or stdin) and NATS.
// Both deliver messages to the handler from a single goroutine, in the order
// they arrived.
package bridge

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// ErrorPrefix marks a line that carries a transport error instead of a
// protocol message.
const ErrorPrefix = "ERROR|"

// maxLineSize bounds a single line. One chunk of a long utterance can be
// several hundred kilobytes of base64.
const maxLineSize = 16 * 1024 * 1024

// Handler receives the two host callbacks.
type Handler interface {
	OnAudioChunk(message string)
	OnAudioError(reason string)
}

// ReadLines feeds every non-blank line of r to h until EOF or ctx is done.
// Lines starting with ErrorPrefix are passed to OnAudioError without the
// prefix. It returns the number of lines delivered.
func ReadLines(ctx context.Context, r io.Reader, h Handler, logger *log.Logger) (int, error) {
	if logger == nil {
		logger = log.Default()
	}

	n, err := scanLines(ctx, r, func(line string) error {
		deliver(h, line)
		return nil
	})
	if err != nil {
		return n, err
	}
	logger.Debug("Finished reading audio messages", "lines", n)
	return n, nil
}

// scanLines calls fn for every non-blank line of r with any trailing CR
// removed, stopping at the first error.
func scanLines(ctx context.Context, r io.Reader, fn func(line string) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	n := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := fn(line); err != nil {
			return n, err
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("read line %d: %w", n+1, err)
	}
	return n, nil
}

func deliver(h Handler, line string) {
	if reason, ok := strings.CutPrefix(line, ErrorPrefix); ok {
		h.OnAudioError(reason)
		return
	}
	h.OnAudioChunk(line)
}
