package audio

import (
	"bytes"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"
)

// bytesPerFloat is the width of one float32 sample on the device stream.
const bytesPerFloat = 4

// encodeFloat32LE lays samples out as little-endian float32, the format the
// device context is opened with.
func encodeFloat32LE(samples []float32) []byte {
	data := make([]byte, len(samples)*bytesPerFloat)
	for i, v := range samples {
		binary.LittleEndian.PutUint32(data[i*bytesPerFloat:], math.Float32bits(v))
	}
	return data
}

// positionTrackingReader wraps a reader and tracks how many bytes the
// device has pulled so far.
type positionTrackingReader struct {
	reader   *bytes.Reader
	position int64      // atomic
	mu       sync.Mutex // protects reader operations
}

func newPositionTrackingReader(data []byte) *positionTrackingReader {
	return &positionTrackingReader{
		reader: bytes.NewReader(data),
	}
}

func (ptr *positionTrackingReader) Read(p []byte) (n int, err error) {
	ptr.mu.Lock()
	defer ptr.mu.Unlock()

	n, err = ptr.reader.Read(p)
	if n > 0 {
		atomic.AddInt64(&ptr.position, int64(n))
	}
	return n, err
}

func (ptr *positionTrackingReader) Position() int64 {
	return atomic.LoadInt64(&ptr.position)
}

// window copies size samples starting at sample index start, zero padding
// anything outside samples.
func window(samples []float32, start, size int) []float32 {
	out := make([]float32, size)
	if start < 0 {
		start = 0
	}
	if start >= len(samples) {
		return out
	}
	copy(out, samples[start:])
	return out
}
