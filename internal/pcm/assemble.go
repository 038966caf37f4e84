package pcm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrNoSamples is returned when the assembled buffer holds no complete sample.
var ErrNoSamples = errors.New("no complete PCM samples to assemble")

// TruncatedPCMError reports a buffer whose length is not sample aligned.
// It is a warning: Assemble still returns a usable clip alongside it.
type TruncatedPCMError struct {
	Total     int // Concatenated length in bytes
	Discarded int // Trailing bytes dropped
}

// Error implements the error interface.
func (e *TruncatedPCMError) Error() string {
	return fmt.Sprintf("pcm buffer of %d bytes is not sample aligned: dropped %d trailing byte(s)", e.Total, e.Discarded)
}

// Clip is a playable mono clip of normalized samples.
type Clip struct {
	Samples        []float32
	SampleRate     int
	Channels       int
	Duration       time.Duration
	DiscardedBytes int
}

// Len returns the number of samples in the clip.
func (c *Clip) Len() int {
	return len(c.Samples)
}

// Seconds returns the clip length in seconds.
func (c *Clip) Seconds() float64 {
	if c.SampleRate == 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Concat copies chunks into one buffer in arrival order.
func Concat(chunks [][]byte) []byte {
	total := 0
	for _, chunk := range chunks {
		total += len(chunk)
	}

	buf := make([]byte, total)
	pos := 0
	for _, chunk := range chunks {
		pos += copy(buf[pos:], chunk)
	}
	return buf
}

// Assemble concatenates chunks and converts them into a Clip.
//
// An odd-length buffer loses its trailing byte; the clip is returned together
// with a *TruncatedPCMError describing the loss. ErrNoSamples is returned when
// not a single complete sample remains.
func Assemble(chunks [][]byte) (*Clip, error) {
	data := Concat(chunks)

	var warn error
	discarded := len(data) % BytesPerSample
	if discarded != 0 {
		warn = &TruncatedPCMError{Total: len(data), Discarded: discarded}
		data = data[:len(data)-discarded]
	}

	if len(data) == 0 {
		if warn != nil {
			return nil, errors.Join(ErrNoSamples, warn)
		}
		return nil, ErrNoSamples
	}

	samples := ToFloat32(data)
	return &Clip{
		Samples:        samples,
		SampleRate:     SampleRate,
		Channels:       Channels,
		Duration:       Duration(len(samples), SampleRate),
		DiscardedBytes: discarded,
	}, warn
}

// ToFloat32 converts little-endian signed 16-bit samples to floats in
// [-1.0, 1.0). Only complete byte pairs are read.
//
// The mapping divides by 32768, so -32768 becomes exactly -1.0 while 32767
// stays just below 1.0.
func ToFloat32(data []byte) []float32 {
	n := len(data) / BytesPerSample
	samples := make([]float32, n)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(data[i*2:]))
		samples[i] = float32(s) / scale
	}
	return samples
}

// FromFloat32 is the inverse of ToFloat32. Values are rounded to the nearest
// step and clamped to the int16 range, so 1.0 encodes as 32767.
func FromFloat32(samples []float32) []byte {
	data := make([]byte, len(samples)*BytesPerSample)
	for i, v := range samples {
		scaled := math.Round(float64(v) * scale)
		switch {
		case math.IsNaN(scaled):
			scaled = 0
		case scaled > math.MaxInt16:
			scaled = math.MaxInt16
		case scaled < math.MinInt16:
			scaled = math.MinInt16
		}
		binary.LittleEndian.PutUint16(data[i*2:], uint16(int16(scaled)))
	}
	return data
}
