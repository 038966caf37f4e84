// Package pcm reassembles streamed 16-bit PCM fragments into normalized
// floating-point clips.
//
// The wire format is fixed: signed 16-bit little-endian samples, mono,
// 24000 Hz. Nothing about it is negotiated per transfer.
package pcm

import "time"

// Audio format constants for streamed speech.
const (
	// SampleRate is the audio sample rate in Hz.
	SampleRate = 24000
	// Channels is the number of audio channels (1 = mono).
	Channels = 1
	// BitDepth is the bit depth per sample.
	BitDepth = 16
	// BytesPerSample is the number of bytes per sample.
	BytesPerSample = BitDepth / 8
)

// scale maps the int16 range onto [-1.0, 1.0).
const scale = 32768

// Format describes PCM audio parameters.
type Format struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// DefaultFormat returns the format every transfer is expected to use.
func DefaultFormat() Format {
	return Format{
		SampleRate: SampleRate,
		Channels:   Channels,
		BitDepth:   BitDepth,
	}
}

// BytesPerFrame returns the number of bytes per frame (one sample per channel).
func (f Format) BytesPerFrame() int {
	return f.BitDepth / 8 * f.Channels
}

// Duration returns the playback length of sampleCount frames.
func (f Format) Duration(sampleCount int) time.Duration {
	return Duration(sampleCount, f.SampleRate)
}

// Duration returns sampleCount / sampleRate as a time.Duration. Integer
// arithmetic keeps it exact to the nanosecond.
func Duration(sampleCount, sampleRate int) time.Duration {
	if sampleRate <= 0 || sampleCount <= 0 {
		return 0
	}
	return time.Duration(sampleCount) * time.Second / time.Duration(sampleRate)
}
