// Package lipsync derives a mouth-movement amplitude from whatever a playback
// device is currently emitting.
//
// Sampling is cooperative: a Sampler does one window read per host tick and
// never waits on its own. Drive it with Tick directly, or hand Run a channel
// of tick deltas (see Clock).
package lipsync

import "fmt"

// Handle identifies a clip loaded on a Device.
type Handle uint64

// String returns the string representation of the handle.
func (h Handle) String() string {
	return fmt.Sprintf("clip-%d", h)
}

// Device is the playback collaborator. Implementations must be safe for
// concurrent use since several clips may be sampled at once.
type Device interface {
	// Load prepares samples for playback and returns a handle to them.
	Load(samples []float32, sampleRate, channels int) (Handle, error)
	// Play starts playback of a loaded clip.
	Play(h Handle) error
	// IsPlaying reports whether the clip is still being emitted.
	IsPlaying(h Handle) bool
	// ReadCurrentWindow returns size samples of what the device is emitting
	// right now, zero padded when fewer are available.
	ReadCurrentWindow(h Handle, size int) []float32
}

// Releaser is implemented by devices that hold per-clip resources.
type Releaser interface {
	Release(h Handle) error
}
