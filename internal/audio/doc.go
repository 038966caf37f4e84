// Package audio provides playback devices for assembled clips: a real
// device backed by oto/v3 and a silent mock that advances in wall-clock
// time. Both satisfy lipsync.Device.
package audio
