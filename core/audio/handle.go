package audio

import (
	"errors"
	"time"

	"RPGMixer/model"
)

var (
	// ErrUnsupportedFormat is returned when no decoder matches a resource.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrReleased is returned by operations on a released handle.
	ErrReleased = errors.New("channel handle released")
)

// Handle wraps one playable sound resource. Volumes are linear gains in [0,1].
//
// Handles are driven from a single goroutine; implementations only need to
// guard state they share with their own audio thread.
type Handle interface {
	// ID is unique per opened handle, never reused.
	ID() uint64
	// TrackID is the catalog id captured when the handle was opened.
	TrackID() string

	Play()
	Pause()
	// Stop halts output and rewinds; the handle stays loaded.
	Stop()
	Seek(pos time.Duration) error

	// SetVolume snaps the gain and cancels any fade in flight.
	SetVolume(v float64)
	Volume() float64
	// Fade ramps from one gain to another. A later Fade or SetVolume
	// supersedes it from wherever the gain currently is.
	Fade(from, to float64, d time.Duration)

	SetLoop(loop bool)
	Playing() bool
	Position() time.Duration
	Duration() time.Duration

	// Release frees the underlying resource. Further calls are no-ops.
	Release()
}

// Options configure a handle at open time.
type Options struct {
	Volume float64
	Loop   bool
	// OnEnd fires once per natural end of a non-looping resource. It may be
	// called from the audio thread.
	OnEnd func()
}

// Backend loads tracks into handles.
type Backend interface {
	Open(track model.Track, opts Options) (Handle, error)
}

func clampGain(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
