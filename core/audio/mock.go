package audio

import (
	"sync"
	"time"

	"RPGMixer/model"
)

// FadeCall records one Fade request on a MockHandle.
type FadeCall struct {
	From, To float64
	Duration time.Duration
}

// MockBackend is an in-memory Backend. It backs tests and the "none" audio
// output, where the mixer runs without a sound device.
type MockBackend struct {
	mu      sync.Mutex
	nextID  uint64
	handles []*MockHandle

	// Fail makes Open return the mapped error for a track id.
	Fail map[string]error
	// DefaultDuration is reported by every new handle.
	DefaultDuration time.Duration
}

// NewMock creates an empty MockBackend.
func NewMock() *MockBackend {
	return &MockBackend{
		Fail:            make(map[string]error),
		DefaultDuration: 3 * time.Minute,
	}
}

// Open implements Backend.
func (b *MockBackend) Open(track model.Track, opts Options) (Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.Fail[track.ID]; err != nil {
		return nil, err
	}
	b.nextID++
	h := &MockHandle{
		id:       b.nextID,
		track:    track,
		volume:   clampGain(opts.Volume),
		loop:     opts.Loop,
		onEnd:    opts.OnEnd,
		duration: b.DefaultDuration,
	}
	b.handles = append(b.handles, h)
	return h, nil
}

// Handles returns every handle ever opened, in open order.
func (b *MockBackend) Handles() []*MockHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MockHandle(nil), b.handles...)
}

// Live returns handles that have not been released.
func (b *MockBackend) Live() []*MockHandle {
	var out []*MockHandle
	for _, h := range b.Handles() {
		if !h.Released() {
			out = append(out, h)
		}
	}
	return out
}

// LiveFor returns unreleased handles for one track.
func (b *MockBackend) LiveFor(trackID string) []*MockHandle {
	var out []*MockHandle
	for _, h := range b.Live() {
		if h.TrackID() == trackID {
			out = append(out, h)
		}
	}
	return out
}

// MockHandle is a Handle whose fades land instantly but are recorded.
type MockHandle struct {
	mu sync.Mutex

	id       uint64
	track    model.Track
	volume   float64
	loop     bool
	playing  bool
	released bool
	position time.Duration
	duration time.Duration
	onEnd    func()

	fades      []FadeCall
	seeks      []time.Duration
	playCalls  int
	pauseCalls int
	stopCalls  int
}

func (h *MockHandle) ID() uint64      { return h.id }
func (h *MockHandle) TrackID() string { return h.track.ID }

func (h *MockHandle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.playing = true
	h.playCalls++
}

func (h *MockHandle) Pause() {
	h.mu.Lock()
	h.playing = false
	h.pauseCalls++
	h.mu.Unlock()
}

func (h *MockHandle) Stop() {
	h.mu.Lock()
	h.playing = false
	h.position = 0
	h.stopCalls++
	h.mu.Unlock()
}

func (h *MockHandle) Seek(pos time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrReleased
	}
	h.position = pos
	h.seeks = append(h.seeks, pos)
	return nil
}

func (h *MockHandle) SetVolume(v float64) {
	h.mu.Lock()
	h.volume = clampGain(v)
	h.mu.Unlock()
}

func (h *MockHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.volume
}

func (h *MockHandle) Fade(from, to float64, d time.Duration) {
	h.mu.Lock()
	h.fades = append(h.fades, FadeCall{From: from, To: to, Duration: d})
	h.volume = clampGain(to)
	h.mu.Unlock()
}

func (h *MockHandle) SetLoop(loop bool) {
	h.mu.Lock()
	h.loop = loop
	h.mu.Unlock()
}

func (h *MockHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing && !h.released
}

func (h *MockHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.position
}

func (h *MockHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.duration
}

func (h *MockHandle) Release() {
	h.mu.Lock()
	h.released = true
	h.playing = false
	h.mu.Unlock()
}

// Test accessors.

func (h *MockHandle) Track() model.Track { return h.track }

func (h *MockHandle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *MockHandle) Looping() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loop
}

func (h *MockHandle) Fades() []FadeCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]FadeCall(nil), h.fades...)
}

func (h *MockHandle) Seeks() []time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]time.Duration(nil), h.seeks...)
}

func (h *MockHandle) PlayCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playCalls
}

func (h *MockHandle) PauseCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pauseCalls
}

func (h *MockHandle) StopCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopCalls
}

// SetPosition moves the reported transport position.
func (h *MockHandle) SetPosition(d time.Duration) {
	h.mu.Lock()
	h.position = d
	h.mu.Unlock()
}

// Finish simulates the resource reaching its natural end. Looping handles
// rewind silently; others stop and fire OnEnd synchronously.
func (h *MockHandle) Finish() {
	h.mu.Lock()
	if h.released || !h.playing {
		h.mu.Unlock()
		return
	}
	if h.loop {
		h.position = 0
		h.mu.Unlock()
		return
	}
	h.playing = false
	h.position = h.duration
	onEnd := h.onEnd
	h.mu.Unlock()

	if onEnd != nil {
		onEnd()
	}
}
