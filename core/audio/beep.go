package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"RPGMixer/logger"
	"RPGMixer/model"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	resampleQuality = 4
	openTimeout     = 30 * time.Second
)

// speakerLock serialises handle state with the speaker's mixing goroutine.
type speakerLock struct{}

func (speakerLock) Lock()   { speaker.Lock() }
func (speakerLock) Unlock() { speaker.Unlock() }

// BeepBackend plays handles through the system speaker. Every handle is a
// separate streamer on the speaker mixer, so layers sum naturally.
type BeepBackend struct {
	opener Opener
	rate   beep.SampleRate
	nextID atomic.Uint64

	// effects keeps decoded SFX in memory by locator; retriggers skip the decoder.
	effects *lru.Cache[string, *beep.Buffer]

	locker sync.Locker
	play   func(beep.Streamer)
}

// NewBeepBackend initialises the speaker at the given rate and buffer size.
// effectCache bounds how many decoded SFX stay in memory; 0 disables it.
func NewBeepBackend(opener Opener, sampleRate int, buffer time.Duration, effectCache int) (*BeepBackend, error) {
	rate := beep.SampleRate(sampleRate)
	if err := speaker.Init(rate, rate.N(buffer)); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	logger.Info("speaker initialized",
		logger.Int("sampleRate", sampleRate),
		logger.Duration("buffer", buffer),
		logger.Int("effectCache", effectCache))

	b := &BeepBackend{
		opener: opener,
		rate:   rate,
		locker: speakerLock{},
		play:   func(s beep.Streamer) { speaker.Play(s) },
	}
	if effectCache > 0 {
		cache, err := lru.New[string, *beep.Buffer](effectCache)
		if err != nil {
			return nil, fmt.Errorf("failed to create effect cache: %w", err)
		}
		b.effects = cache
	}
	return b, nil
}

// Close drops every streamer and shuts the speaker down.
func (b *BeepBackend) Close() {
	speaker.Clear()
	speaker.Close()
}

// Open implements Backend. The handle is attached to the speaker right away
// but outputs silence until Play.
func (b *BeepBackend) Open(track model.Track, opts Options) (Handle, error) {
	src, stream, format, err := b.load(track)
	if err != nil {
		return nil, err
	}
	h := newBeepHandle(b.nextID.Add(1), track.ID, src, stream, format, b.rate, b.locker)
	h.loop = opts.Loop
	h.onEnd = opts.OnEnd
	h.gain.set(clampGain(opts.Volume))
	b.play(h)
	return h, nil
}

func (b *BeepBackend) load(track model.Track) (io.Closer, beep.StreamSeekCloser, beep.Format, error) {
	cacheable := b.effects != nil && track.Type == model.TrackSFX
	if cacheable {
		if buf, ok := b.effects.Get(track.URL); ok {
			s := bufferStream{buf.Streamer(0, buf.Len())}
			return s, s, buf.Format(), nil
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	src, err := b.opener.Open(ctx, track.URL)
	if err != nil {
		return nil, nil, beep.Format{}, fmt.Errorf("load track %s: %w", track.ID, err)
	}
	stream, format, err := decode(track.URL, src)
	if err != nil {
		src.Close()
		return nil, nil, beep.Format{}, fmt.Errorf("decode track %s: %w", track.ID, err)
	}
	if !cacheable {
		return src, stream, format, nil
	}

	buf := beep.NewBuffer(format)
	buf.Append(stream)
	decodeErr := stream.Err()
	stream.Close()
	src.Close()
	if decodeErr != nil {
		return nil, nil, beep.Format{}, fmt.Errorf("decode track %s: %w", track.ID, decodeErr)
	}
	b.effects.Add(track.URL, buf)
	s := bufferStream{buf.Streamer(0, buf.Len())}
	return s, s, format, nil
}

// bufferStream plays a cached decoded effect; there is nothing to close.
type bufferStream struct {
	beep.StreamSeeker
}

func (bufferStream) Close() error { return nil }

type beepHandle struct {
	id      uint64
	trackID string
	mu      sync.Locker

	src    io.Closer
	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	rate   beep.SampleRate

	gain     ramp
	loop     bool
	ended    bool
	released bool
	onEnd    func()
}

func newBeepHandle(id uint64, trackID string, src io.Closer, stream beep.StreamSeekCloser,
	format beep.Format, rate beep.SampleRate, mu sync.Locker) *beepHandle {
	h := &beepHandle{
		id:      id,
		trackID: trackID,
		mu:      mu,
		src:     src,
		stream:  stream,
		format:  format,
		rate:    rate,
	}
	var out beep.Streamer = stream
	if format.SampleRate != rate {
		out = beep.Resample(resampleQuality, format.SampleRate, rate, stream)
	}
	// 新句柄处于暂停状态, Play 之前只输出静音
	h.ctrl = &beep.Ctrl{Streamer: out, Paused: true}
	return h
}

// Stream is called by the speaker mixer with the speaker lock held.
func (h *beepHandle) Stream(samples [][2]float64) (int, bool) {
	if h.released {
		return 0, false
	}

	filled := 0
	if !h.ended {
		filled = h.fill(samples)
	}
	for i := filled; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}

	// the envelope advances in real time, even through silence
	for i := range samples {
		g := h.gain.next()
		samples[i][0] *= g
		samples[i][1] *= g
	}
	return len(samples), true
}

func (h *beepHandle) fill(samples [][2]float64) int {
	filled := 0
	rewound := false
	for filled < len(samples) {
		n, ok := h.ctrl.Stream(samples[filled:])
		filled += n
		if ok && n > 0 {
			rewound = false
			continue
		}
		if err := h.stream.Err(); err != nil {
			logger.Warn("playback failure",
				logger.String("trackId", h.trackID),
				logger.Uint64("handle", h.id),
				logger.ErrorField(err))
		} else if h.loop && !rewound && h.stream.Len() > 0 {
			if err := h.stream.Seek(0); err == nil {
				rewound = true
				continue
			}
		}

		h.ended = true
		h.ctrl.Paused = true
		if h.onEnd != nil && !h.loop {
			go h.onEnd()
		}
		break
	}
	return filled
}

// Err implements beep.Streamer.
func (h *beepHandle) Err() error { return nil }

func (h *beepHandle) ID() uint64      { return h.id }
func (h *beepHandle) TrackID() string { return h.trackID }

func (h *beepHandle) Play() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	if h.ended {
		_ = h.stream.Seek(0)
		h.ended = false
	}
	h.ctrl.Paused = false
}

func (h *beepHandle) Pause() {
	h.mu.Lock()
	h.ctrl.Paused = true
	h.mu.Unlock()
}

func (h *beepHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.ctrl.Paused = true
	h.ended = false
	_ = h.stream.Seek(0)
}

func (h *beepHandle) Seek(pos time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return ErrReleased
	}
	n := h.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if l := h.stream.Len(); l > 0 && n >= l {
		n = l - 1
	}
	if err := h.stream.Seek(n); err != nil {
		return fmt.Errorf("seek track %s: %w", h.trackID, err)
	}
	h.ended = false
	return nil
}

func (h *beepHandle) SetVolume(v float64) {
	h.mu.Lock()
	h.gain.set(clampGain(v))
	h.mu.Unlock()
}

func (h *beepHandle) Volume() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.gain.cur
}

func (h *beepHandle) Fade(from, to float64, d time.Duration) {
	h.mu.Lock()
	h.gain.to(clampGain(from), clampGain(to), h.rate.N(d))
	h.mu.Unlock()
}

func (h *beepHandle) SetLoop(loop bool) {
	h.mu.Lock()
	h.loop = loop
	h.mu.Unlock()
}

func (h *beepHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.ctrl.Paused && !h.ended && !h.released
}

func (h *beepHandle) Position() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0
	}
	return h.format.SampleRate.D(h.stream.Position())
}

func (h *beepHandle) Duration() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return 0
	}
	return h.format.SampleRate.D(h.stream.Len())
}

// Release detaches the handle from the mixer on its next callback and closes the source.
func (h *beepHandle) Release() {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return
	}
	h.released = true
	h.ctrl.Paused = true
	h.mu.Unlock()

	if err := h.stream.Close(); err != nil {
		logger.Debug("close decoder", logger.String("trackId", h.trackID), logger.ErrorField(err))
	}
	_ = h.src.Close()
}
