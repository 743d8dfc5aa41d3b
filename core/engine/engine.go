package engine

import (
	"math"
	"time"

	"RPGMixer/core/audio"
	"RPGMixer/core/playback"
	"RPGMixer/logger"
	"RPGMixer/model"
)

// Transition timings.
const (
	MusicFadeOut    = 1000 * time.Millisecond
	MusicFadeIn     = 2000 * time.Millisecond
	ResumeFadeIn    = 1000 * time.Millisecond
	AmbienceFadeOut = 1000 * time.Millisecond
	AmbienceGlide   = 500 * time.Millisecond

	// GlideThreshold is the smallest gain delta that is glided instead of set.
	GlideThreshold = 0.01
)

// DefaultFrameInterval caps transport sampling at 60 Hz.
const DefaultFrameInterval = time.Second / 60

// Gain converts a 0..100 volume into a 0..1 gain.
func Gain(volume int) float64 {
	return float64(volume) / 100
}

// LayerGain is the composite gain of an ambience layer.
func LayerGain(volume, master int, muted bool) float64 {
	if muted {
		return 0
	}
	return Gain(volume) * Gain(master)
}

type releasing struct {
	handle audio.Handle
	timer  Timer
}

// load is one Backend.Open running off the loop goroutine. Only the latest
// load of a slot may install its handle; older results are released.
type load struct {
	seq   uint64
	track model.Track
}

// Engine drives the channel pool toward the store's desired state. All
// methods must run on the loop goroutine.
//
// Music and ambience are opened on a separate goroutine (fetching a remote
// file can take seconds) and installed when the result is posted back.
// Effects are short and cached, so they open inline.
type Engine struct {
	store   *playback.Store
	backend audio.Backend
	sched   Scheduler
	post    func(func())
	spawn   func(func())
	frame   time.Duration

	pool      *audio.Pool
	releasing map[uint64]releasing
	sampler   Timer

	loadSeq      uint64
	musicLoad    *load
	layerLoads   map[string]*load
	lastMaster   int
	lastTrigger  uint64
	failedLayers map[string]bool
	closed       bool
}

// New wires an engine. post must run its argument on the loop goroutine; it is
// used for audio callbacks, which arrive on arbitrary goroutines.
func New(store *playback.Store, backend audio.Backend, sched Scheduler, post func(func()), frame time.Duration) *Engine {
	if frame <= 0 {
		frame = DefaultFrameInterval
	}
	return &Engine{
		store:        store,
		backend:      backend,
		sched:        sched,
		post:         post,
		spawn:        func(fn func()) { go fn() },
		frame:        frame,
		pool:         audio.NewPool(),
		releasing:    make(map[uint64]releasing),
		layerLoads:   make(map[string]*load),
		lastMaster:   -1,
		failedLayers: make(map[string]bool),
	}
}

// Loading reports whether a music or ambience load is still in flight.
func (e *Engine) Loading() bool {
	return e.musicLoad != nil || len(e.layerLoads) > 0
}

func (e *Engine) nextLoad(track model.Track) *load {
	e.loadSeq++
	return &load{seq: e.loadSeq, track: track}
}

// Start subscribes to the store and runs the first pass.
func (e *Engine) Start() {
	e.store.Subscribe(e.onChange)
	e.reconcile(playback.ChangeAudible)
}

func (e *Engine) onChange(c playback.Change) {
	if !c.Has(playback.ChangeAudible) {
		return
	}
	e.reconcile(c)
}

// Reconcile runs one full pass. Passes are idempotent.
func (e *Engine) Reconcile() {
	e.reconcile(playback.ChangeAudible &^ playback.ChangeSilence)
}

func (e *Engine) reconcile(c playback.Change) {
	if e.closed {
		return
	}
	st := e.store.State()
	masterChanged := st.MasterVolume != e.lastMaster
	e.lastMaster = st.MasterVolume

	if c.Has(playback.ChangeSilence) {
		e.silenceEffects()
	}
	e.reconcileMusic(st, masterChanged)
	e.reconcileAmbience(st)
	e.reconcileSFX(st, masterChanged)
}

// Pool exposes the live channels for inspection.
func (e *Engine) Pool() *audio.Pool { return e.pool }

// Close stops sampling and releases every handle, including those still fading out.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.stopSampler()
	e.musicLoad = nil
	clear(e.layerLoads)
	for id, r := range e.releasing {
		r.timer.Stop()
		r.handle.Stop()
		r.handle.Release()
		delete(e.releasing, id)
	}
	for _, ch := range e.pool.Drain() {
		ch.Handle.Stop()
		ch.Handle.Release()
	}
	logger.Info("mixer engine closed")
}

// fadeOutAndRelease fades h from its current gain to silence and releases it
// once the fade is over.
func (e *Engine) fadeOutAndRelease(h audio.Handle, d time.Duration) {
	h.Fade(h.Volume(), 0, d)
	id := h.ID()
	t := e.sched.After(d, func() {
		delete(e.releasing, id)
		h.Stop()
		h.Release()
	})
	e.releasing[id] = releasing{handle: h, timer: t}
}

// Releasing counts handles that are fading out.
func (e *Engine) Releasing() int { return len(e.releasing) }

func (e *Engine) reconcileMusic(st playback.State, masterChanged bool) {
	master := Gain(st.MasterVolume)
	ch := e.pool.Music()

	switch {
	case st.Music == nil:
		e.musicLoad = nil
		if ch != nil {
			e.pool.TakeMusic()
			e.fadeOutAndRelease(ch.Handle, MusicFadeOut)
		}

	case ch != nil && ch.TrackID == st.Music.ID:
		h := ch.Handle
		h.SetLoop(st.Mode == playback.ModeLoop)
		switch {
		case st.IsPlaying && !h.Playing():
			h.Play()
			h.Fade(0, master, ResumeFadeIn)
			ch.Target = master
		case !st.IsPlaying && h.Playing():
			h.Pause()
		case masterChanged || ch.Target != master:
			h.SetVolume(master)
			ch.Target = master
		}

	default:
		if ch != nil {
			e.pool.TakeMusic()
			e.fadeOutAndRelease(ch.Handle, MusicFadeOut)
		}
		// a pending load of the same track keeps running, even while paused
		if e.musicLoad != nil && e.musicLoad.track.ID == st.Music.ID {
			break
		}
		e.musicLoad = nil
		if st.IsPlaying {
			e.openMusic(*st.Music, st.Mode == playback.ModeLoop)
		}
	}

	e.syncTransport()
}

// syncTransport applies a pending seek and runs the sampler only while the
// music channel is audible.
func (e *Engine) syncTransport() {
	st := e.store.State()
	e.applySeek(st)
	if m := e.pool.Music(); m != nil && st.IsPlaying && m.Handle.Playing() {
		e.startSampler()
	} else {
		e.stopSampler()
	}
}

func (e *Engine) openMusic(track model.Track, loop bool) {
	l := e.nextLoad(track)
	e.musicLoad = l
	ch := &audio.Channel{TrackID: track.ID}
	opts := audio.Options{
		Volume: 0,
		Loop:   loop,
		OnEnd:  func() { e.post(func() { e.onMusicEnd(ch) }) },
	}
	e.spawn(func() {
		h, err := e.backend.Open(track, opts)
		e.post(func() { e.musicLoaded(l, ch, h, err) })
	})
}

// musicLoaded installs a finished music load. A failed load pauses the store,
// so the state never claims playback without a channel; the next play or
// resume intent tries again.
func (e *Engine) musicLoaded(l *load, ch *audio.Channel, h audio.Handle, err error) {
	current := !e.closed && e.musicLoad == l
	if current {
		e.musicLoad = nil
	}
	if err != nil {
		logger.Warn("failed to load music track",
			logger.String("trackId", l.track.ID),
			logger.String("url", l.track.URL),
			logger.ErrorField(err))
		if current {
			if st := e.store.State(); st.Music != nil && st.Music.ID == l.track.ID {
				e.store.PauseMusic()
			}
		}
		return
	}

	st := e.store.State()
	if !current || st.Music == nil || st.Music.ID != l.track.ID || e.pool.Music() != nil {
		logger.Debug("discarding stale music load", logger.String("trackId", l.track.ID))
		h.Release()
		return
	}

	master := Gain(st.MasterVolume)
	ch.Handle = h
	ch.Target = master
	e.pool.SetMusic(ch)
	h.SetLoop(st.Mode == playback.ModeLoop)
	if st.IsPlaying {
		h.Play()
		h.Fade(0, master, MusicFadeIn)
	}
	logger.Debug("music channel opened", logger.String("trackId", l.track.ID), logger.Uint64("handle", h.ID()))
	e.syncTransport()
}

func (e *Engine) applySeek(st playback.State) {
	if st.Seek == nil {
		return
	}
	if ch := e.pool.Music(); ch != nil {
		pos := time.Duration(*st.Seek * float64(time.Second))
		if err := ch.Handle.Seek(pos); err != nil {
			logger.Warn("seek failed", logger.String("trackId", ch.TrackID), logger.ErrorField(err))
		}
	}
	e.store.ClearSeek()
}

// onMusicEnd advances the playlist after a non-looping track ran out.
func (e *Engine) onMusicEnd(ch *audio.Channel) {
	if e.closed || e.pool.Music() != ch {
		return
	}
	st := e.store.State()
	if !st.IsPlaying {
		return
	}
	next := e.store.NextTrack()
	if next == nil {
		return
	}
	logger.Debug("music track ended",
		logger.String("trackId", ch.TrackID),
		logger.String("nextTrackId", next.ID))
	e.store.PlayMusic(*next, nil)
}

func (e *Engine) startSampler() {
	if e.sampler != nil {
		return
	}
	e.sampler = e.sched.Every(e.frame, e.sample)
}

func (e *Engine) stopSampler() {
	if e.sampler == nil {
		return
	}
	e.sampler.Stop()
	e.sampler = nil
}

func (e *Engine) sample() {
	ch := e.pool.Music()
	if e.closed || ch == nil || !ch.Handle.Playing() {
		e.stopSampler()
		return
	}
	e.store.SetMusicProgress(ch.Handle.Position().Seconds(), ch.Handle.Duration().Seconds())
}

func (e *Engine) reconcileAmbience(st playback.State) {
	desired := make(map[string]struct{}, len(st.Ambience))
	for _, l := range st.Ambience {
		desired[l.InstanceID] = struct{}{}
	}
	for _, id := range e.pool.LayerIDs() {
		if _, ok := desired[id]; !ok {
			ch := e.pool.TakeLayer(id)
			e.fadeOutAndRelease(ch.Handle, AmbienceFadeOut)
		}
	}
	for id := range e.failedLayers {
		if _, ok := desired[id]; !ok {
			delete(e.failedLayers, id)
		}
	}

	for id := range e.layerLoads {
		if _, ok := desired[id]; !ok {
			delete(e.layerLoads, id)
		}
	}

	for _, l := range st.Ambience {
		ch, ok := e.pool.Layer(l.InstanceID)
		if !ok {
			if !e.failedLayers[l.InstanceID] && e.layerLoads[l.InstanceID] == nil {
				e.openLayer(l)
			}
			continue
		}
		e.retargetLayer(ch, l, st.MasterVolume)
	}
}

func (e *Engine) retargetLayer(ch *audio.Channel, l playback.Layer, master int) {
	target := LayerGain(l.Volume, master, l.Muted)
	if ch.Target == target {
		return
	}
	ch.Target = target
	if cur := ch.Handle.Volume(); math.Abs(cur-target) > GlideThreshold {
		ch.Handle.Fade(cur, target, AmbienceGlide)
	} else {
		ch.Handle.SetVolume(target)
	}
}

func (e *Engine) openLayer(layer playback.Layer) {
	l := e.nextLoad(layer.Track)
	id := layer.InstanceID
	e.layerLoads[id] = l
	e.spawn(func() {
		h, err := e.backend.Open(layer.Track, audio.Options{Volume: 0, Loop: true})
		e.post(func() { e.layerLoaded(id, l, h, err) })
	})
}

// layerLoaded installs a finished ambience load if its layer is still wanted.
func (e *Engine) layerLoaded(instanceID string, l *load, h audio.Handle, err error) {
	current := !e.closed && e.layerLoads[instanceID] == l
	if current {
		delete(e.layerLoads, instanceID)
	}
	if err != nil {
		if current {
			e.failedLayers[instanceID] = true
		}
		logger.Warn("failed to load ambience layer",
			logger.String("trackId", l.track.ID),
			logger.String("instanceId", instanceID),
			logger.ErrorField(err))
		return
	}

	st := e.store.State()
	var layer *playback.Layer
	for i := range st.Ambience {
		if st.Ambience[i].InstanceID == instanceID {
			layer = &st.Ambience[i]
			break
		}
	}
	if _, exists := e.pool.Layer(instanceID); !current || layer == nil || exists {
		h.Release()
		return
	}
	h.Play()
	ch := &audio.Channel{Handle: h, TrackID: l.track.ID, Key: instanceID, Target: -1}
	e.pool.PutLayer(ch)
	e.retargetLayer(ch, *layer, st.MasterVolume)
}

func (e *Engine) reconcileSFX(st playback.State, masterChanged bool) {
	master := Gain(st.MasterVolume)
	for _, req := range st.SFXRequests {
		if req.TriggerID <= e.lastTrigger {
			continue
		}
		e.lastTrigger = req.TriggerID
		e.playSFX(req, master)
	}
	if masterChanged {
		for _, ch := range e.pool.Effects() {
			ch.Handle.SetVolume(master)
			ch.Target = master
		}
	}
}

func (e *Engine) playSFX(req playback.SFXRequest, master float64) {
	if old, ok := e.pool.Effect(req.Track.ID); ok {
		e.pool.TakeEffect(old.TrackID, old.Trigger)
		old.Handle.Stop()
		old.Handle.Release()
	}

	ch := &audio.Channel{TrackID: req.Track.ID, Trigger: req.TriggerID, Target: master}
	h, err := e.backend.Open(req.Track, audio.Options{
		Volume: master,
		OnEnd:  func() { e.post(func() { e.onSFXEnd(ch) }) },
	})
	if err != nil {
		logger.Warn("failed to load sound effect",
			logger.String("trackId", req.Track.ID),
			logger.Uint64("trigger", req.TriggerID),
			logger.ErrorField(err))
		e.store.SFXFinished(req.Track.ID)
		return
	}
	ch.Handle = h
	e.pool.PutEffect(ch)
	h.Play()
}

// onSFXEnd releases a finished effect and clears its marker, unless the
// effect was already replaced by a newer trigger.
func (e *Engine) onSFXEnd(ch *audio.Channel) {
	if e.closed {
		return
	}
	if _, ok := e.pool.TakeEffect(ch.TrackID, ch.Trigger); !ok {
		return
	}
	ch.Handle.Release()
	e.store.SFXFinished(ch.TrackID)
}

func (e *Engine) silenceEffects() {
	for _, ch := range e.pool.Effects() {
		e.pool.TakeEffect(ch.TrackID, ch.Trigger)
		ch.Handle.Stop()
		ch.Handle.Release()
	}
}
