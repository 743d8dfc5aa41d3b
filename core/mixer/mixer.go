// Package mixer assembles the store, the reconciliation engine and the event
// loop into one running soundboard.
package mixer

import (
	"time"

	"RPGMixer/core/audio"
	"RPGMixer/core/engine"
	"RPGMixer/core/playback"
	"RPGMixer/logger"
	"RPGMixer/model"
)

const loopBuffer = 256

// Snapshot is everything restored from persistence at startup.
type Snapshot struct {
	Tracks   []model.Track
	Presets  []model.AmbiencePreset
	Settings model.Settings
	Orders   model.PlaylistOrders
}

// Mixer owns the loop goroutine. Store and Engine must only be used inside Do.
type Mixer struct {
	loop   *engine.Loop
	store  *playback.Store
	engine *engine.Engine
}

// New builds a stopped mixer. frame is the transport sampling period.
func New(backend audio.Backend, persister playback.Persister, frame time.Duration, opts ...playback.Option) *Mixer {
	loop := engine.NewLoop(loopBuffer)
	store := playback.NewStore(persister, opts...)
	post := func(fn func()) {
		if !loop.Post(fn) {
			logger.Debug("mixer stopped, dropping callback")
		}
	}
	return &Mixer{
		loop:   loop,
		store:  store,
		engine: engine.New(store, backend, engine.NewLoopScheduler(loop), post, frame),
	}
}

// Start runs the loop and the first reconcile pass.
func (m *Mixer) Start(snap Snapshot) error {
	go m.loop.Run()
	return m.loop.Do(func() {
		m.store.SetCatalog(snap.Tracks)
		m.store.Hydrate(snap.Settings, snap.Presets, snap.Orders)
		m.engine.Start()
		logger.Info("mixer started",
			logger.Int("tracks", len(snap.Tracks)),
			logger.Int("presets", len(snap.Presets)),
			logger.Int("masterVolume", m.store.State().MasterVolume),
			logger.String("context", m.store.State().Context))
	})
}

// Do runs fn on the loop goroutine and returns its error.
func (m *Mixer) Do(fn func(s *playback.Store) error) error {
	var err error
	if doErr := m.loop.Do(func() { err = fn(m.store) }); doErr != nil {
		return doErr
	}
	return err
}

// Post queues fn on the loop without waiting.
func (m *Mixer) Post(fn func(s *playback.Store)) bool {
	return m.loop.Post(func() { fn(m.store) })
}

// Subscribe registers l for store changes. l runs on the loop goroutine.
func (m *Mixer) Subscribe(l playback.Listener) error {
	return m.loop.Do(func() { m.store.Subscribe(l) })
}

// Watch registers fn for store changes together with a snapshot of the state
// after the change. fn runs on the loop goroutine and must not block.
func (m *Mixer) Watch(fn func(c playback.Change, st playback.State)) error {
	return m.loop.Do(func() {
		m.store.Subscribe(func(c playback.Change) { fn(c, m.store.Snapshot()) })
	})
}

// State returns a copy of the desired state that is safe to share.
func (m *Mixer) State() (playback.State, error) {
	var st playback.State
	err := m.loop.Do(func() { st = m.store.Snapshot() })
	return st, err
}

// Catalog returns the known tracks.
func (m *Mixer) Catalog() ([]model.Track, error) {
	var tracks []model.Track
	err := m.loop.Do(func() { tracks = append(tracks, m.store.Catalog()...) })
	return tracks, err
}

// SetCatalog replaces the known tracks, e.g. after a rescan.
func (m *Mixer) SetCatalog(tracks []model.Track) error {
	return m.loop.Do(func() { m.store.SetCatalog(tracks) })
}

// Close releases every channel and stops the loop.
func (m *Mixer) Close() {
	if err := m.loop.Do(m.engine.Close); err != nil {
		logger.Warn("mixer already stopped", logger.ErrorField(err))
	}
	m.loop.Stop()
}
