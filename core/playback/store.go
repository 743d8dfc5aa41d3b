package playback

import (
	"math/rand/v2"
	"sort"

	"RPGMixer/logger"
	"RPGMixer/model"

	"github.com/google/uuid"
)

// Persister receives state that must survive the session. Calls are
// fire-and-forget: implementations must not block and never report back.
type Persister interface {
	SaveSettings(settings model.Settings)
	SavePreset(preset model.AmbiencePreset)
	DeletePreset(id string)
	SavePlaylistOrder(key string, trackIDs []string)
}

// NopPersister drops everything.
type NopPersister struct{}

func (NopPersister) SaveSettings(model.Settings)        {}
func (NopPersister) SavePreset(model.AmbiencePreset)    {}
func (NopPersister) DeletePreset(string)                {}
func (NopPersister) SavePlaylistOrder(string, []string) {}

// Listener is notified after every intent with the parts that changed.
type Listener func(Change)

// Store owns the desired state. It is not safe for concurrent use: every
// call must come from the goroutine running the engine loop.
type Store struct {
	state State

	catalog      []model.Track
	catalogIndex map[string]int

	persister   Persister
	rng         *rand.Rand
	newID       func() string
	nextTrigger uint64

	listeners   []Listener
	pending     Change
	dispatching bool
}

// Option customises a Store.
type Option func(*Store)

// WithRand fixes the shuffle source.
func WithRand(rng *rand.Rand) Option {
	return func(s *Store) { s.rng = rng }
}

// WithIDGenerator replaces uuid-based instance and preset ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore creates a store with first-run defaults.
func NewStore(persister Persister, opts ...Option) *Store {
	if persister == nil {
		persister = NopPersister{}
	}
	s := &Store{
		state: State{
			MasterVolume: model.DefaultMasterVolume,
			Mode:         ModeSequential,
			Orders:       model.PlaylistOrders{},
		},
		catalogIndex: map[string]int{},
		persister:    persister,
		rng:          rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers a listener. Listeners may issue intents; the resulting
// changes are delivered after the current round instead of recursively.
func (s *Store) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

func (s *Store) emit(c Change) {
	if c == 0 {
		return
	}
	s.pending |= c
	if s.dispatching {
		return
	}
	s.dispatching = true
	defer func() { s.dispatching = false }()
	for s.pending != 0 {
		round := s.pending
		s.pending = 0
		for _, l := range s.listeners {
			l(round)
		}
	}
}

// State returns the current state. Slices are shared with the store; use
// Clone before handing it to another goroutine.
func (s *Store) State() State { return s.state }

// Snapshot returns a deep copy of the state.
func (s *Store) Snapshot() State { return s.state.Clone() }

func (s *Store) saveSettings() {
	s.persister.SaveSettings(model.Settings{
		ID:           model.SettingsRowID,
		MasterVolume: s.state.MasterVolume,
		LastContext:  s.state.Context,
	})
}

// Hydrate restores persisted state at startup without persisting it back.
func (s *Store) Hydrate(settings model.Settings, presets []model.AmbiencePreset, orders model.PlaylistOrders) {
	s.state.MasterVolume = clampVolume(settings.MasterVolume)
	if settings.LastContext != "" {
		s.state.Context = settings.LastContext
	}
	s.state.Presets = make([]model.AmbiencePreset, len(presets))
	for i, p := range presets {
		s.state.Presets[i] = p.Clone()
	}
	if orders == nil {
		orders = model.PlaylistOrders{}
	}
	s.state.Orders = orders.Clone()
	s.emit(ChangeContext | ChangeMaster | ChangePresets | ChangeOrders)
}

// SetCatalog replaces the known tracks.
func (s *Store) SetCatalog(tracks []model.Track) {
	s.catalog = append([]model.Track(nil), tracks...)
	s.catalogIndex = make(map[string]int, len(tracks))
	for i, t := range s.catalog {
		s.catalogIndex[t.ID] = i
	}
	s.emit(ChangeCatalog)
}

// Catalog returns the known tracks in catalog order.
func (s *Store) Catalog() []model.Track { return s.catalog }

// Lookup resolves a track id against the catalog.
func (s *Store) Lookup(id string) (model.Track, bool) {
	i, ok := s.catalogIndex[id]
	if !ok {
		return model.Track{}, false
	}
	return s.catalog[i], true
}

// SetContext switches the visible context and remembers it as last used.
func (s *Store) SetContext(tag string) {
	s.state.Context = tag
	s.saveSettings()
	s.emit(ChangeContext)
}

// SetMasterVolume sets the master volume, clamped to 0..100.
func (s *Store) SetMasterVolume(v int) {
	v = clampVolume(v)
	if v == s.state.MasterVolume {
		return
	}
	s.state.MasterVolume = v
	s.saveSettings()
	s.emit(ChangeMaster)
}

// PlayMusic makes track the active music and starts playback. A non-nil
// playlist replaces the sequencing context.
func (s *Store) PlayMusic(track model.Track, playlist []model.Track) {
	if s.state.Music == nil || s.state.Music.ID != track.ID {
		s.state.CurrentTime = 0
		s.state.Duration = 0
	}
	s.state.Music = &track
	s.state.IsPlaying = true
	if playlist != nil {
		s.state.Playlist = append([]model.Track(nil), playlist...)
	}
	s.emit(ChangeMusic)
}

// ResumeMusic continues the paused track.
func (s *Store) ResumeMusic() error {
	if s.state.Music == nil {
		return ErrNothingToResume
	}
	if s.state.IsPlaying {
		return nil
	}
	s.state.IsPlaying = true
	s.emit(ChangeMusic)
	return nil
}

// PauseMusic pauses without forgetting the track.
func (s *Store) PauseMusic() {
	if !s.state.IsPlaying {
		return
	}
	s.state.IsPlaying = false
	s.emit(ChangeMusic)
}

// StopMusic clears the active music track.
func (s *Store) StopMusic() {
	if s.state.Music == nil && !s.state.IsPlaying {
		return
	}
	s.state.Music = nil
	s.state.IsPlaying = false
	s.state.CurrentTime = 0
	s.state.Duration = 0
	s.emit(ChangeMusic)
}

// SetPlaybackMode switches how the music channel advances.
func (s *Store) SetPlaybackMode(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	if m == s.state.Mode {
		return nil
	}
	s.state.Mode = m
	s.emit(ChangeMode)
	return nil
}

// RequestSeek asks the engine to move the music position once.
func (s *Store) RequestSeek(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	s.state.Seek = &seconds
	s.emit(ChangeSeek)
}

// ClearSeek drops an applied seek request. It does not notify.
func (s *Store) ClearSeek() {
	s.state.Seek = nil
}

// SetMusicProgress publishes transport feedback.
func (s *Store) SetMusicProgress(currentTime, duration float64) {
	if s.state.CurrentTime == currentTime && s.state.Duration == duration {
		return
	}
	s.state.CurrentTime = currentTime
	s.state.Duration = duration
	s.emit(ChangeProgress)
}

// NextTrack resolves the track after the current one.
func (s *Store) NextTrack() *model.Track {
	return NextTrack(s.state.Music, s.state.Playlist, s.state.Mode, s.rng)
}

// PlayAmbience adds a new layer for track and returns its instance id.
func (s *Store) PlayAmbience(track model.Track, volume int) string {
	id := s.newID()
	s.state.Ambience = append(append([]Layer(nil), s.state.Ambience...), Layer{
		InstanceID: id,
		Track:      track,
		Volume:     clampVolume(volume),
	})
	s.emit(ChangeAmbience)
	return id
}

func (s *Store) layerIndex(instanceID string) int {
	for i, l := range s.state.Ambience {
		if l.InstanceID == instanceID {
			return i
		}
	}
	return -1
}

// updateLayer applies fn to a copy of the layer list so states already handed
// out stay unchanged.
func (s *Store) updateLayer(instanceID string, fn func(*Layer)) error {
	i := s.layerIndex(instanceID)
	if i < 0 {
		return ErrUnknownLayer
	}
	layers := append([]Layer(nil), s.state.Ambience...)
	fn(&layers[i])
	s.state.Ambience = layers
	s.emit(ChangeAmbience)
	return nil
}

// StopAmbience removes a layer.
func (s *Store) StopAmbience(instanceID string) error {
	i := s.layerIndex(instanceID)
	if i < 0 {
		return ErrUnknownLayer
	}
	layers := make([]Layer, 0, len(s.state.Ambience)-1)
	layers = append(layers, s.state.Ambience[:i]...)
	layers = append(layers, s.state.Ambience[i+1:]...)
	s.state.Ambience = layers
	s.emit(ChangeAmbience)
	return nil
}

// SetAmbienceVolume sets a layer's volume, clamped to 0..100.
func (s *Store) SetAmbienceVolume(instanceID string, v int) error {
	return s.updateLayer(instanceID, func(l *Layer) { l.Volume = clampVolume(v) })
}

// ToggleAmbienceMute flips a layer's mute flag.
func (s *Store) ToggleAmbienceMute(instanceID string) error {
	return s.updateLayer(instanceID, func(l *Layer) { l.Muted = !l.Muted })
}

// ReorderAmbience orders layers by instance id. Unknown ids are ignored and
// layers not mentioned keep their relative order after the mentioned ones.
func (s *Store) ReorderAmbience(instanceIDs []string) {
	rank := make(map[string]int, len(instanceIDs))
	for i, id := range instanceIDs {
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}
	pos := func(l Layer) int {
		if r, ok := rank[l.InstanceID]; ok {
			return r
		}
		return len(instanceIDs)
	}
	layers := append([]Layer(nil), s.state.Ambience...)
	sort.SliceStable(layers, func(i, j int) bool { return pos(layers[i]) < pos(layers[j]) })
	s.state.Ambience = layers
	s.emit(ChangeAmbience)
}

// ToggleSFX marks track active and requests a fresh playback, or clears the
// marker if it is already active. Clearing does not cut the sound short.
func (s *Store) ToggleSFX(track model.Track) {
	if s.state.SFXActive(track.ID) {
		s.state.ActiveSFX = without(s.state.ActiveSFX, track.ID)
		s.emit(ChangeSFX)
		return
	}
	s.nextTrigger++
	s.state.ActiveSFX = append(append([]string(nil), s.state.ActiveSFX...), track.ID)
	reqs := append([]SFXRequest(nil), s.state.SFXRequests...)
	reqs = append(reqs, SFXRequest{Track: track, TriggerID: s.nextTrigger})
	if len(reqs) > maxSFXRequests {
		reqs = reqs[len(reqs)-maxSFXRequests:]
	}
	s.state.SFXRequests = reqs
	s.emit(ChangeSFX)
}

// SFXFinished clears the active marker after a transient sound completed.
func (s *Store) SFXFinished(trackID string) {
	if !s.state.SFXActive(trackID) {
		return
	}
	s.state.ActiveSFX = without(s.state.ActiveSFX, trackID)
	s.emit(ChangeSFX)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// PanicStop silences music, every ambience layer and every effect.
func (s *Store) PanicStop() {
	s.state.Music = nil
	s.state.IsPlaying = false
	s.state.CurrentTime = 0
	s.state.Duration = 0
	s.state.Seek = nil
	s.state.Ambience = nil
	s.state.ActiveSFX = nil
	s.emit(ChangeMusic | ChangeAmbience | ChangeSFX | ChangeSilence)
}

// LoadPreset replaces every layer with the preset's pairs.
func (s *Store) LoadPreset(p model.AmbiencePreset) {
	layers, skipped := DecodePreset(p, s.Lookup, s.newID)
	if len(skipped) > 0 {
		logger.Debug("preset references unknown tracks",
			logger.String("presetId", p.ID),
			logger.Strings("trackIds", skipped))
	}
	s.state.Ambience = layers
	s.state.ActivePresetID = p.ID
	s.emit(ChangeAmbience | ChangePresets)
}

// SaveNewPreset stores the current layers under name and makes it active.
func (s *Store) SaveNewPreset(name string) model.AmbiencePreset {
	p := EncodePreset(s.newID(), name, s.state.Context, s.state.Ambience)
	s.state.Presets = append(append([]model.AmbiencePreset(nil), s.state.Presets...), p)
	s.state.ActivePresetID = p.ID
	s.persister.SavePreset(p.Clone())
	s.emit(ChangePresets)
	return p.Clone()
}

// UpdateCurrentPreset overwrites the active preset with the current layers.
func (s *Store) UpdateCurrentPreset() (model.AmbiencePreset, error) {
	if s.state.ActivePresetID == "" {
		return model.AmbiencePreset{}, ErrNoActivePreset
	}
	i := s.presetIndex(s.state.ActivePresetID)
	if i < 0 {
		return model.AmbiencePreset{}, ErrNoActivePreset
	}
	presets := append([]model.AmbiencePreset(nil), s.state.Presets...)
	presets[i] = RefreshPreset(presets[i], s.state.Context, s.state.Ambience)
	s.state.Presets = presets
	s.persister.SavePreset(presets[i].Clone())
	s.emit(ChangePresets)
	return presets[i].Clone(), nil
}

// DeletePreset removes a preset and clears the active marker if it pointed at it.
func (s *Store) DeletePreset(id string) error {
	if !s.dropPreset(id) {
		return ErrUnknownPreset
	}
	s.persister.DeletePreset(id)
	s.emit(ChangePresets)
	return nil
}

// DropPreset forgets a preset deleted outside the mixer. Nothing is persisted.
func (s *Store) DropPreset(id string) {
	if s.dropPreset(id) {
		s.emit(ChangePresets)
	}
}

func (s *Store) dropPreset(id string) bool {
	i := s.presetIndex(id)
	if i < 0 {
		return false
	}
	presets := make([]model.AmbiencePreset, 0, len(s.state.Presets)-1)
	presets = append(presets, s.state.Presets[:i]...)
	presets = append(presets, s.state.Presets[i+1:]...)
	s.state.Presets = presets
	if s.state.ActivePresetID == id {
		s.state.ActivePresetID = ""
	}
	return true
}

// UpsertPreset adds or replaces a preset coming from outside the mixer.
func (s *Store) UpsertPreset(p model.AmbiencePreset) {
	presets := append([]model.AmbiencePreset(nil), s.state.Presets...)
	if i := s.presetIndex(p.ID); i >= 0 {
		presets[i] = p.Clone()
	} else {
		presets = append(presets, p.Clone())
	}
	s.state.Presets = presets
	s.emit(ChangePresets)
}

// Preset finds a preset by id.
func (s *Store) Preset(id string) (model.AmbiencePreset, bool) {
	if i := s.presetIndex(id); i >= 0 {
		return s.state.Presets[i].Clone(), true
	}
	return model.AmbiencePreset{}, false
}

func (s *Store) presetIndex(id string) int {
	for i, p := range s.state.Presets {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// ReorderPlaylist saves an explicit order for key. When the playing track is
// in the list, the list becomes the sequencing context right away.
func (s *Store) ReorderPlaylist(key string, tracks []model.Track) {
	ids := TrackIDs(tracks)
	orders := s.state.Orders.Clone()
	orders[key] = ids
	s.state.Orders = orders

	if s.state.Music != nil && indexOf(tracks, s.state.Music) >= 0 {
		s.state.Playlist = append([]model.Track(nil), tracks...)
	}
	s.persister.SavePlaylistOrder(key, append([]string(nil), ids...))
	s.emit(ChangeOrders)
}

// Order returns the saved order for key, if any.
func (s *Store) Order(key string) []string {
	return s.state.Orders[key]
}
