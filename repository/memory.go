package repository

import (
	"context"
	"sync"

	"RPGMixer/model"
)

// In-memory repositories back PERSISTENCE=memory and the handler tests.

type memoryTrackRepository struct {
	mu     sync.RWMutex
	order  []string
	tracks map[string]model.Track
}

// NewMemoryTrackRepository returns an empty in-memory TrackRepository.
func NewMemoryTrackRepository() TrackRepository {
	return &memoryTrackRepository{tracks: map[string]model.Track{}}
}

func (r *memoryTrackRepository) List(ctx context.Context) ([]model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Track, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.tracks[id])
	}
	return out, nil
}

func (r *memoryTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tracks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *memoryTrackRepository) Save(ctx context.Context, track *model.Track) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tracks[track.ID]; !ok {
		r.order = append(r.order, track.ID)
	}
	r.tracks[track.ID] = *track
	return nil
}

func (r *memoryTrackRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tracks[id]; !ok {
		return nil
	}
	delete(r.tracks, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryTrackRepository) SaveAll(ctx context.Context, tracks []model.Track) error {
	for i := range tracks {
		t := tracks[i]
		if existing, _ := r.GetByID(ctx, t.ID); existing != nil {
			t.Context = existing.Context
			t.Icon = existing.Icon
		}
		if err := r.Save(ctx, &t); err != nil {
			return err
		}
	}
	return nil
}

type memoryPresetRepository struct {
	mu      sync.RWMutex
	presets []model.AmbiencePreset
}

// NewMemoryPresetRepository returns an empty in-memory PresetRepository.
func NewMemoryPresetRepository() PresetRepository {
	return &memoryPresetRepository{}
}

func (r *memoryPresetRepository) List(ctx context.Context) ([]model.AmbiencePreset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.AmbiencePreset, len(r.presets))
	for i, p := range r.presets {
		out[i] = p.Clone()
	}
	return out, nil
}

func (r *memoryPresetRepository) GetByID(ctx context.Context, id string) (*model.AmbiencePreset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.presets {
		if p.ID == id {
			c := p.Clone()
			return &c, nil
		}
	}
	return nil, nil
}

func (r *memoryPresetRepository) Save(ctx context.Context, preset *model.AmbiencePreset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.presets {
		if p.ID == preset.ID {
			r.presets[i] = preset.Clone()
			return nil
		}
	}
	r.presets = append(r.presets, preset.Clone())
	return nil
}

func (r *memoryPresetRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.presets {
		if p.ID == id {
			r.presets = append(r.presets[:i:i], r.presets[i+1:]...)
			return nil
		}
	}
	return nil
}

type memorySettingsRepository struct {
	mu       sync.RWMutex
	settings *model.Settings
}

// NewMemorySettingsRepository returns an in-memory SettingsRepository.
func NewMemorySettingsRepository() SettingsRepository {
	return &memorySettingsRepository{}
}

func (r *memorySettingsRepository) Get(ctx context.Context) (*model.Settings, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.settings == nil {
		return nil, nil
	}
	s := *r.settings
	return &s, nil
}

func (r *memorySettingsRepository) Save(ctx context.Context, settings *model.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := *settings
	s.ID = model.SettingsRowID
	r.settings = &s
	return nil
}

type memoryOrderRepository struct {
	mu     sync.RWMutex
	orders model.PlaylistOrders
}

// NewMemoryOrderRepository returns an in-memory OrderRepository.
func NewMemoryOrderRepository() OrderRepository {
	return &memoryOrderRepository{orders: model.PlaylistOrders{}}
}

func (r *memoryOrderRepository) All(ctx context.Context) (model.PlaylistOrders, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orders.Clone(), nil
}

func (r *memoryOrderRepository) Save(ctx context.Context, key string, trackIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[key] = append([]string(nil), trackIDs...)
	return nil
}
