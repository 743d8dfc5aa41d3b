package persist

import (
	"context"
	"time"

	"RPGMixer/core/playback"
	"RPGMixer/model"
	"RPGMixer/repository"
)

var _ playback.Persister = (*Repositories)(nil)

// Repositories persists straight into the server's own repositories, for a
// mixer running in the same process as the persistence API.
type Repositories struct {
	settings repository.SettingsRepository
	presets  repository.PresetRepository
	orders   repository.OrderRepository
	*queue
}

func NewRepositories(settings repository.SettingsRepository, presets repository.PresetRepository,
	orders repository.OrderRepository, timeout time.Duration) *Repositories {
	return &Repositories{
		settings: settings,
		presets:  presets,
		orders:   orders,
		queue:    newQueue(timeout),
	}
}

func (r *Repositories) SaveSettings(s model.Settings) {
	s.ID = model.SettingsRowID
	r.submit("save settings", func(ctx context.Context) error {
		return r.settings.Save(ctx, &s)
	})
}

func (r *Repositories) SavePreset(p model.AmbiencePreset) {
	p = p.Clone()
	r.submit("save preset", func(ctx context.Context) error {
		return r.presets.Save(ctx, &p)
	})
}

func (r *Repositories) DeletePreset(id string) {
	r.submit("delete preset", func(ctx context.Context) error {
		return r.presets.Delete(ctx, id)
	})
}

func (r *Repositories) SavePlaylistOrder(key string, trackIDs []string) {
	ids := append([]string{}, trackIDs...)
	r.submit("save playlist order", func(ctx context.Context) error {
		return r.orders.Save(ctx, key, ids)
	})
}
