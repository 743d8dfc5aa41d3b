package repository

import (
	"context"
	"errors"

	"RPGMixer/model"
)

// ErrNotFound is returned by handlers when a lookup yields nothing.
// Repositories themselves report a missing row as (nil, nil).
var ErrNotFound = errors.New("record not found")

// TrackRepository 曲目数据访问接口
type TrackRepository interface {
	List(ctx context.Context) ([]model.Track, error)
	GetByID(ctx context.Context, id string) (*model.Track, error)
	Save(ctx context.Context, track *model.Track) error
	Delete(ctx context.Context, id string) error
	// SaveAll upserts scanned tracks in one transaction.
	SaveAll(ctx context.Context, tracks []model.Track) error
}

// PresetRepository 预设数据访问接口
type PresetRepository interface {
	List(ctx context.Context) ([]model.AmbiencePreset, error)
	GetByID(ctx context.Context, id string) (*model.AmbiencePreset, error)
	// Save upserts by id.
	Save(ctx context.Context, preset *model.AmbiencePreset) error
	Delete(ctx context.Context, id string) error
}

// SettingsRepository stores the single settings row.
type SettingsRepository interface {
	// Get returns nil when nothing was saved yet.
	Get(ctx context.Context) (*model.Settings, error)
	Save(ctx context.Context, settings *model.Settings) error
}

// OrderRepository stores explicit playlist orders by order key.
type OrderRepository interface {
	All(ctx context.Context) (model.PlaylistOrders, error)
	Save(ctx context.Context, key string, trackIDs []string) error
}
