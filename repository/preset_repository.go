package repository

import (
	"context"
	"errors"

	"RPGMixer/model"

	"gorm.io/gorm"
)

// gormPresetRepository GORM 实现
type gormPresetRepository struct {
	db *gorm.DB
}

// NewGormPresetRepository 创建 GORM 预设仓库
func NewGormPresetRepository(db *gorm.DB) PresetRepository {
	return &gormPresetRepository{db: db}
}

func (r *gormPresetRepository) List(ctx context.Context) ([]model.AmbiencePreset, error) {
	var presets []model.AmbiencePreset
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&presets).Error
	return presets, err
}

func (r *gormPresetRepository) GetByID(ctx context.Context, id string) (*model.AmbiencePreset, error) {
	var preset model.AmbiencePreset
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&preset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &preset, nil
}

func (r *gormPresetRepository) Save(ctx context.Context, preset *model.AmbiencePreset) error {
	return r.db.WithContext(ctx).Save(preset).Error
}

func (r *gormPresetRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.AmbiencePreset{}).Error
}
