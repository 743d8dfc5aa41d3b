package repository

import (
	"context"
	"errors"

	"RPGMixer/model"

	"gorm.io/gorm"
)

type gormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository 创建 GORM 设置仓库
func NewGormSettingsRepository(db *gorm.DB) SettingsRepository {
	return &gormSettingsRepository{db: db}
}

func (r *gormSettingsRepository) Get(ctx context.Context) (*model.Settings, error) {
	var s model.Settings
	err := r.db.WithContext(ctx).Where("id = ?", model.SettingsRowID).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *gormSettingsRepository) Save(ctx context.Context, settings *model.Settings) error {
	settings.ID = model.SettingsRowID
	return r.db.WithContext(ctx).Save(settings).Error
}
