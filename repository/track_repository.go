package repository

import (
	"context"
	"errors"

	"RPGMixer/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormTrackRepository GORM 实现
type gormTrackRepository struct {
	db *gorm.DB
}

// NewGormTrackRepository 创建 GORM 曲目仓库
func NewGormTrackRepository(db *gorm.DB) TrackRepository {
	return &gormTrackRepository{db: db}
}

// List returns every track, oldest first, which is the catalog order.
func (r *gormTrackRepository) List(ctx context.Context) ([]model.Track, error) {
	var tracks []model.Track
	err := r.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&tracks).Error
	return tracks, err
}

// GetByID 根据ID获取曲目
func (r *gormTrackRepository) GetByID(ctx context.Context, id string) (*model.Track, error) {
	var track model.Track
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&track).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &track, nil
}

// Save 创建或更新曲目
func (r *gormTrackRepository) Save(ctx context.Context, track *model.Track) error {
	return r.db.WithContext(ctx).Save(track).Error
}

// Delete 删除曲目
func (r *gormTrackRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Track{}).Error
}

// SaveAll upserts tracks, refreshing the inferred columns of existing rows
// but leaving a context tag set through the API untouched.
func (r *gormTrackRepository) SaveAll(ctx context.Context, tracks []model.Track) error {
	if len(tracks) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "url", "type", "category", "subcategory", "updated_at"}),
		}).CreateInBatches(tracks, 100).Error
	})
}
