package repository

import (
	"context"
	"errors"
	"fmt"

	"flacshare/model"

	"gorm.io/gorm"
)

// CatalogRepository 曲目目录的数据访问接口
type CatalogRepository interface {
	Insert(ctx context.Context, record *model.CatalogRecord) (*model.CatalogRecord, error)
	GetByID(ctx context.Context, id int64) (*model.CatalogRecord, error)
	List(ctx context.Context, limit, offset int) ([]*model.CatalogRecord, error)
	ListByUploader(ctx context.Context, uploaderID int64) ([]*model.CatalogRecord, error)
	Update(ctx context.Context, id int64, changes model.TrackUpdate) (*model.CatalogRecord, error)
	Delete(ctx context.Context, id int64) error
	IncrementPlays(ctx context.Context, id int64) (int64, error)
	UploaderStats(ctx context.Context, uploaderID int64) (*model.UploaderStats, error)
}

// gormCatalogRepository GORM 实现
type gormCatalogRepository struct {
	db *gorm.DB
}

// NewGormCatalogRepository 创建 GORM 曲目目录仓库
func NewGormCatalogRepository(db *gorm.DB) CatalogRepository {
	return &gormCatalogRepository{db: db}
}

// Insert 写入一条新记录，返回带 id 与创建时间的副本
func (r *gormCatalogRepository) Insert(ctx context.Context, record *model.CatalogRecord) (*model.CatalogRecord, error) {
	row := *record
	row.ID = 0
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("failed to insert catalog record %q: %w", record.Title, err)
	}
	return &row, nil
}

// GetByID 根据ID获取曲目，不存在时返回 nil, nil
func (r *gormCatalogRepository) GetByID(ctx context.Context, id int64) (*model.CatalogRecord, error) {
	var record model.CatalogRecord
	err := r.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get catalog record %d: %w", id, err)
	}
	return &record, nil
}

// List 按创建时间倒序分页
func (r *gormCatalogRepository) List(ctx context.Context, limit, offset int) ([]*model.CatalogRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	records := make([]*model.CatalogRecord, 0)
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog records: %w", err)
	}
	return records, nil
}

// ListByUploader 列出某个用户上传的全部曲目
func (r *gormCatalogRepository) ListByUploader(ctx context.Context, uploaderID int64) ([]*model.CatalogRecord, error) {
	records := make([]*model.CatalogRecord, 0)
	err := r.db.WithContext(ctx).
		Where("uploader_id = ?", uploaderID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog records for uploader %d: %w", uploaderID, err)
	}
	return records, nil
}

// Update 修改曲目的可编辑字段并返回更新后的记录，曲目不存在时返回 gorm.ErrRecordNotFound
func (r *gormCatalogRepository) Update(ctx context.Context, id int64, changes model.TrackUpdate) (*model.CatalogRecord, error) {
	var record model.CatalogRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&record, id).Error; err != nil {
			return err
		}
		if changes.Empty() {
			return nil
		}
		if err := tx.Model(&record).Updates(changes.Columns()).Error; err != nil {
			return err
		}
		return tx.First(&record, id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update catalog record %d: %w", id, err)
	}
	return &record, nil
}

// Delete 删除曲目记录，曲目不存在时返回 gorm.ErrRecordNotFound。对象存储中的文件由调用方清理
func (r *gormCatalogRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.CatalogRecord{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete catalog record %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete catalog record %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// IncrementPlays 播放数原子加一并返回新值，曲目不存在时返回 gorm.ErrRecordNotFound
func (r *gormCatalogRepository) IncrementPlays(ctx context.Context, id int64) (int64, error) {
	var plays int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.CatalogRecord{}).
			Where("id = ?", id).
			UpdateColumn("play_count", gorm.Expr("play_count + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&model.CatalogRecord{}).
			Where("id = ?", id).
			Pluck("play_count", &plays).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment plays for %d: %w", id, err)
	}
	return plays, nil
}

// UploaderStats 汇总上传者的曲目数与总播放数
func (r *gormCatalogRepository) UploaderStats(ctx context.Context, uploaderID int64) (*model.UploaderStats, error) {
	var stats model.UploaderStats
	err := r.db.WithContext(ctx).Model(&model.CatalogRecord{}).
		Select("COUNT(*) AS tracks, COALESCE(SUM(play_count), 0) AS streams").
		Where("uploader_id = ?", uploaderID).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate stats for uploader %d: %w", uploaderID, err)
	}
	return &stats, nil
}
