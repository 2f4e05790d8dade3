package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"academic-info/internal/model"
)

// BatchRepository 班级课表数据访问接口
type BatchRepository interface {
	List(ctx context.Context) ([]model.BatchRecord, error)
	GetByID(ctx context.Context, batchID string) (*model.BatchRecord, error)
	Upsert(ctx context.Context, record *model.BatchRecord) error
	ReplaceAll(ctx context.Context, records []model.BatchRecord) error
}

type batchRepo struct {
	db *gorm.DB
}

// NewBatchRepo 创建 BatchRepository 实例
func NewBatchRepo(db *gorm.DB) BatchRepository {
	return &batchRepo{db: db}
}

// List 按文档顺序返回全部班级
func (r *batchRepo) List(ctx context.Context) ([]model.BatchRecord, error) {
	var records []model.BatchRecord
	err := r.db.WithContext(ctx).
		Order("position ASC").
		Order("batch_id ASC").
		Find(&records).Error
	return records, err
}

func (r *batchRepo) GetByID(ctx context.Context, batchID string) (*model.BatchRecord, error) {
	var record model.BatchRecord
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// Upsert 按 batch_id 插入或覆盖单个班级
func (r *batchRepo) Upsert(ctx context.Context, record *model.BatchRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "batch_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"position", "days", "updated_at", "updated_by"}),
		}).
		Create(record).Error
}

// ReplaceAll 整体覆盖：同一事务内清空后重新写入
func (r *batchRepo) ReplaceAll(ctx context.Context, records []model.BatchRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).
			Delete(&model.BatchRecord{}).Error; err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}
		return tx.CreateInBatches(records, 100).Error
	})
}
