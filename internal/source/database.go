package source

import (
	"context"
	"fmt"

	"academic-info/internal/model"
	"academic-info/internal/repository"
	pkgerrors "academic-info/pkg/errors"
)

// DatabaseSource PostgreSQL 数据源，编辑直接落库
type DatabaseSource struct {
	repo repository.BatchRepository
}

// NewDatabaseSource 创建数据库数据源
func NewDatabaseSource(repo repository.BatchRepository) *DatabaseSource {
	return &DatabaseSource{repo: repo}
}

func (s *DatabaseSource) Name() string           { return "database" }
func (s *DatabaseSource) Capability() Capability { return CapLocalEdit }

func (s *DatabaseSource) Fetch(ctx context.Context) ([]model.BatchTimetable, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSourceUnavailable, err)
	}
	batches := make([]model.BatchTimetable, 0, len(records))
	for i := range records {
		b, err := records[i].ToBatch()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrMalformedDocument, err)
		}
		batches = append(batches, b)
	}
	return batches, nil
}

// Save 事务内整体覆盖，position 取切片下标
func (s *DatabaseSource) Save(ctx context.Context, batches []model.BatchTimetable, updatedBy string) error {
	records := make([]model.BatchRecord, 0, len(batches))
	for i, b := range batches {
		rec, err := model.NewBatchRecord(b, i, updatedBy)
		if err != nil {
			return err
		}
		records = append(records, rec)
	}
	return s.repo.ReplaceAll(ctx, records)
}

// SaveBatch 覆盖单个班级，保持其原有 position
func (s *DatabaseSource) SaveBatch(ctx context.Context, batch model.BatchTimetable, updatedBy string) error {
	existing, err := s.repo.GetByID(ctx, batch.Batch)
	if err != nil {
		return fmt.Errorf("%w: 班级 %s: %v", pkgerrors.ErrSourceUnavailable, batch.Batch, err)
	}
	rec, err := model.NewBatchRecord(batch, existing.Position, updatedBy)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, &rec)
}
