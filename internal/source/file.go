package source

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"academic-info/internal/model"
	"academic-info/internal/repository"
	pkgerrors "academic-info/pkg/errors"
)

// FileSource 静态 JSON 文件数据源
// 编辑结果写入键值快照 timetable:snapshot，存在快照时优先于文件
type FileSource struct {
	path   string
	kv     repository.KVRepository
	logger *zap.Logger
}

// NewFileSource 创建文件数据源
func NewFileSource(path string, kv repository.KVRepository, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, kv: kv, logger: logger}
}

func (s *FileSource) Name() string           { return "file:" + s.path }
func (s *FileSource) Capability() Capability { return CapLocalEdit }

func (s *FileSource) Fetch(ctx context.Context) ([]model.BatchTimetable, error) {
	if s.kv != nil {
		snap, err := s.kv.Get(ctx, repository.KeyTimetableSnapshot)
		switch {
		case err == nil:
			batches, perr := model.ParseBatches([]byte(snap))
			if perr == nil {
				return batches, nil
			}
			// 快照损坏时回退到文件，不阻断读取
			s.logger.Warn("课表快照无法解析，回退到数据文件", zap.Error(perr))
		case !errors.Is(err, repository.ErrKeyNotFound):
			// 快照可能比文件新，读不到时不能用文件顶替
			return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSourceUnavailable, err)
		}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSourceUnavailable, err)
	}
	return model.ParseBatches(data)
}

// Save 覆盖键值快照
func (s *FileSource) Save(ctx context.Context, batches []model.BatchTimetable, updatedBy string) error {
	data, err := model.MarshalBatches(batches, false)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, repository.KeyTimetableSnapshot, string(data), 0); err != nil {
		return fmt.Errorf("写入课表快照失败: %w", err)
	}
	s.logger.Info("课表快照已更新", zap.Int("batches", len(batches)), zap.String("updated_by", updatedBy))
	return nil
}
