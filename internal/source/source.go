// Package source 课表数据源适配器：静态 JSON 文件、远程 HTTP 接口与 PostgreSQL。
//
// 每个数据源声明自己的能力（Capability），页面和接口据此决定是否开放编辑入口，
// 同一套视图即可服务所有数据源。
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"academic-info/config"
	"academic-info/internal/model"
	"academic-info/internal/repository"
	pkgerrors "academic-info/pkg/errors"
)

// Capability 数据源支持的操作
type Capability string

const (
	CapFetchOnly  Capability = "fetch-only"
	CapLocalEdit  Capability = "fetch+local-edit"
	CapRemoteEdit Capability = "fetch+remote-edit"
)

// CanEdit 是否允许任何形式的编辑
func (c Capability) CanEdit() bool {
	return c == CapLocalEdit || c == CapRemoteEdit
}

// Source 课表数据源
type Source interface {
	Name() string
	Capability() Capability
	Fetch(ctx context.Context) ([]model.BatchTimetable, error)
}

// Writer 支持本地持久化编辑的数据源
// 远程数据源的写入经由 gateway 转发，不实现此接口
type Writer interface {
	Save(ctx context.Context, batches []model.BatchTimetable, updatedBy string) error
}

// BatchWriter 支持单个班级写入的数据源，字段级编辑只落这一个班级
type BatchWriter interface {
	SaveBatch(ctx context.Context, batch model.BatchTimetable, updatedBy string) error
}

// New 按配置构造数据源
func New(cfg *config.SourceConfig, repo *repository.Repository, logger *zap.Logger) (Source, error) {
	var src Source
	switch cfg.Kind {
	case config.SourceFile:
		src = NewFileSource(cfg.File, repo.KV, logger)
	case config.SourceRemote:
		src = NewRemoteSource(&cfg.Remote, logger)
	case config.SourceDatabase:
		if repo.Batch == nil {
			return nil, fmt.Errorf("source.kind=database 但数据库未初始化")
		}
		src = NewDatabaseSource(repo.Batch)
	default:
		return nil, fmt.Errorf("未知的数据源类型 %q", cfg.Kind)
	}

	if cfg.ReadOnly {
		src = ReadOnly(src)
	}
	logger.Info("课表数据源就绪",
		zap.String("source", src.Name()),
		zap.String("capability", string(src.Capability())),
	)
	return src, nil
}

// ── 只读包装 ──

type readOnlySource struct {
	inner Source
}

// ReadOnly 将任意数据源降级为只读
func ReadOnly(s Source) Source {
	return &readOnlySource{inner: s}
}

func (r *readOnlySource) Name() string           { return r.inner.Name() + "(只读)" }
func (r *readOnlySource) Capability() Capability { return CapFetchOnly }

func (r *readOnlySource) Fetch(ctx context.Context) ([]model.BatchTimetable, error) {
	return r.inner.Fetch(ctx)
}

// Save 只读数据源拒绝一切写入
func (r *readOnlySource) Save(context.Context, []model.BatchTimetable, string) error {
	return pkgerrors.ErrReadOnly
}
