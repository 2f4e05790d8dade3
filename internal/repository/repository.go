package repository

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	pkgredis "academic-info/pkg/redis"
)

// Repository 所有 Repository 的聚合入口
type Repository struct {
	Batch BatchRepository // 仅 source.kind=database 时非 nil
	KV    KVRepository
}

// NewRepository 创建 Repository 聚合
// db 为 nil 时不创建 Batch；rdb 为 nil 时 KV 退化为进程内缓存
func NewRepository(db *gorm.DB, rdb *pkgredis.Client, logger *zap.Logger) *Repository {
	repo := &Repository{
		KV: NewKVRepo(rdb, logger),
	}
	if db != nil {
		repo.Batch = NewBatchRepo(db)
	}
	return repo
}
