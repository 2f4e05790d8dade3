package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	pkgredis "academic-info/pkg/redis"
)

// ErrKeyNotFound 键不存在
var ErrKeyNotFound = errors.New("键不存在")

// 键名约定
const (
	KeyTimetableSnapshot = "timetable:snapshot"
)

// ClientBatchKey 客户端最近选择的班级
func ClientBatchKey(clientID string) string { return "client:" + clientID + ":batch" }

// ClientViewKey 客户端视图状态
func ClientViewKey(clientID string) string { return "client:" + clientID + ":view" }

// KVRepository 键值存取接口
// ttl<=0 表示永不过期
type KVRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// kvRepo Redis 为主存储；Redis 写入失败的键留在进程内缓存，
// 在下一次成功写入 Redis 之前读取都以本地为准
type kvRepo struct {
	rdb    *pkgredis.Client
	local  *gocache.Cache
	logger *zap.Logger
}

// NewKVRepo 创建 KVRepository；rdb 为 nil 时仅使用进程内缓存
func NewKVRepo(rdb *pkgredis.Client, logger *zap.Logger) KVRepository {
	return &kvRepo{
		rdb:    rdb,
		local:  gocache.New(gocache.NoExpiration, 10*time.Minute),
		logger: logger,
	}
}

func (r *kvRepo) Get(ctx context.Context, key string) (string, error) {
	// 本地条目只在 Redis 写入失败时产生，比 Redis 中的旧值新
	if v, ok := r.localGet(key); ok {
		return v, nil
	}
	if r.rdb == nil {
		return "", ErrKeyNotFound
	}

	val, err := r.rdb.Get(ctx, key)
	switch {
	case err == nil:
		return val, nil
	case errors.Is(err, pkgredis.ErrNil):
		return "", ErrKeyNotFound
	default:
		return "", fmt.Errorf("读取 Redis 键 %s 失败: %w", key, err)
	}
}

func (r *kvRepo) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if r.rdb != nil {
		err := r.rdb.Set(ctx, key, value, ttl)
		if err == nil {
			r.local.Delete(key)
			return nil
		}
		r.logger.Warn("Redis 写入失败，改用本地缓存", zap.String("key", key), zap.Error(err))
	}
	exp := gocache.NoExpiration
	if ttl > 0 {
		exp = ttl
	}
	r.local.Set(key, value, exp)
	return nil
}

func (r *kvRepo) Delete(ctx context.Context, key string) error {
	r.local.Delete(key)
	if r.rdb != nil {
		return r.rdb.Delete(ctx, key)
	}
	return nil
}

func (r *kvRepo) localGet(key string) (string, bool) {
	v, ok := r.local.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
