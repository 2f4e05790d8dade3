package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"academic-info/internal/repository"
	"academic-info/internal/view"
)

// preferenceTTL 客户端偏好保留时间
const preferenceTTL = 30 * 24 * time.Hour

// PreferenceService 按客户端保存视图状态与最近选择的班级
type PreferenceService interface {
	Load(ctx context.Context, clientID string) view.State
	Save(ctx context.Context, clientID string, st view.State) error
}

type preferenceService struct {
	kv     repository.KVRepository
	logger *zap.Logger
}

// NewPreferenceService 创建 PreferenceService 实例
func NewPreferenceService(kv repository.KVRepository, logger *zap.Logger) PreferenceService {
	return &preferenceService{kv: kv, logger: logger}
}

// Load 读取失败或数据损坏时返回默认状态
func (s *preferenceService) Load(ctx context.Context, clientID string) view.State {
	st := view.Default()
	if clientID == "" {
		return st
	}

	raw, err := s.kv.Get(ctx, repository.ClientViewKey(clientID))
	switch {
	case err == nil:
		var saved view.State
		if jerr := json.Unmarshal([]byte(raw), &saved); jerr == nil {
			st = saved.Normalize()
		} else {
			s.logger.Warn("客户端视图状态无法解析", zap.String("client_id", clientID), zap.Error(jerr))
		}
	case !errors.Is(err, repository.ErrKeyNotFound):
		s.logger.Warn("读取客户端视图状态失败", zap.String("client_id", clientID), zap.Error(err))
	}

	// 班级单独保存，视图状态丢失时仍能恢复
	if batch, err := s.kv.Get(ctx, repository.ClientBatchKey(clientID)); err == nil && batch != "" {
		st.Batch = batch
	}
	return st
}

func (s *preferenceService) Save(ctx context.Context, clientID string, st view.State) error {
	if clientID == "" {
		return nil
	}
	raw, err := json.Marshal(st)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, repository.ClientViewKey(clientID), string(raw), preferenceTTL); err != nil {
		return err
	}
	if st.Batch != "" {
		return s.kv.Set(ctx, repository.ClientBatchKey(clientID), st.Batch, preferenceTTL)
	}
	return nil
}
