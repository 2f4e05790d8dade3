package source

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"academic-info/config"
	"academic-info/internal/model"
	pkgerrors "academic-info/pkg/errors"
)

const (
	remoteMaxBodySize = 5 * 1024 * 1024 // 5MB
	apiKeyHeader      = "x-api-key"
)

// RemoteSource 远程 REST 数据源：GET 请求携带固定 x-api-key
type RemoteSource struct {
	url    string
	apiKey string
	client *http.Client
	logger *zap.Logger
}

// NewRemoteSource 创建远程数据源
func NewRemoteSource(cfg *config.RemoteConfig, logger *zap.Logger) *RemoteSource {
	return &RemoteSource{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (s *RemoteSource) Name() string           { return "remote:" + s.url }
func (s *RemoteSource) Capability() Capability { return CapRemoteEdit }

func (s *RemoteSource) Fetch(ctx context.Context) ([]model.BatchTimetable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	if s.apiKey != "" {
		req.Header.Set(apiKeyHeader, s.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d", pkgerrors.ErrSourceUnavailable, resp.StatusCode)
	}

	// 限制响应体大小，防止异常上游返回超大内容
	data, err := io.ReadAll(io.LimitReader(resp.Body, remoteMaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrSourceUnavailable, err)
	}
	return model.ParseBatches(data)
}
