package service

import (
	"net/url"

	"go.uber.org/zap"

	"academic-info/config"
	"academic-info/internal/gateway"
	"academic-info/internal/repository"
	"academic-info/internal/resolver"
	"academic-info/internal/source"
	"academic-info/pkg/jwt"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Timetable TimetableService
	Calendar  CalendarService
	Admin     AdminService
	Export    ExportService
	Prefs     PreferenceService
}

// NewService 创建 Service 聚合
// jwtMgr 在远程或只读模式下可以为 nil
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	src source.Source,
	res *resolver.Resolver,
	jwtMgr *jwt.Manager,
	logger *zap.Logger,
) *Service {
	timetable := NewTimetableService(src, res, cfg.Source.CacheTTL, logger)
	calendar := NewCalendarService(cfg, logger)

	var gw *gateway.Client
	if cfg.Source.Kind == config.SourceRemote {
		gw = gateway.NewClient(gatewayBase(&cfg.Source.Remote), cfg.Source.Remote.Timeout, logger)
	}

	return &Service{
		Timetable: timetable,
		Calendar:  calendar,
		Admin:     NewAdminService(&cfg.Auth, jwtMgr, gw, timetable, logger),
		Export:    NewExportService(timetable, calendar, logger),
		Prefs:     NewPreferenceService(repo.KV, logger),
	}
}

// gatewayBase 未配置 gateway_url 时取数据接口的同源地址
func gatewayBase(cfg *config.RemoteConfig) string {
	if cfg.GatewayURL != "" {
		return cfg.GatewayURL
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return cfg.URL
	}
	return u.Scheme + "://" + u.Host
}
