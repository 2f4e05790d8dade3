package job

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"academic-info/internal/live"
	"academic-info/internal/service"
)

// Register 注册全部定时任务
//   - current_push：每分钟向 WebSocket 客户端推送当前课程
//   - refresh：按 refreshSpec 重新拉取课表并重载校历，spec 为空时不注册
func Register(s *Scheduler, svc *service.Service, hub *live.Hub, refreshSpec string, logger *zap.Logger) error {
	if hub != nil {
		err := s.Add("current_push", MinuteSpec, 30*time.Second, func(ctx context.Context) error {
			hub.Broadcast(ctx)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if refreshSpec == "" {
		return nil
	}
	return s.Add("refresh", refreshSpec, 2*time.Minute, func(ctx context.Context) error {
		return Refresh(ctx, svc, logger)
	})
}

// Refresh 刷新课表与校历；两者互不影响，错误合并返回
func Refresh(ctx context.Context, svc *service.Service, logger *zap.Logger) error {
	var errs []error
	if err := svc.Timetable.Refresh(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := svc.Calendar.Reload(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		logger.Debug("课表与校历已刷新")
	}
	return errors.Join(errs...)
}
