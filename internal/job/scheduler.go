package job

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// MinuteSpec 当前课程推送的触发频率
const MinuteSpec = "* * * * *"

// Scheduler 定时任务调度器
//
// 任务串行保护：同一任务上一次尚未结束时跳过本次触发。
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewScheduler 创建调度器，任务时间按 loc 解释
func NewScheduler(loc *time.Location, logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger: logger.Named("cron")}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add 注册任务；每次执行带独立超时
func (s *Scheduler) Add(name, spec string, timeout time.Duration, fn func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		start := time.Now()
		if err := fn(ctx); err != nil {
			s.logger.Warn("定时任务执行失败",
				zap.String("job", name),
				zap.Duration("elapsed", time.Since(start)),
				zap.Error(err),
			)
			return
		}
		s.logger.Debug("定时任务完成", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
	})
	if err != nil {
		return err
	}
	s.logger.Info("注册定时任务", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// Start 启动调度
func (s *Scheduler) Start() { s.cron.Start() }

// Stop 停止调度并等待正在执行的任务结束
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("等待定时任务结束超时")
	}
}

// Entries 已注册任务数
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// cronLogger 将 cron 内部日志接入 zap
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("kv", keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("kv", keysAndValues))
}
