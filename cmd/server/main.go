package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"academic-info/config"
	"academic-info/internal/api/handler"
	"academic-info/internal/api/router"
	"academic-info/internal/job"
	"academic-info/internal/live"
	"academic-info/internal/repository"
	"academic-info/internal/resolver"
	"academic-info/internal/service"
	"academic-info/internal/source"
	"academic-info/internal/view"
	"academic-info/pkg/database"
	"academic-info/pkg/jwt"
	applogger "academic-info/pkg/logger"
	"academic-info/pkg/redis"
)

// panelIdle 管理面板会话空闲过期时间
const panelIdle = 2 * time.Hour

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("ACAD_CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("source", cfg.Source.Kind),
		zap.Bool("read_only", cfg.Source.ReadOnly),
		zap.String("timezone", cfg.App.Timezone),
	)

	// 3. 连接数据库（仅 database 数据源需要）
	var db *gorm.DB
	if cfg.Source.Kind == config.SourceDatabase {
		db, err = database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}
		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
		logger.Info("数据库连接成功")
	}

	// 4. 连接 Redis（可选：连接失败时降级为进程内缓存，不中断启动）
	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb, err = redis.NewClient(&cfg.Redis, logger)
		if err != nil {
			logger.Warn("Redis 连接失败，偏好与快照改用进程内缓存", zap.Error(err))
			rdb = nil
		}
	}

	// 5. 初始化 JWT 管理器（远程模式由网关签发 token）
	var jwtMgr *jwt.Manager
	if cfg.Auth.JWTSecret != "" {
		jwtMgr = jwt.NewManager(&cfg.Auth)
	}

	// 6. 依赖注入: Repository → Source → Service → Handler
	repo := repository.NewRepository(db, rdb, logger)
	src, err := source.New(&cfg.Source, repo, logger)
	if err != nil {
		logger.Fatal("初始化课表数据源失败", zap.Error(err))
	}
	res := resolver.New(time.Now, cfg.App.Location())
	svc := service.NewService(cfg, repo, src, res, jwtMgr, logger)

	// 首次拉取失败不阻止启动，页面会提示数据暂不可用
	warmCtx, warmCancel := context.WithTimeout(context.Background(), cfg.Source.Remote.Timeout+5*time.Second)
	if err := svc.Timetable.Refresh(warmCtx); err != nil {
		logger.Warn("首次拉取课表失败", zap.Error(err))
	}
	warmCancel()

	appCtx, appCancel := context.WithCancel(context.Background())
	defer appCancel()

	hub := live.NewHub(svc.Timetable, cfg.Server.CORS.AllowOrigins, logger.Named("live"))
	hub.Watch(appCtx)

	h := handler.NewHandler(svc, hub, view.NewPanelStore(panelIdle), logger)

	// 7. 定时任务
	scheduler := job.NewScheduler(cfg.App.Location(), logger)
	if err := job.Register(scheduler, svc, hub, cfg.Source.RefreshCron, logger); err != nil {
		logger.Fatal("注册定时任务失败", zap.Error(err))
	}
	scheduler.Start()

	// 8. 初始化路由
	engine, err := router.Setup(cfg, h, svc.Admin, rdb, logger)
	if err != nil {
		logger.Fatal("初始化路由失败", zap.Error(err))
	}

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	scheduler.Stop(ctx)
	appCancel()
	hub.Close()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
