package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"release-orchestrator/internal/adapter/health"
	"release-orchestrator/internal/adapter/notification"
	"release-orchestrator/internal/agent"
	"release-orchestrator/internal/api/router"
	"release-orchestrator/internal/core"
	"release-orchestrator/internal/core/release"
	"release-orchestrator/internal/core/rollback"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/database"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/repository"
	"release-orchestrator/internal/scheduler"
	"release-orchestrator/internal/service"
)

var (
	configFile = flag.String("config", "", "配置文件路径 (例如: -config=configs/config.yaml)")
	version    = flag.Bool("version", false, "显示版本信息")
)

const (
	appVersion = "1.0.0"
	appName    = "release-orchestrator"
)

func main() {
	// 解析命令行参数
	flag.Parse()

	// 显示版本信息
	if *version {
		fmt.Printf("%s version %s\n", appName, appVersion)
		os.Exit(0)
	}

	// init config logger
	var cfg *config.Config
	{
		// 优先级: 命令行参数 > 环境变量 > 默认路径
		configPath := getConfigPath()

		c, err := config.Load(configPath)
		if err != nil {
			fmt.Printf("加载配置失败: %v\n", err)
			os.Exit(1)
		}
		cfg = c

		// 初始化日志
		if err := logger.Init(&cfg.Log); err != nil {
			fmt.Printf("初始化日志失败: %v\n", err)
			os.Exit(1)
		}
		logger.Info(fmt.Sprintf("Load config file: %s", configPath))

		defer func() {
			_ = logger.Close()
		}()
	}

	logger.Info(fmt.Sprintf("服务 %s 启动中...", appName), zap.String("version", appVersion))

	// 初始化数据库
	if err := database.Init(&cfg.Database); err != nil {
		logger.Fatal("初始化数据库失败", zap.Error(err))
	}
	defer func() {
		_ = database.Close()
	}()
	db := database.GetDB()
	cfg.DB = db

	logger.Info(fmt.Sprintf("数据库连接成功 %s:%v", cfg.Database.Host, cfg.Database.Port),
		zap.String("database", cfg.Database.Database))

	// 事件总线, 组件间唯一通信通道
	bus := eventbus.New()

	// 阶段模板
	templates, err := release.LoadTemplates(cfg.Core.Release.Instances(), cfg.Core.Release.StrategyFile)
	if err != nil {
		logger.Fatal("加载发布策略模板失败", zap.Error(err))
	}

	// 健康监控
	monitor := buildMonitor(&cfg.Core.Health)

	// 发布执行引擎
	engine := core.NewEngine(db, bus, monitor, &cfg.Core, templates)
	engine.Start()

	// 回滚编排器与agent
	releaseRepo := repository.NewReleaseRepository(db)
	rollbackRepo := repository.NewRollbackRepository(db)
	riskRepo := repository.NewRiskRepository(db)
	readinessRepo := repository.NewReadinessRepository(db)

	orchestrator := rollback.New(db, bus,
		rollback.NewSimulatedRunner(&cfg.Core.Rollback), rollback.NewHealthVerifier(monitor))

	notifier := notification.New(cfg.Notification.Enabled, cfg.Notification.Provider,
		cfg.Notification.LarkWebhook, logger.Log)

	releaseService := service.NewReleaseService(releaseRepo, riskRepo, readinessRepo, templates, bus)
	supervisor := agent.NewSupervisor(bus,
		agent.NewReleaseAgent(engine, releaseService),
		agent.NewRollbackAgent(db, bus, orchestrator, releaseRepo, rollbackRepo),
		agent.NewNotifyAgent(notifier, releaseRepo, rollbackRepo),
	)
	if err := supervisor.Start(); err != nil {
		logger.Fatal("启动agent失败", zap.Error(err))
	}

	// 初始化并启动定时任务调度器
	taskScheduler := scheduler.NewScheduler(db, logger.Log)
	if err := taskScheduler.Start(&cfg.Core.Scheduler); err != nil {
		logger.Warn("定时任务调度器启动失败", zap.Error(err))
	}

	// 设置路由
	r := router.Setup(cfg, db, engine, bus)

	// 创建HTTP服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// 启动服务器
	go func() {
		logger.Info(fmt.Sprintf("%s 服务启动成功", cfg.Server.Name),
			zap.String("address", addr),
			zap.String("mode", cfg.Server.Mode),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("服务器启动失败", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("服务正在关闭...")

	// 关闭定时任务调度器
	taskScheduler.Stop()

	// 停止agent订阅与执行引擎, 再关闭总线
	supervisor.Stop()
	engine.Stop()
	bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	logger.Info("服务已关闭")
}

// buildMonitor 按配置构建健康监控, 默认为联调用的固定健康结论
func buildMonitor(cfg *config.HealthConfig) health.Monitor {
	if cfg.Mode == "http" && cfg.EndpointFmt != "" {
		return health.NewHTTPMonitor(cfg.EndpointFmt, health.NewHTTPMetricsSource(cfg.MetricsFmt))
	}
	return &health.StaticMonitor{Verdict: health.HealthyVerdict()}
}

// getConfigPath 获取配置文件路径
// 优先级: 命令行参数 > 环境变量 > 默认路径
func getConfigPath() string {
	if *configFile != "" {
		return *configFile
	}
	if envConfig := os.Getenv("CONFIG_FILE"); envConfig != "" {
		return envConfig
	}
	return "configs/config.yaml"
}
