package router

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"release-orchestrator/internal/api/handler"
	"release-orchestrator/internal/api/middleware"
	"release-orchestrator/internal/core"
	"release-orchestrator/internal/core/readiness"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/repository"
	"release-orchestrator/internal/service"
)

// Setup 设置路由
func Setup(cfg *config.Config, db *gorm.DB, engine *core.Engine, bus *eventbus.Bus) *gin.Engine {
	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// 初始化Repository
	releaseRepo := repository.NewReleaseRepository(db)
	riskRepo := repository.NewRiskRepository(db)
	readinessRepo := repository.NewReadinessRepository(db)
	rollbackRepo := repository.NewRollbackRepository(db)

	// 初始化Service
	aggregator := readiness.New(readiness.DefaultPanel(), cfg.Core.Readiness.CheckTimeoutDuration())
	authService := service.NewAuthService(&cfg.Auth)
	riskService := service.NewRiskService(riskRepo)
	readinessService := service.NewReadinessService(aggregator, readinessRepo)
	releaseService := service.NewReleaseService(releaseRepo, riskRepo, readinessRepo, engine.Templates(), bus)
	rollbackService := service.NewRollbackService(db, releaseRepo, rollbackRepo, bus)

	// 初始化Handler
	authHandler := handler.NewAuthHandler(authService)
	riskHandler := handler.NewRiskHandler(riskService)
	readinessHandler := handler.NewReadinessHandler(readinessService)
	releaseHandler := handler.NewReleaseHandler(releaseService)
	rollbackHandler := handler.NewRollbackHandler(rollbackService)

	// API v1
	v1 := r.Group("/api/v1")
	{
		// 认证相关(无需token)
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		// 需要认证的路由
		authed := v1.Group("")
		authed.Use(middleware.AuthMiddleware())
		{
			// 认证信息
			authed.GET("/auth/me", authHandler.GetMe)

			// 风险评估
			authed.POST("/risk/assess", riskHandler.Assess)
			authed.GET("/risk/latest", riskHandler.GetLatest)
			authed.GET("/risk/:id", riskHandler.Get)
			authed.GET("/risks", riskHandler.List)

			// 就绪检查与豁免
			authed.POST("/readiness/run", readinessHandler.Run)
			authed.GET("/readiness/runs", readinessHandler.List)
			authed.GET("/readiness/runs/:id", readinessHandler.Get)
			authed.GET("/readiness/runs/:id/report", readinessHandler.GetReport)
			authed.POST("/readiness/waiver", readinessHandler.CreateWaiver)
			authed.GET("/readiness/waivers", readinessHandler.ListWaivers)
			authed.DELETE("/readiness/waiver/:id", readinessHandler.RevokeWaiver)

			// 发布管理
			authed.POST("/release", releaseHandler.Create)
			authed.GET("/releases", releaseHandler.List)
			authed.GET("/release/:id", releaseHandler.Get)
			authed.POST("/release/:id/pause", releaseHandler.Pause)
			authed.POST("/release/:id/resume", releaseHandler.Resume)
			authed.POST("/release/:id/promote", releaseHandler.Promote)
			authed.POST("/release/:id/rollback", releaseHandler.Rollback)
			authed.GET("/release/:id/rollback-plans", rollbackHandler.ListPlansByRelease)

			// 回滚管理
			authed.POST("/rollback/plan", rollbackHandler.CreatePlan)
			authed.GET("/rollback/plan/:id", rollbackHandler.GetPlan)
			authed.POST("/rollback/execute", rollbackHandler.Execute)
			authed.GET("/rollback/executions", rollbackHandler.ListExecutions)
			authed.GET("/rollback/execution/:id", rollbackHandler.GetExecution)
			authed.GET("/rollback/execution/:id/postmortem", rollbackHandler.GetPostmortem)
			authed.GET("/postmortems", rollbackHandler.ListPostmortems)
		}
	}

	return r
}
