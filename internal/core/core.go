package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"release-orchestrator/internal/adapter/health"
	"release-orchestrator/internal/core/release"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/pkg/constants"
)

// Engine 发布执行引擎
// 周期扫描待执行发布单, 每个发布单由独立执行goroutine推进(单写者)
type Engine struct {
	db        *gorm.DB
	bus       *eventbus.Bus
	monitor   health.Monitor
	cfg       *config.CoreConfig
	templates *release.Templates

	mu        sync.Mutex
	executors map[int64]*release.Executor
	cancels   map[int64]context.CancelFunc

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine 创建执行引擎
func NewEngine(db *gorm.DB, bus *eventbus.Bus, monitor health.Monitor,
	cfg *config.CoreConfig, templates *release.Templates) *Engine {
	return &Engine{
		db:        db,
		bus:       bus,
		monitor:   monitor,
		cfg:       cfg,
		templates: templates,
		executors: make(map[int64]*release.Executor),
		cancels:   make(map[int64]context.CancelFunc),
	}
}

// Templates 阶段模板
func (e *Engine) Templates() *release.Templates {
	return e.templates
}

// Start 启动扫描循环
func (e *Engine) Start() {
	e.ctx, e.cancel = context.WithCancel(context.Background())

	interval := 5 * time.Second
	if d, err := time.ParseDuration(e.cfg.ScanInterval); err == nil && d > 0 {
		interval = d
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		// 启动时先扫一次, 接管进程重启前未完成的发布单
		e.scan()
		for {
			select {
			case <-ticker.C:
				e.scan()
			case <-e.ctx.Done():
				return
			}
		}
	}()

	logger.Info("发布执行引擎已启动", zap.Duration("scan_interval", interval))
}

// Stop 停止引擎, 等待所有执行goroutine退出
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	logger.Info("发布执行引擎已停止")
}

// scan 扫描待执行的发布单并派发执行器
func (e *Engine) scan() {
	var releases []model.Release
	err := e.db.Where("status IN ?", []string{
		constants.ReleaseStatusPending,
		constants.ReleaseStatusRunning,
		constants.ReleaseStatusPaused,
	}).Find(&releases).Error
	if err != nil {
		logger.Error("扫描发布单失败", zap.Error(err))
		return
	}

	for i := range releases {
		e.dispatch(releases[i].ID)
	}
}

// dispatch 为发布单启动执行器, 已在执行中的跳过
func (e *Engine) dispatch(releaseID int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, running := e.executors[releaseID]; running {
		return
	}

	executor := release.NewExecutor(e.db, e.bus, e.monitor, &e.cfg.Release, releaseID)
	runCtx, cancel := context.WithCancel(e.ctx)
	e.executors[releaseID] = executor
	e.cancels[releaseID] = cancel

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			e.mu.Lock()
			delete(e.executors, releaseID)
			delete(e.cancels, releaseID)
			e.mu.Unlock()
			cancel()
		}()
		executor.Run(runCtx)
	}()
}

// SendCommand 向执行中的发布单投递控制命令
func (e *Engine) SendCommand(releaseID int64, cmd release.Command) error {
	e.mu.Lock()
	executor, ok := e.executors[releaseID]
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("发布单%d不在执行中", releaseID)
	}
	return executor.Send(cmd)
}

// Running 执行中的发布单数量
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.executors)
}
