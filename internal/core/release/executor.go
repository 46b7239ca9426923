package release

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"release-orchestrator/internal/adapter/health"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/pkg/constants"
)

// CommandKind 外部命令类型
const (
	CommandPause   = "pause"
	CommandResume  = "resume"
	CommandPromote = "promote"
)

// Command 外部控制命令, 通过channel送入执行器, 与阶段推进在同一goroutine内串行处理
type Command struct {
	Kind     string
	Operator string
}

// Executor 单个发布单的执行器
// 每个发布单只有一个执行goroutine, 所有状态写入都由它完成
type Executor struct {
	db      *gorm.DB
	bus     *eventbus.Bus
	monitor health.Monitor
	cfg     *config.ReleaseConfig

	releaseID int64
	commands  chan Command

	paused           bool
	promoteRequested bool
}

// NewExecutor 创建执行器
func NewExecutor(db *gorm.DB, bus *eventbus.Bus, monitor health.Monitor,
	cfg *config.ReleaseConfig, releaseID int64) *Executor {
	return &Executor{
		db:        db,
		bus:       bus,
		monitor:   monitor,
		cfg:       cfg,
		releaseID: releaseID,
		commands:  make(chan Command, 8),
	}
}

// Send 投递控制命令, 执行器已退出或队列满时返回错误
func (e *Executor) Send(cmd Command) error {
	select {
	case e.commands <- cmd:
		return nil
	default:
		return fmt.Errorf("发布单%d命令队列已满", e.releaseID)
	}
}

// Run 执行发布, 阶段严格串行; ctx取消时留在当前状态等待重新调度
func (e *Executor) Run(ctx context.Context) {
	release, phases, err := e.load()
	if err != nil {
		logger.Error("加载发布单失败", zap.Int64("release_id", e.releaseID), zap.Error(err))
		return
	}

	if constants.IsTerminalReleaseStatus(release.Status) {
		return
	}

	if release.Status == constants.ReleaseStatusPending {
		if !e.markRunning(release) {
			return
		}
	}
	e.paused = release.Status == constants.ReleaseStatusPaused

	logger.Info("发布执行开始",
		zap.Int64("release_id", release.ID),
		zap.String("release_number", release.ReleaseNumber),
		zap.String("strategy", release.Strategy),
		zap.Int("phase_index", release.CurrentPhaseIndex))

	idx := release.CurrentPhaseIndex
	for idx < len(phases) {
		e.drainCommands(release)

		// 暂停: 阶段推进冻结, 等待resume/promote
		if e.paused {
			if !e.waitWhilePaused(ctx, release) {
				return
			}
			continue
		}

		// promote: 直接跳到full(100)部署阶段, 中间监控阶段标记skipped
		if target, ok := e.promoteTarget(release, phases, idx); ok {
			e.skipPhases(phases[idx:target])
			idx = target
			e.updatePhaseIndex(release, idx)
			continue
		}

		phase := &phases[idx]
		ok, failReason := e.runPhase(ctx, release, phase)
		if ctx.Err() != nil {
			return
		}
		if !ok {
			e.failRelease(release, phase, failReason)
			return
		}

		idx++
		e.updatePhaseIndex(release, idx)
	}

	e.completeRelease(release)
}

// load 读取发布单与阶段(按seq排序)
func (e *Executor) load() (*model.Release, []model.ReleasePhase, error) {
	var release model.Release
	if err := e.db.First(&release, e.releaseID).Error; err != nil {
		return nil, nil, err
	}

	var phases []model.ReleasePhase
	if err := e.db.Where("release_id = ?", e.releaseID).
		Order("seq ASC").Find(&phases).Error; err != nil {
		return nil, nil, err
	}
	return &release, phases, nil
}

// markRunning pending -> running, 乐观锁防止重复调度
func (e *Executor) markRunning(release *model.Release) bool {
	now := time.Now()
	result := e.db.Model(&model.Release{}).
		Where("id = ? AND status = ?", release.ID, constants.ReleaseStatusPending).
		Updates(map[string]interface{}{
			"status":     constants.ReleaseStatusRunning,
			"started_at": now,
		})
	if result.Error != nil || result.RowsAffected == 0 {
		logger.Warn("发布单状态已被其他流程变更, 放弃执行",
			zap.Int64("release_id", release.ID))
		return false
	}
	release.Status = constants.ReleaseStatusRunning
	release.StartedAt = &now
	return true
}

// drainCommands 非阻塞处理积压命令
func (e *Executor) drainCommands(release *model.Release) {
	for {
		select {
		case cmd := <-e.commands:
			e.applyCommand(release, cmd)
		default:
			return
		}
	}
}

// applyCommand 应用单条命令
func (e *Executor) applyCommand(release *model.Release, cmd Command) {
	switch cmd.Kind {
	case CommandPause:
		if e.paused {
			return
		}
		e.paused = true
		now := time.Now()
		e.db.Model(&model.Release{}).
			Where("id = ? AND status = ?", release.ID, constants.ReleaseStatusRunning).
			Updates(map[string]interface{}{
				"status":    constants.ReleaseStatusPaused,
				"paused_by": cmd.Operator,
				"paused_at": now,
			})
		logger.Info("发布已暂停", zap.Int64("release_id", release.ID), zap.String("operator", cmd.Operator))

	case CommandResume:
		if !e.paused {
			return
		}
		e.paused = false
		e.db.Model(&model.Release{}).
			Where("id = ? AND status = ?", release.ID, constants.ReleaseStatusPaused).
			Updates(map[string]interface{}{
				"status":    constants.ReleaseStatusRunning,
				"paused_by": nil,
				"paused_at": nil,
			})
		logger.Info("发布已恢复", zap.Int64("release_id", release.ID), zap.String("operator", cmd.Operator))

	case CommandPromote:
		// promote隐含resume
		if e.paused {
			e.applyCommand(release, Command{Kind: CommandResume, Operator: cmd.Operator})
		}
		e.promoteRequested = true
		logger.Info("收到promote命令", zap.Int64("release_id", release.ID), zap.String("operator", cmd.Operator))
	}
}

// waitWhilePaused 暂停期间阻塞等待命令, 返回false表示ctx已取消
func (e *Executor) waitWhilePaused(ctx context.Context, release *model.Release) bool {
	select {
	case cmd := <-e.commands:
		e.applyCommand(release, cmd)
		return true
	case <-ctx.Done():
		return false
	}
}

// promoteTarget 计算promote目标阶段, 仅canary/blue_green支持
func (e *Executor) promoteTarget(release *model.Release, phases []model.ReleasePhase, idx int) (int, bool) {
	if !e.promoteRequested {
		return 0, false
	}
	e.promoteRequested = false

	if release.Strategy != constants.StrategyCanary && release.Strategy != constants.StrategyBlueGreen {
		logger.Warn("当前策略不支持promote",
			zap.Int64("release_id", release.ID),
			zap.String("strategy", release.Strategy))
		return 0, false
	}

	for i := idx; i < len(phases); i++ {
		if phases[i].Kind == constants.PhaseKindDeploy && phases[i].TrafficPercent == 100 {
			if i == idx {
				return 0, false // 已处于目标阶段
			}
			return i, true
		}
	}
	return 0, false
}

// skipPhases 标记被promote跳过的阶段
func (e *Executor) skipPhases(phases []model.ReleasePhase) {
	now := time.Now()
	for i := range phases {
		phase := &phases[i]
		e.db.Model(&model.ReleasePhase{}).
			Where("id = ? AND status = ?", phase.ID, constants.PhaseStatusPending).
			Updates(map[string]interface{}{
				"status":      constants.PhaseStatusSkipped,
				"finished_at": now,
			})
		phase.Status = constants.PhaseStatusSkipped
	}
}

// updatePhaseIndex 推进发布单当前阶段下标
func (e *Executor) updatePhaseIndex(release *model.Release, idx int) {
	release.CurrentPhaseIndex = idx
	e.db.Model(&model.Release{}).
		Where("id = ?", release.ID).
		Update("current_phase_index", idx)
}

// runPhase 执行单个阶段, 返回(是否成功, 失败原因)
func (e *Executor) runPhase(ctx context.Context, release *model.Release, phase *model.ReleasePhase) (bool, string) {
	now := time.Now()
	e.db.Model(&model.ReleasePhase{}).
		Where("id = ?", phase.ID).
		Updates(map[string]interface{}{
			"status":     constants.PhaseStatusRunning,
			"started_at": now,
		})
	phase.Status = constants.PhaseStatusRunning

	logger.Info("阶段开始",
		zap.Int64("release_id", release.ID),
		zap.String("phase", phase.Name),
		zap.String("kind", phase.Kind))

	var ok bool
	var reason string
	switch phase.Kind {
	case constants.PhaseKindMonitor:
		ok, reason = e.runMonitorPhase(ctx, release, phase)
	default:
		ok, reason = e.runDeployPhase(ctx, release, phase)
	}
	if ctx.Err() != nil {
		return false, ""
	}

	finished := time.Now()
	if ok {
		e.db.Model(&model.ReleasePhase{}).
			Where("id = ?", phase.ID).
			Updates(map[string]interface{}{
				"status":      constants.PhaseStatusCompleted,
				"finished_at": finished,
			})
		phase.Status = constants.PhaseStatusCompleted
		logger.Info("阶段完成", zap.Int64("release_id", release.ID), zap.String("phase", phase.Name))
	} else {
		e.db.Model(&model.ReleasePhase{}).
			Where("id = ?", phase.ID).
			Updates(map[string]interface{}{
				"status":      constants.PhaseStatusFailed,
				"finished_at": finished,
				"detail":      reason,
			})
		phase.Status = constants.PhaseStatusFailed
	}
	return ok, reason
}

// runDeployPhase 部署/切换/扩量阶段: 调整流量后做一次健康检查
func (e *Executor) runDeployPhase(ctx context.Context, release *model.Release, phase *model.ReleasePhase) (bool, string) {
	// 模拟部署耗时
	select {
	case <-time.After(e.cfg.PollIntervalDuration() / 3):
	case <-ctx.Done():
		return false, ""
	}

	e.updateTraffic(release, phase.TrafficPercent)

	verdict, err := e.checkHealth(ctx, release, phase)
	if err != nil {
		return false, fmt.Sprintf("健康检查执行失败: %v", err)
	}
	if !verdict.Healthy {
		return false, fmt.Sprintf("健康检查未通过: %v", verdict.Reasons)
	}
	return true, ""
}

// runMonitorPhase 监控阶段: 按间隔轮询直到时长结束
// 超过时长且无失败即正常完成; 暂停期间继续轮询但不完成
func (e *Executor) runMonitorPhase(ctx context.Context, release *model.Release, phase *model.ReleasePhase) (bool, string) {
	interval := e.cfg.PollIntervalDuration()
	required := int(time.Duration(phase.DurationMinutes) * e.cfg.MinuteScale() / interval)
	if required < 1 {
		required = 1 // 时长为0的监控阶段至少检查一次
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	polls := 0
	for {
		// 先立即检查一次, 不等首个tick
		verdict, err := e.checkHealth(ctx, release, phase)
		if ctx.Err() != nil {
			return false, ""
		}
		if err != nil {
			return false, fmt.Sprintf("健康检查执行失败: %v", err)
		}
		if !verdict.Healthy {
			return false, fmt.Sprintf("健康检查未通过: %v", verdict.Reasons)
		}

		polls++
		if polls >= required && !e.paused {
			return true, ""
		}

		select {
		case cmd := <-e.commands:
			e.applyCommand(release, cmd)
			// promote: 监控阶段提前结束, 由主循环跳到full阶段
			if e.promoteRequested {
				return true, ""
			}
		case <-ticker.C:
		case <-ctx.Done():
			return false, ""
		}
	}
}

// checkHealth 执行健康检查并发布health_check事件
func (e *Executor) checkHealth(ctx context.Context, release *model.Release, phase *model.ReleasePhase) (health.Verdict, error) {
	verdict, err := e.monitor.Check(ctx, release.Service, release.Environment, release.TargetVersion)
	if err != nil {
		return verdict, err
	}

	_ = e.bus.Publish(constants.SubjectReleaseHealthCheck, eventbus.HealthCheckPayload{
		ReleaseID: release.ID,
		Phase:     phase.Name,
		Healthy:   verdict.Healthy,
		ErrorRate: verdict.ErrorRate,
		LatencyMs: verdict.P95LatencyMs,
		Reasons:   verdict.Reasons,
	})
	return verdict, nil
}

// updateTraffic 更新新版本流量比例
func (e *Executor) updateTraffic(release *model.Release, percent int) {
	release.CandidateTraffic = percent
	e.db.Model(&model.Release{}).
		Where("id = ?", release.ID).
		Update("candidate_traffic", percent)
}

// failRelease 阶段失败 → 发布失败, 触发自动回滚; 剩余阶段保持pending不再执行
func (e *Executor) failRelease(release *model.Release, phase *model.ReleasePhase, reason string) {
	now := time.Now()
	failure := fmt.Sprintf("阶段%s失败: %s", phase.Name, reason)

	e.db.Model(&model.Release{}).
		Where("id = ? AND status IN ?", release.ID,
			[]string{constants.ReleaseStatusRunning, constants.ReleaseStatusPaused}).
		Updates(map[string]interface{}{
			"status":         constants.ReleaseStatusFailed,
			"finished_at":    now,
			"failure_reason": failure,
		})
	release.Status = constants.ReleaseStatusFailed

	logger.Error("发布失败",
		zap.Int64("release_id", release.ID),
		zap.String("phase", phase.Name),
		zap.String("reason", reason))

	if !release.RollbackAvailable || release.PreviousVersion == nil {
		logger.Warn("无可回滚版本, 跳过自动回滚", zap.Int64("release_id", release.ID))
		return
	}

	_ = e.bus.Publish(constants.SubjectReleaseRollback, eventbus.ReleaseRollbackPayload{
		ReleaseID:   release.ID,
		Service:     release.Service,
		Environment: release.Environment,
		FromVersion: release.TargetVersion,
		ToVersion:   *release.PreviousVersion,
		Reason:      constants.RollbackReasonHealthCheck,
		TriggeredBy: "system",
	})
}

// completeRelease 全部阶段完成
func (e *Executor) completeRelease(release *model.Release) {
	now := time.Now()
	e.db.Model(&model.Release{}).
		Where("id = ? AND status = ?", release.ID, constants.ReleaseStatusRunning).
		Updates(map[string]interface{}{
			"status":      constants.ReleaseStatusCompleted,
			"finished_at": now,
		})
	release.Status = constants.ReleaseStatusCompleted

	logger.Info("发布完成",
		zap.Int64("release_id", release.ID),
		zap.String("release_number", release.ReleaseNumber))
}
