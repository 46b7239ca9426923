package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"release-orchestrator/internal/core/rollback"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/repository"
	"release-orchestrator/pkg/constants"
)

// RollbackAgent 处理回滚链路事件
// release.rollback -> 生成计划(自动原因直接触发执行)
// rollback.execute -> 执行计划
// postmortem.create -> 生成复盘
type RollbackAgent struct {
	db           *gorm.DB
	bus          *eventbus.Bus
	orchestrator *rollback.Orchestrator
	releaseRepo  *repository.ReleaseRepository
	rollbackRepo *repository.RollbackRepository
}

// NewRollbackAgent 创建回滚agent
func NewRollbackAgent(db *gorm.DB, bus *eventbus.Bus, orchestrator *rollback.Orchestrator,
	releaseRepo *repository.ReleaseRepository, rollbackRepo *repository.RollbackRepository) *RollbackAgent {
	return &RollbackAgent{
		db:           db,
		bus:          bus,
		orchestrator: orchestrator,
		releaseRepo:  releaseRepo,
		rollbackRepo: rollbackRepo,
	}
}

func (a *RollbackAgent) Name() string {
	return "rollback-agent"
}

func (a *RollbackAgent) Subjects() []string {
	return []string{
		constants.SubjectReleaseRollback,
		constants.SubjectRollbackExecute,
		constants.SubjectPostmortemCreate,
	}
}

func (a *RollbackAgent) Handle(ctx context.Context, event eventbus.Event) error {
	switch event.Subject {
	case constants.SubjectReleaseRollback:
		payload, ok := event.Data.(eventbus.ReleaseRollbackPayload)
		if !ok {
			return fmt.Errorf("release.rollback载荷类型错误: %T", event.Data)
		}
		return a.handleRollbackRequest(payload)

	case constants.SubjectRollbackExecute:
		payload, ok := event.Data.(eventbus.RollbackExecutePayload)
		if !ok {
			return fmt.Errorf("rollback.execute载荷类型错误: %T", event.Data)
		}
		return a.handleExecute(ctx, payload)

	case constants.SubjectPostmortemCreate:
		payload, ok := event.Data.(eventbus.PostmortemCreatePayload)
		if !ok {
			return fmt.Errorf("postmortem.create载荷类型错误: %T", event.Data)
		}
		return a.handlePostmortem(payload)
	}
	return nil
}

// handleRollbackRequest 生成回滚计划, 故障原因的计划自动触发执行
func (a *RollbackAgent) handleRollbackRequest(payload eventbus.ReleaseRollbackPayload) error {
	release, err := a.releaseRepo.GetByID(payload.ReleaseID)
	if err != nil {
		return fmt.Errorf("加载发布单%d失败: %w", payload.ReleaseID, err)
	}

	plan, err := rollback.CreatePlan(a.db, release, payload.Reason)
	if err != nil {
		return fmt.Errorf("生成回滚计划失败: %w", err)
	}

	logger.Info("回滚计划已生成",
		zap.Int64("plan_id", plan.ID),
		zap.Int64("release_id", release.ID),
		zap.String("reason", payload.Reason),
		zap.Bool("auto_execute", plan.AutoExecute))

	if !plan.AutoExecute {
		return nil
	}

	return a.bus.Publish(constants.SubjectRollbackExecute, eventbus.RollbackExecutePayload{
		PlanID:      plan.ID,
		TriggeredBy: payload.TriggeredBy,
	})
}

// handleExecute 执行回滚计划, 故障触发的回滚在执行后生成复盘
func (a *RollbackAgent) handleExecute(ctx context.Context, payload eventbus.RollbackExecutePayload) error {
	plan, err := a.rollbackRepo.GetPlanByID(payload.PlanID)
	if err != nil {
		return fmt.Errorf("加载回滚计划%d失败: %w", payload.PlanID, err)
	}

	execution, err := a.orchestrator.Execute(ctx, payload.PlanID, payload.TriggeredBy)
	if err != nil {
		return fmt.Errorf("执行回滚计划%d失败: %w", payload.PlanID, err)
	}

	if !constants.AutoExecuteReason(plan.Reason) {
		return nil
	}

	return a.bus.Publish(constants.SubjectPostmortemCreate, eventbus.PostmortemCreatePayload{
		ExecutionID: execution.ID,
		ReleaseID:   execution.ReleaseID,
	})
}

// handlePostmortem 为回滚执行生成复盘
func (a *RollbackAgent) handlePostmortem(payload eventbus.PostmortemCreatePayload) error {
	execution, err := a.rollbackRepo.GetExecutionByID(payload.ExecutionID)
	if err != nil {
		return fmt.Errorf("加载回滚执行%d失败: %w", payload.ExecutionID, err)
	}

	plan, err := a.rollbackRepo.GetPlanByID(execution.PlanID)
	if err != nil {
		return fmt.Errorf("加载回滚计划%d失败: %w", execution.PlanID, err)
	}

	release, err := a.releaseRepo.GetByID(execution.ReleaseID)
	if err != nil {
		return fmt.Errorf("加载发布单%d失败: %w", execution.ReleaseID, err)
	}

	postmortem, err := rollback.GeneratePostmortem(a.db, plan, execution, release)
	if err != nil {
		return fmt.Errorf("生成复盘失败: %w", err)
	}

	logger.Info("复盘已生成",
		zap.Int64("postmortem_id", postmortem.ID),
		zap.Int64("execution_id", execution.ID),
		zap.String("root_cause", postmortem.RootCause))

	return nil
}
