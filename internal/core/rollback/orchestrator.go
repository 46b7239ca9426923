package rollback

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/pkg/constants"
)

// StepRunner 回滚步骤的实际执行者
type StepRunner interface {
	RunStep(ctx context.Context, plan *model.RollbackPlan, step model.RollbackStep) error
}

// Verifier 回滚后的独立验证, 与发布自身的健康检查分离, 避免同源误判
type Verifier interface {
	Verify(ctx context.Context, service, environment, version string) ([]model.VerificationCheck, bool, error)
}

// Orchestrator 回滚编排器
type Orchestrator struct {
	db       *gorm.DB
	bus      *eventbus.Bus
	runner   StepRunner
	verifier Verifier
}

// New 创建编排器
func New(db *gorm.DB, bus *eventbus.Bus, runner StepRunner, verifier Verifier) *Orchestrator {
	return &Orchestrator{
		db:       db,
		bus:      bus,
		runner:   runner,
		verifier: verifier,
	}
}

// Execute 执行回滚计划
// 步骤严格按序执行; 任一步骤失败立即终止, 不自动重试, 等待人工介入
func (o *Orchestrator) Execute(ctx context.Context, planID int64, triggeredBy string) (*model.RollbackExecution, error) {
	var plan model.RollbackPlan
	if err := o.db.First(&plan, planID).Error; err != nil {
		return nil, fmt.Errorf("加载回滚计划失败: %w", err)
	}

	now := time.Now()
	execution := &model.RollbackExecution{
		PlanID:      plan.ID,
		ReleaseID:   plan.ReleaseID,
		Service:     plan.Service,
		Environment: plan.Environment,
		FromVersion: plan.FromVersion,
		ToVersion:   plan.ToVersion,
		Reason:      plan.Reason,
		Strategy:    plan.Strategy,
		Status:      constants.RollbackExecutionRunning,
		Steps:       append([]model.RollbackStep(nil), plan.Steps...),
		TriggeredBy: triggeredBy,
		StartedAt:   &now,
	}
	if err := o.db.Create(execution).Error; err != nil {
		return nil, fmt.Errorf("创建回滚执行记录失败: %w", err)
	}

	logger.Info("回滚开始",
		zap.Int64("execution_id", execution.ID),
		zap.Int64("release_id", plan.ReleaseID),
		zap.String("strategy", plan.Strategy),
		zap.String("reason", plan.Reason))

	for i := range execution.Steps {
		step := &execution.Steps[i]
		started := time.Now()
		step.Status = constants.RollbackStepRunning
		step.StartedAt = &started
		o.saveSteps(execution)

		err := o.runner.RunStep(ctx, &plan, *step)
		finished := time.Now()
		step.FinishedAt = &finished

		if err != nil {
			step.Status = constants.RollbackStepFailed
			step.Error = err.Error()
			o.saveSteps(execution)
			o.failExecution(execution, fmt.Sprintf("步骤%d(%s)失败: %v", step.Seq, step.Action, err))
			return execution, nil
		}

		step.Status = constants.RollbackStepCompleted
		o.saveSteps(execution)
		logger.Info("回滚步骤完成",
			zap.Int64("execution_id", execution.ID),
			zap.String("action", step.Action))
	}

	// 全部步骤成功后执行独立验证, 验证失败同样判定回滚失败
	checks, passed, err := o.verifier.Verify(ctx, plan.Service, plan.Environment, plan.ToVersion)
	if err != nil {
		o.failExecution(execution, fmt.Sprintf("回滚验证执行失败: %v", err))
		return execution, nil
	}

	verified := passed
	execution.Verification = checks
	execution.Verified = &verified
	if !passed {
		o.db.Model(execution).Updates(map[string]interface{}{
			"verification": execution.Verification,
			"verified":     false,
		})
		o.failExecution(execution, "回滚验证未通过")
		return execution, nil
	}

	finished := time.Now()
	execution.Status = constants.RollbackExecutionCompleted
	execution.FinishedAt = &finished
	o.db.Model(execution).Updates(map[string]interface{}{
		"status":       constants.RollbackExecutionCompleted,
		"verification": execution.Verification,
		"verified":     true,
		"finished_at":  finished,
	})

	// 原发布单进入rolled_back终态
	o.db.Model(&model.Release{}).
		Where("id = ? AND status NOT IN ?", plan.ReleaseID,
			[]string{constants.ReleaseStatusCompleted, constants.ReleaseStatusRolledBack}).
		Updates(map[string]interface{}{
			"status":            constants.ReleaseStatusRolledBack,
			"candidate_traffic": 0,
		})

	logger.Info("回滚完成",
		zap.Int64("execution_id", execution.ID),
		zap.Int64("release_id", plan.ReleaseID))

	o.publishCompleted(execution)
	return execution, nil
}

// Reverify 对已有回滚执行重新运行验证
// 纯读操作: 只探测当前状态, 不修改执行记录
func (o *Orchestrator) Reverify(ctx context.Context, executionID int64) ([]model.VerificationCheck, bool, error) {
	var execution model.RollbackExecution
	if err := o.db.First(&execution, executionID).Error; err != nil {
		return nil, false, fmt.Errorf("加载回滚执行记录失败: %w", err)
	}
	return o.verifier.Verify(ctx, execution.Service, execution.Environment, execution.ToVersion)
}

// saveSteps 持久化步骤进度
func (o *Orchestrator) saveSteps(execution *model.RollbackExecution) {
	o.db.Model(execution).Update("steps", execution.Steps)
}

// failExecution 标记执行失败
func (o *Orchestrator) failExecution(execution *model.RollbackExecution, reason string) {
	now := time.Now()
	execution.Status = constants.RollbackExecutionFailed
	execution.FailureReason = &reason
	execution.FinishedAt = &now

	o.db.Model(execution).Updates(map[string]interface{}{
		"status":         constants.RollbackExecutionFailed,
		"failure_reason": reason,
		"finished_at":    now,
	})

	logger.Error("回滚失败, 需要人工介入",
		zap.Int64("execution_id", execution.ID),
		zap.Int64("release_id", execution.ReleaseID),
		zap.String("reason", reason))

	o.publishCompleted(execution)
}

func (o *Orchestrator) publishCompleted(execution *model.RollbackExecution) {
	verified := execution.Verified != nil && *execution.Verified
	_ = o.bus.Publish(constants.SubjectRollbackCompleted, eventbus.RollbackCompletedPayload{
		ExecutionID: execution.ID,
		ReleaseID:   execution.ReleaseID,
		Status:      execution.Status,
		Verified:    verified,
	})
}
