package agent

import (
	"context"
	"fmt"

	"release-orchestrator/internal/adapter/notification"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/repository"
	"release-orchestrator/pkg/constants"
)

// NotifyAgent 把关键事件转成外部通知
type NotifyAgent struct {
	notifier     notification.Notifier
	releaseRepo  *repository.ReleaseRepository
	rollbackRepo *repository.RollbackRepository
}

// NewNotifyAgent 创建通知agent
func NewNotifyAgent(notifier notification.Notifier,
	releaseRepo *repository.ReleaseRepository,
	rollbackRepo *repository.RollbackRepository) *NotifyAgent {
	return &NotifyAgent{
		notifier:     notifier,
		releaseRepo:  releaseRepo,
		rollbackRepo: rollbackRepo,
	}
}

func (a *NotifyAgent) Name() string {
	return "notify-agent"
}

func (a *NotifyAgent) Subjects() []string {
	return []string{
		constants.SubjectReleaseCreated,
		constants.SubjectReleaseRollback,
		constants.SubjectRollbackCompleted,
	}
}

func (a *NotifyAgent) Handle(ctx context.Context, event eventbus.Event) error {
	switch event.Subject {
	case constants.SubjectReleaseCreated:
		payload, ok := event.Data.(eventbus.ReleaseCreatedPayload)
		if !ok {
			return fmt.Errorf("release.created载荷类型错误: %T", event.Data)
		}
		release, err := a.releaseRepo.GetByID(payload.ReleaseID)
		if err != nil {
			return err
		}
		return a.notifier.SendReleaseNotification(ctx, release,
			notification.NotifyReleaseStart,
			fmt.Sprintf("发布单%s已创建, 策略%s", release.ReleaseNumber, release.Strategy))

	case constants.SubjectReleaseRollback:
		payload, ok := event.Data.(eventbus.ReleaseRollbackPayload)
		if !ok {
			return fmt.Errorf("release.rollback载荷类型错误: %T", event.Data)
		}
		release, err := a.releaseRepo.GetByID(payload.ReleaseID)
		if err != nil {
			return err
		}
		return a.notifier.SendReleaseNotification(ctx, release,
			notification.NotifyReleaseFailed,
			fmt.Sprintf("发布失败, 回滚被触发: %s", payload.Reason))

	case constants.SubjectRollbackCompleted:
		payload, ok := event.Data.(eventbus.RollbackCompletedPayload)
		if !ok {
			return fmt.Errorf("rollback.completed载荷类型错误: %T", event.Data)
		}
		execution, err := a.rollbackRepo.GetExecutionByID(payload.ExecutionID)
		if err != nil {
			return err
		}

		notifyType := notification.NotifyRollbackComplete
		message := "回滚完成, 服务已恢复稳定版本"
		if execution.Status == constants.RollbackExecutionFailed {
			notifyType = notification.NotifyRollbackFailed
			message = "回滚失败, 请立即人工介入"
			if execution.FailureReason != nil {
				message = fmt.Sprintf("回滚失败, 请立即人工介入: %s", *execution.FailureReason)
			}
		}
		return a.notifier.SendRollbackNotification(ctx, execution, notifyType, message)
	}
	return nil
}
