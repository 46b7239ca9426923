package rollback

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"release-orchestrator/internal/model"
	"release-orchestrator/pkg/constants"
)

// GeneratePostmortem 生成事后复盘, 仅故障触发的回滚需要
// 产出为追加式记录, 创建后不再修改
func GeneratePostmortem(db *gorm.DB, plan *model.RollbackPlan,
	execution *model.RollbackExecution, release *model.Release) (*model.Postmortem, error) {

	if !constants.AutoExecuteReason(plan.Reason) {
		return nil, fmt.Errorf("回滚原因%s无需生成复盘", plan.Reason)
	}

	rootCause := classifyRootCause(release)
	mttd, mttr := incidentMetrics(release, execution)

	postmortem := &model.Postmortem{
		RollbackID: execution.ID,
		ReleaseID:  release.ID,
		Service:    release.Service,
		Title: fmt.Sprintf("%s %s发布回滚复盘 (%s)",
			release.Service, release.TargetVersion, plan.Reason),
		RootCause:      rootCause,
		ImpactSummary:  impactSummary(release, execution),
		Timeline:       buildTimeline(release, execution),
		LessonsLearned: buildLessons(rootCause, execution),
		ActionItems:    buildActionItems(rootCause, time.Now()),
		MTTDSeconds:    mttd,
		MTTRSeconds:    mttr,
		Status:         "draft",
	}

	if err := db.Create(postmortem).Error; err != nil {
		return nil, fmt.Errorf("保存复盘记录失败: %w", err)
	}
	return postmortem, nil
}

// classifyRootCause 从失败信号做启发式根因分类, 仅供复盘初稿
func classifyRootCause(release *model.Release) string {
	reason := ""
	if release.FailureReason != nil {
		reason = strings.ToLower(*release.FailureReason)
	}

	switch {
	case strings.Contains(reason, "迁移") || strings.Contains(reason, "migration"):
		return "数据库迁移兼容性问题"
	case strings.Contains(reason, "配置") || strings.Contains(reason, "config"):
		return "新版本配置错误"
	case strings.Contains(reason, "资源") || strings.Contains(reason, "memory") ||
		strings.Contains(reason, "cpu") || strings.Contains(reason, "oom"):
		return "资源耗尽"
	case strings.Contains(reason, "错误率") || strings.Contains(reason, "延迟") ||
		strings.Contains(reason, "error rate") || strings.Contains(reason, "latency"):
		return "新版本性能/稳定性回归"
	default:
		return "待人工定位的版本回归缺陷"
	}
}

// buildTimeline 从记录的时间戳重建事件时间线
func buildTimeline(release *model.Release, execution *model.RollbackExecution) []model.TimelineEvent {
	var timeline []model.TimelineEvent

	appendEvent := func(at *time.Time, event string) {
		if at != nil {
			timeline = append(timeline, model.TimelineEvent{At: *at, Event: event})
		}
	}

	appendEvent(release.FinishedAt, "健康检查失败, 发布故障被检出")
	created := execution.CreatedAt
	appendEvent(&created, "自动回滚被触发")
	appendEvent(execution.StartedAt, "回滚执行开始")
	appendEvent(execution.FinishedAt, "回滚执行结束")
	if execution.Verified != nil && *execution.Verified {
		appendEvent(execution.FinishedAt, "回滚验证通过, 服务恢复稳定版本")
	}

	return timeline
}

// impactSummary 影响摘要
func impactSummary(release *model.Release, execution *model.RollbackExecution) string {
	duration := "未知"
	if release.FinishedAt != nil && execution.FinishedAt != nil {
		duration = execution.FinishedAt.Sub(*release.FinishedAt).Round(time.Second).String()
	}
	return fmt.Sprintf("%s环境%s服务受影响, 新版本流量比例%d%%, 故障检出到回滚结束耗时%s",
		release.Environment, release.Service, release.CandidateTraffic, duration)
}

// incidentMetrics 从记录的时间戳推算MTTD/MTTR(秒)
// MTTD: 发布开始到故障检出; MTTR: 故障检出到回滚结束
func incidentMetrics(release *model.Release, execution *model.RollbackExecution) (int64, int64) {
	var mttd, mttr int64
	if release.StartedAt != nil && release.FinishedAt != nil {
		mttd = int64(release.FinishedAt.Sub(*release.StartedAt).Seconds())
	}
	if release.FinishedAt != nil && execution.FinishedAt != nil {
		mttr = int64(execution.FinishedAt.Sub(*release.FinishedAt).Seconds())
	}
	return mttd, mttr
}

// buildLessons 经验教训, 根因与验证结论决定条目
func buildLessons(rootCause string, execution *model.RollbackExecution) model.StringList {
	lessons := model.StringList{
		"健康检查阈值有效, 故障被及时检出并触发回滚",
		"需要排查发布前校验为何未拦截此问题",
	}
	if execution.Verified != nil && *execution.Verified {
		lessons = append(lessons, "回滚流程按预期工作, 用户影响可控")
	} else {
		lessons = append(lessons, "回滚验证未通过, 需复盘验证项与回滚步骤的覆盖面")
	}
	if rootCause == "数据库迁移兼容性问题" {
		lessons = append(lessons, "数据库迁移缺少对称的回退方案, 需要补齐")
	}
	return lessons
}

// buildActionItems 行动项, 截止期按优先级错开
func buildActionItems(rootCause string, now time.Time) []model.ActionItem {
	items := []model.ActionItem{
		{Description: "排查发布失败根因: " + rootCause, Priority: constants.PriorityHigh,
			Owner: "engineering", DueDate: now.AddDate(0, 0, 1)},
		{Description: "复查发布前校验为何未拦截此问题", Priority: constants.PriorityMedium,
			Owner: "devops", DueDate: now.AddDate(0, 0, 5)},
		{Description: "根据本次故障更新应急预案", Priority: constants.PriorityLow,
			Owner: "sre", DueDate: now.AddDate(0, 0, 10)},
	}
	if rootCause == "数据库迁移兼容性问题" {
		items = append(items, model.ActionItem{
			Description: "完善数据库迁移的回退方案",
			Priority:    constants.PriorityMedium,
			Owner:       "database",
			DueDate:     now.AddDate(0, 0, 7),
		})
	}
	return items
}
