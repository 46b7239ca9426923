package rollback

import (
	"fmt"

	"gorm.io/gorm"

	"release-orchestrator/internal/model"
	"release-orchestrator/pkg/constants"
)

// CreatePlan 生成回滚计划
// 回滚目标取同服务+环境最近一次completed发布的版本, 没有则退回发布单记录的上一版本
func CreatePlan(db *gorm.DB, release *model.Release, reason string) (*model.RollbackPlan, error) {
	if !constants.ValidRollbackReason(reason) {
		return nil, fmt.Errorf("无效的回滚原因: %s", reason)
	}

	toVersion, err := resolveTargetVersion(db, release)
	if err != nil {
		return nil, err
	}

	strategy := pickStrategy(release, reason)
	steps := expandSteps(strategy)

	estimated := 0
	for _, step := range steps {
		estimated += step.EstimatedSeconds
	}

	riskScore, riskLevel := assessRollbackRisk(db, release, strategy)

	plan := &model.RollbackPlan{
		ReleaseID:        release.ID,
		Service:          release.Service,
		Environment:      release.Environment,
		Reason:           reason,
		Strategy:         strategy,
		FromVersion:      release.TargetVersion,
		ToVersion:        toVersion,
		AutoExecute:      constants.AutoExecuteReason(reason),
		Steps:            steps,
		RiskScore:        riskScore,
		RiskLevel:        riskLevel,
		EstimatedSeconds: estimated,
	}
	if err := db.Create(plan).Error; err != nil {
		return nil, fmt.Errorf("保存回滚计划失败: %w", err)
	}
	return plan, nil
}

// resolveTargetVersion 解析回滚目标版本
func resolveTargetVersion(db *gorm.DB, release *model.Release) (string, error) {
	var last model.Release
	err := db.Where("service = ? AND environment = ? AND status = ? AND id != ?",
		release.Service, release.Environment, constants.ReleaseStatusCompleted, release.ID).
		Order("finished_at DESC").
		First(&last).Error
	if err == nil {
		return last.TargetVersion, nil
	}
	if err != gorm.ErrRecordNotFound {
		return "", fmt.Errorf("查询历史发布失败: %w", err)
	}

	if release.PreviousVersion != nil && *release.PreviousVersion != "" {
		return *release.PreviousVersion, nil
	}
	return "", fmt.Errorf("服务%s在%s环境无可回滚的稳定版本", release.Service, release.Environment)
}

// pickStrategy 选择回滚策略
// 蓝绿发布保留旧环境, 支持瞬时切回; 紧急原因走emergency; 其余逐步回滚
func pickStrategy(release *model.Release, reason string) string {
	if release.Strategy == constants.StrategyBlueGreen {
		return constants.RollbackStrategyInstantSwitch
	}
	if reason == constants.RollbackReasonCriticalError || reason == constants.RollbackReasonSecurityIncident {
		return constants.RollbackStrategyEmergency
	}
	return constants.RollbackStrategyGradual
}

// expandSteps 策略 -> 有序步骤
func expandSteps(strategy string) []model.RollbackStep {
	switch strategy {
	case constants.RollbackStrategyInstantSwitch:
		return []model.RollbackStep{
			{Seq: 1, Action: constants.RollbackActionStopTraffic, Description: "停止向故障版本路由流量", EstimatedSeconds: 30, Status: constants.RollbackStepPending},
			{Seq: 2, Action: constants.RollbackActionRestore, Description: "恢复上一个稳定版本", EstimatedSeconds: 120, Status: constants.RollbackStepPending},
			{Seq: 3, Action: constants.RollbackActionVerify, Description: "验证回滚结果", EstimatedSeconds: 60, Status: constants.RollbackStepPending},
			{Seq: 4, Action: constants.RollbackActionCleanup, Description: "清理故障版本产物", EstimatedSeconds: 30, Status: constants.RollbackStepPending},
		}
	case constants.RollbackStrategyGradual:
		return []model.RollbackStep{
			{Seq: 1, Action: constants.RollbackActionReduceTraffic, Description: "逐步缩减新版本流量", EstimatedSeconds: 180, Status: constants.RollbackStepPending},
			{Seq: 2, Action: constants.RollbackActionRestore, Description: "恢复上一个稳定版本", EstimatedSeconds: 120, Status: constants.RollbackStepPending},
			{Seq: 3, Action: constants.RollbackActionVerify, Description: "验证回滚结果", EstimatedSeconds: 60, Status: constants.RollbackStepPending},
		}
	default:
		return []model.RollbackStep{
			{Seq: 1, Action: constants.RollbackActionEmergency, Description: "紧急回滚到上一版本", EstimatedSeconds: 90, Status: constants.RollbackStepPending},
			{Seq: 2, Action: constants.RollbackActionVerify, Description: "验证回滚结果", EstimatedSeconds: 30, Status: constants.RollbackStepPending},
		}
	}
}

// assessRollbackRisk 回滚自身的风险评估
// 信号来源: 原发布策略的激进程度与数据库迁移情况, 回滚整体风险偏低
func assessRollbackRisk(db *gorm.DB, release *model.Release, strategy string) (float64, string) {
	score := 2.0

	// 越激进的发布策略, 回滚时新版本承接的流量越大
	switch release.Strategy {
	case constants.StrategyDirect:
		score += 1.5
	case constants.StrategyRolling:
		score += 1.0
	}

	if strategy == constants.RollbackStrategyEmergency {
		score += 1.0
	}
	if release.CandidateTraffic >= 100 {
		score += 0.5
	}

	// 迁移没有对称的回退保障, 提升回滚风险
	if hasMigrationFactor(db, release) {
		score += 1.0
	}

	return score, constants.RiskLevelFromScore(score)
}

// hasMigrationFactor 发布关联的风险评估中是否存在数据库迁移因子
func hasMigrationFactor(db *gorm.DB, release *model.Release) bool {
	if release.RiskAssessmentID == nil {
		return false
	}

	var assessment model.RiskAssessment
	if err := db.First(&assessment, *release.RiskAssessmentID).Error; err != nil {
		return false
	}
	for _, factor := range assessment.Factors {
		if factor.Name == "complex_database_migration" {
			return true
		}
	}
	return false
}
