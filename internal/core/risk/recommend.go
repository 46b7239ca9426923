package risk

import (
	"github.com/samber/lo"

	"release-orchestrator/internal/model"
	"release-orchestrator/pkg/constants"
)

// recommendations 按风险级别与命中分类生成缓解建议, 最多10条
func recommendations(factors []model.RiskFactor, level string) []string {
	var recs []string

	if level == constants.RiskLevelCritical || level == constants.RiskLevelHigh {
		recs = append(recs,
			"建议推迟发布, 优先处理严重风险项",
			"使用金丝雀策略以最小化影响面",
			"确认回滚流程已演练且随时可用",
			"安排应急响应人员值守",
		)
	}

	categories := lo.Uniq(lo.Map(factors, func(f model.RiskFactor, _ int) string { return f.Category }))

	for _, category := range categories {
		switch category {
		case constants.RiskCategoryTechnical:
			recs = append(recs,
				"发布前提升测试覆盖率",
				"升级过期依赖",
				"执行性能测试验证变更",
			)
		case constants.RiskCategorySecurity:
			recs = append(recs,
				"修复所有严重与高危漏洞",
				"确认密钥已加密存储",
				"发布前执行安全扫描",
			)
		case constants.RiskCategoryOperational:
			recs = append(recs,
				"将发布安排在低流量时段",
				"完善监控与告警覆盖",
				"确认团队具备故障响应能力",
			)
		case constants.RiskCategoryCompliance:
			recs = append(recs,
				"完成合规差距分析",
				"确认满足全部监管要求",
				"留存合规证明材料",
			)
		case constants.RiskCategoryBusiness:
			recs = append(recs,
				"提前通知相关业务方发布计划",
				"准备故障对外沟通预案",
				"考虑在维护窗口内发布",
			)
		}
	}

	if len(recs) > 10 {
		recs = recs[:10]
	}
	return recs
}

// mitigations 针对具体因子的处置动作
func mitigations(factors []model.RiskFactor) []string {
	var actions []string

	for _, f := range factors {
		switch f.Name {
		case "low_test_coverage":
			actions = append(actions, "补充单元与集成测试, 覆盖率达到80%")
		case "critical_vulnerabilities":
			actions = append(actions, "升级依赖并修补严重安全漏洞")
		case "insufficient_monitoring":
			actions = append(actions, "为关键指标与健康检查补充监控")
		case "untested_rollback":
			actions = append(actions, "在预发环境演练回滚流程")
		case "complex_database_migration":
			actions = append(actions, "拆分迁移步骤并准备迁移回退脚本")
		case "unencrypted_secrets":
			actions = append(actions, "将明文密钥迁移到加密存储")
		}
	}

	return actions
}
