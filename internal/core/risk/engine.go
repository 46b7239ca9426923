package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/samber/lo"

	"release-orchestrator/internal/model"
	"release-orchestrator/pkg/constants"
)

// Result 一次评估的完整结果
type Result struct {
	OverallScore      float64            `json:"overall_score"` // 1-10
	Level             string             `json:"risk_level"`
	Confidence        float64            `json:"confidence"` // 0-100
	SuggestedStrategy string             `json:"suggested_strategy"`
	Factors           []model.RiskFactor `json:"factors"`
	CategoryScores    map[string]float64 `json:"category_scores"`
	Recommendations   []string           `json:"recommendations"`
	Mitigations       []string           `json:"mitigations"`
	ExpiresAt         time.Time          `json:"expires_at"`
}

// Assess 执行风险评估, 纯函数, 无副作用
func Assess(ctx DeploymentContext) Result {
	factors := collectFactors(ctx)

	score := overallScore(factors)
	level := constants.RiskLevelFromScore(score)
	confidence := confidenceScore(factors)

	return Result{
		OverallScore:      score,
		Level:             level,
		Confidence:        confidence,
		SuggestedStrategy: SuggestStrategy(level, confidence),
		Factors:           factors,
		CategoryScores:    categoryScores(factors),
		Recommendations:   recommendations(factors, level),
		Mitigations:       mitigations(factors),
		ExpiresAt:         ctx.At.Add(constants.RiskAssessmentValidity),
	}
}

// collectFactors 五类规则依次检查, 命中即产出因子
func collectFactors(ctx DeploymentContext) []model.RiskFactor {
	var factors []model.RiskFactor
	factors = append(factors, technicalFactors(ctx)...)
	factors = append(factors, operationalFactors(ctx)...)
	factors = append(factors, securityFactors(ctx)...)
	factors = append(factors, complianceFactors(ctx)...)
	factors = append(factors, businessFactors(ctx)...)
	return factors
}

func technicalFactors(ctx DeploymentContext) []model.RiskFactor {
	var factors []model.RiskFactor

	if ctx.TestCoverage < 70 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryTechnical,
			Name:        "low_test_coverage",
			Description: fmt.Sprintf("测试覆盖率%.0f%%, 低于推荐值80%%", ctx.TestCoverage),
			Score:       8.0,
			Weight:      0.8,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodMedium,
		})
	} else if ctx.TestCoverage < 80 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryTechnical,
			Name:        "moderate_test_coverage",
			Description: fmt.Sprintf("测试覆盖率%.0f%%, 低于最优值80%%", ctx.TestCoverage),
			Score:       5.0,
			Weight:      0.6,
			Impact:      constants.ImpactMedium,
			Likelihood:  constants.LikelihoodLow,
		})
	}

	if ctx.OutdatedDependencies > 10 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryTechnical,
			Name:        "outdated_dependencies",
			Description: fmt.Sprintf("检测到%d个过期依赖", ctx.OutdatedDependencies),
			Score:       7.0,
			Weight:      0.7,
			Impact:      constants.ImpactMedium,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	if ctx.PerformanceScore < 70 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryTechnical,
			Name:        "poor_performance",
			Description: fmt.Sprintf("性能评分%.0f%%, 存在性能隐患", ctx.PerformanceScore),
			Score:       8.5,
			Weight:      0.9,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodHigh,
		})
	}

	if ctx.HasDatabaseMigrations && ctx.MigrationComplexity == "high" {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryTechnical,
			Name:        "complex_database_migration",
			Description: "复杂数据库迁移显著增加发布风险",
			Score:       9.0,
			Weight:      0.9,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	return factors
}

func operationalFactors(ctx DeploymentContext) []model.RiskFactor {
	var factors []model.RiskFactor

	hour := ctx.At.Hour()
	weekday := ctx.At.Weekday()

	if hour >= 9 && hour <= 17 && weekday >= time.Monday && weekday <= time.Friday {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryOperational,
			Name:        "business_hours_deployment",
			Description: "工作时段发布, 用户影响风险升高",
			Score:       6.0,
			Weight:      0.5,
			Impact:      constants.ImpactMedium,
			Likelihood:  constants.LikelihoodHigh,
		})
	}

	if weekday == time.Friday {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryOperational,
			Name:        "friday_deployment",
			Description: "周五发布, 周末值守能力有限",
			Score:       7.0,
			Weight:      0.6,
			Impact:      constants.ImpactMedium,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	if ctx.TeamSize < 2 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryOperational,
			Name:        "small_team_size",
			Description: fmt.Sprintf("团队规模过小(%d人), 故障响应能力受限", ctx.TeamSize),
			Score:       6.5,
			Weight:      0.7,
			Impact:      constants.ImpactMedium,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	if ctx.MonitoringCoverage < 80 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryOperational,
			Name:        "insufficient_monitoring",
			Description: fmt.Sprintf("监控覆盖率%.0f%%, 低于推荐值90%%", ctx.MonitoringCoverage),
			Score:       8.0,
			Weight:      0.8,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	if !ctx.RollbackTested {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryOperational,
			Name:        "untested_rollback",
			Description: "回滚流程近期未经演练",
			Score:       7.5,
			Weight:      0.8,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodLow,
		})
	}

	return factors
}

func securityFactors(ctx DeploymentContext) []model.RiskFactor {
	var factors []model.RiskFactor

	if ctx.CriticalVulnerabilities > 0 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategorySecurity,
			Name:        "critical_vulnerabilities",
			Description: fmt.Sprintf("发现%d个严重安全漏洞", ctx.CriticalVulnerabilities),
			Score:       9.5,
			Weight:      1.0,
			Impact:      constants.ImpactCritical,
			Likelihood:  constants.LikelihoodHigh,
		})
	}

	if ctx.HighVulnerabilities > 3 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategorySecurity,
			Name:        "high_vulnerabilities",
			Description: fmt.Sprintf("发现%d个高危安全漏洞", ctx.HighVulnerabilities),
			Score:       7.5,
			Weight:      0.8,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	if !ctx.SecretsEncrypted {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategorySecurity,
			Name:        "unencrypted_secrets",
			Description: "密钥未加密存储",
			Score:       9.0,
			Weight:      0.9,
			Impact:      constants.ImpactCritical,
			Likelihood:  constants.LikelihoodHigh,
		})
	}

	if !ctx.AuthConfigured {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategorySecurity,
			Name:        "missing_authentication",
			Description: "认证配置缺失",
			Score:       8.5,
			Weight:      0.9,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodHigh,
		})
	}

	return factors
}

func complianceFactors(ctx DeploymentContext) []model.RiskFactor {
	var factors []model.RiskFactor

	if lo.Contains(ctx.ComplianceFrameworks, "SOC2") && ctx.SOC2Score < 90 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryCompliance,
			Name:        "soc2_compliance_gap",
			Description: fmt.Sprintf("SOC2合规评分%.0f%%, 低于要求的90%%", ctx.SOC2Score),
			Score:       7.0,
			Weight:      0.8,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	if lo.Contains(ctx.ComplianceFrameworks, "HIPAA") && ctx.HIPAAScore < 95 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryCompliance,
			Name:        "hipaa_compliance_gap",
			Description: fmt.Sprintf("HIPAA合规评分%.0f%%, 低于要求的95%%", ctx.HIPAAScore),
			Score:       8.5,
			Weight:      0.9,
			Impact:      constants.ImpactCritical,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	if ctx.HandlesPII && ctx.PIIProtectionScore < 85 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryCompliance,
			Name:        "inadequate_pii_protection",
			Description: fmt.Sprintf("PII保护评分%.0f%%, 低于要求的85%%", ctx.PIIProtectionScore),
			Score:       8.0,
			Weight:      0.9,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	return factors
}

func businessFactors(ctx DeploymentContext) []model.RiskFactor {
	var factors []model.RiskFactor

	if ctx.ActiveUsers > 10000 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryBusiness,
			Name:        "high_user_impact",
			Description: fmt.Sprintf("活跃用户量大(%d), 发布故障影响面广", ctx.ActiveUsers),
			Score:       7.0,
			Weight:      0.8,
			Impact:      constants.ImpactHigh,
			Likelihood:  constants.LikelihoodLow,
		})
	}

	switch ctx.RevenueImpact {
	case "high":
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryBusiness,
			Name:        "high_revenue_impact",
			Description: "发布涉及核心营收功能",
			Score:       8.5,
			Weight:      0.9,
			Impact:      constants.ImpactCritical,
			Likelihood:  constants.LikelihoodLow,
		})
	case "medium":
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryBusiness,
			Name:        "medium_revenue_impact",
			Description: "发布涉及营收相关功能",
			Score:       6.0,
			Weight:      0.7,
			Impact:      constants.ImpactMedium,
			Likelihood:  constants.LikelihoodLow,
		})
	}

	if ctx.SLAUptime > 99.9 {
		factors = append(factors, model.RiskFactor{
			Category:    constants.RiskCategoryBusiness,
			Name:        "strict_sla_requirements",
			Description: fmt.Sprintf("SLA要求严格(%.2f%%可用性), 发布容错空间小", ctx.SLAUptime),
			Score:       6.5,
			Weight:      0.7,
			Impact:      constants.ImpactMedium,
			Likelihood:  constants.LikelihoodMedium,
		})
	}

	return factors
}

// overallScore 加权平均, 裁剪到[1,10]; 无因子时返回1.0
func overallScore(factors []model.RiskFactor) float64 {
	if len(factors) == 0 {
		return 1.0
	}

	var weightedSum, weightSum float64
	for _, f := range factors {
		weightedSum += f.Score * f.Weight
		weightSum += f.Weight
	}
	if weightSum == 0 {
		return 1.0
	}

	raw := weightedSum / weightSum
	return round2(math.Min(10.0, math.Max(1.0, raw)))
}

// confidenceScore 基准100, 每个因子按影响×可能性扣减, 下限0
func confidenceScore(factors []model.RiskFactor) float64 {
	confidence := 100.0
	for _, f := range factors {
		confidence -= impactMultiplier(f.Impact) * likelihoodMultiplier(f.Likelihood) * 10
	}
	return round1(math.Max(0.0, math.Min(100.0, confidence)))
}

func impactMultiplier(impact string) float64 {
	switch impact {
	case constants.ImpactCritical:
		return 0.8
	case constants.ImpactHigh:
		return 0.6
	case constants.ImpactLow:
		return 0.2
	default:
		return 0.4
	}
}

func likelihoodMultiplier(likelihood string) float64 {
	switch likelihood {
	case constants.LikelihoodHigh:
		return 1.0
	case constants.LikelihoodLow:
		return 0.4
	default:
		return 0.7
	}
}

// SuggestStrategy 风险级别与置信度 → 策略建议, 风险越高建议越保守
func SuggestStrategy(level string, confidence float64) string {
	switch {
	case level == constants.RiskLevelCritical || confidence < constants.ConfidenceCanaryBelow:
		return constants.StrategyCanary
	case level == constants.RiskLevelHigh || confidence < constants.ConfidenceBlueGreenBelow:
		return constants.StrategyBlueGreen
	case level == constants.RiskLevelMedium || confidence < constants.ConfidenceRollingBelow:
		return constants.StrategyRolling
	default:
		return constants.StrategyDirect
	}
}

// categoryScores 按分类的加权平均分
func categoryScores(factors []model.RiskFactor) map[string]float64 {
	grouped := lo.GroupBy(factors, func(f model.RiskFactor) string { return f.Category })

	scores := make(map[string]float64, len(grouped))
	for category, group := range grouped {
		scores[category] = overallScoreOf(group)
	}
	return scores
}

func overallScoreOf(factors []model.RiskFactor) float64 {
	var weightedSum, weightSum float64
	for _, f := range factors {
		weightedSum += f.Score * f.Weight
		weightSum += f.Weight
	}
	if weightSum == 0 {
		return 0
	}
	return round2(weightedSum / weightSum)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
