package constants

import "time"

// RiskLevel 风险级别
const (
	RiskLevelVeryLow  = "very_low"
	RiskLevelLow      = "low"
	RiskLevelMedium   = "medium"
	RiskLevelHigh     = "high"
	RiskLevelCritical = "critical"
)

// RiskCategory 风险分类
const (
	RiskCategoryTechnical   = "technical"
	RiskCategoryOperational = "operational"
	RiskCategorySecurity    = "security"
	RiskCategoryCompliance  = "compliance"
	RiskCategoryBusiness    = "business"
)

// 风险级别分数阈值
const (
	RiskScoreCritical = 8.5
	RiskScoreHigh     = 7.0
	RiskScoreMedium   = 5.0
	RiskScoreLow      = 3.0
)

// RiskLevelFromScore 分数 → 级别
func RiskLevelFromScore(score float64) string {
	switch {
	case score >= RiskScoreCritical:
		return RiskLevelCritical
	case score >= RiskScoreHigh:
		return RiskLevelHigh
	case score >= RiskScoreMedium:
		return RiskLevelMedium
	case score >= RiskScoreLow:
		return RiskLevelLow
	default:
		return RiskLevelVeryLow
	}
}

// Impact / Likelihood 取值
const (
	ImpactCritical = "critical"
	ImpactHigh     = "high"
	ImpactMedium   = "medium"
	ImpactLow      = "low"

	LikelihoodHigh   = "high"
	LikelihoodMedium = "medium"
	LikelihoodLow    = "low"
)

// RiskAssessmentValidity 风险评估有效期, 过期的评估不允许用于准入
const RiskAssessmentValidity = 24 * time.Hour

// 置信度对应的策略建议阈值
const (
	ConfidenceCanaryBelow    = 60.0
	ConfidenceBlueGreenBelow = 75.0
	ConfidenceRollingBelow   = 85.0
)
