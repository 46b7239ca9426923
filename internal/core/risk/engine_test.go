package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"release-orchestrator/internal/model"
	"release-orchestrator/pkg/constants"
)

// 周六凌晨, 避开工作时段与周五规则
var quietTime = time.Date(2025, 1, 4, 3, 0, 0, 0, time.UTC)

func healthyContext() DeploymentContext {
	ctx := NewDeploymentContext("payment", "v1.2.0", constants.EnvProduction)
	ctx.At = quietTime
	return ctx
}

func TestAssessNoFactors(t *testing.T) {
	result := Assess(healthyContext())

	assert.Empty(t, result.Factors)
	assert.Equal(t, 1.0, result.OverallScore)
	assert.Equal(t, constants.RiskLevelVeryLow, result.Level)
	assert.Equal(t, 100.0, result.Confidence)
	assert.Equal(t, constants.StrategyDirect, result.SuggestedStrategy)
}

func TestAssessCriticalVulnerabilities(t *testing.T) {
	ctx := healthyContext()
	ctx.CriticalVulnerabilities = 2

	result := Assess(ctx)

	require.Len(t, result.Factors, 1)
	factor := result.Factors[0]
	assert.Equal(t, constants.RiskCategorySecurity, factor.Category)
	assert.Equal(t, 9.5, factor.Score)
	assert.Equal(t, constants.ImpactCritical, factor.Impact)

	assert.Equal(t, constants.RiskLevelCritical, result.Level)
	assert.Equal(t, constants.StrategyCanary, result.SuggestedStrategy)
}

func TestAssessFridayBusinessHours(t *testing.T) {
	ctx := healthyContext()
	ctx.At = time.Date(2025, 1, 3, 14, 0, 0, 0, time.UTC) // 周五下午

	result := Assess(ctx)

	names := make([]string, 0, len(result.Factors))
	for _, f := range result.Factors {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "friday_deployment")
	assert.Contains(t, names, "business_hours_deployment")

	// (6.0*0.5 + 7.0*0.6) / 1.1
	assert.InDelta(t, 6.55, result.OverallScore, 0.01)
	assert.Equal(t, constants.RiskLevelMedium, result.Level)
	assert.Equal(t, constants.StrategyRolling, result.SuggestedStrategy)
}

func TestConfidenceReduction(t *testing.T) {
	ctx := healthyContext()
	ctx.TestCoverage = 60 // impact high(0.6) × likelihood medium(0.7) × 10 = 4.2

	result := Assess(ctx)

	assert.InDelta(t, 95.8, result.Confidence, 0.01)
}

func TestScoreAndConfidenceBounds(t *testing.T) {
	contexts := []DeploymentContext{
		healthyContext(),
		func() DeploymentContext {
			// 全部规则命中的最差上下文
			ctx := healthyContext()
			ctx.At = time.Date(2025, 1, 3, 10, 0, 0, 0, time.UTC)
			ctx.TestCoverage = 10
			ctx.OutdatedDependencies = 30
			ctx.PerformanceScore = 40
			ctx.HasDatabaseMigrations = true
			ctx.MigrationComplexity = "high"
			ctx.TeamSize = 1
			ctx.MonitoringCoverage = 40
			ctx.RollbackTested = false
			ctx.CriticalVulnerabilities = 5
			ctx.HighVulnerabilities = 10
			ctx.SecretsEncrypted = false
			ctx.AuthConfigured = false
			ctx.ComplianceFrameworks = []string{"SOC2", "HIPAA"}
			ctx.SOC2Score = 50
			ctx.HIPAAScore = 50
			ctx.HandlesPII = true
			ctx.PIIProtectionScore = 40
			ctx.ActiveUsers = 500000
			ctx.RevenueImpact = "high"
			ctx.SLAUptime = 99.99
			return ctx
		}(),
		func() DeploymentContext {
			ctx := healthyContext()
			ctx.TestCoverage = 75
			ctx.RevenueImpact = "medium"
			return ctx
		}(),
	}

	for _, ctx := range contexts {
		result := Assess(ctx)
		assert.GreaterOrEqual(t, result.OverallScore, 1.0)
		assert.LessOrEqual(t, result.OverallScore, 10.0)
		assert.GreaterOrEqual(t, result.Confidence, 0.0)
		assert.LessOrEqual(t, result.Confidence, 100.0)
	}
}

func TestAssessDeterministic(t *testing.T) {
	ctx := healthyContext()
	ctx.CriticalVulnerabilities = 1
	ctx.TestCoverage = 50

	first := Assess(ctx)
	second := Assess(ctx)

	assert.Equal(t, first.OverallScore, second.OverallScore)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Factors, second.Factors)
}

func TestSuggestionMonotonic(t *testing.T) {
	// 风险逐级升高时, 策略建议只能更保守
	steps := []func(*DeploymentContext){
		func(ctx *DeploymentContext) {},
		func(ctx *DeploymentContext) { ctx.TestCoverage = 75 },
		func(ctx *DeploymentContext) { ctx.MonitoringCoverage = 60 },
		func(ctx *DeploymentContext) { ctx.HighVulnerabilities = 5 },
		func(ctx *DeploymentContext) { ctx.CriticalVulnerabilities = 1 },
	}

	ctx := healthyContext()
	last := -1
	for _, step := range steps {
		step(&ctx)
		result := Assess(ctx)
		conservatism := constants.StrategyConservatism[result.SuggestedStrategy]
		assert.GreaterOrEqual(t, conservatism, last,
			"策略建议不应随风险升高而变得更激进")
		last = conservatism
	}
}

func TestCategoryScores(t *testing.T) {
	ctx := healthyContext()
	ctx.CriticalVulnerabilities = 1
	ctx.SecretsEncrypted = false
	ctx.TestCoverage = 60

	result := Assess(ctx)

	// security: (9.5*1.0 + 9.0*0.9) / 1.9
	assert.InDelta(t, 9.26, result.CategoryScores[constants.RiskCategorySecurity], 0.01)
	assert.InDelta(t, 8.0, result.CategoryScores[constants.RiskCategoryTechnical], 0.01)
}

func TestRecommendationsAndMitigations(t *testing.T) {
	ctx := healthyContext()
	ctx.CriticalVulnerabilities = 1
	ctx.TestCoverage = 50
	ctx.RollbackTested = false

	result := Assess(ctx)

	assert.NotEmpty(t, result.Recommendations)
	assert.LessOrEqual(t, len(result.Recommendations), 10)
	assert.NotEmpty(t, result.Mitigations)
}

func TestFactorsNeverMutated(t *testing.T) {
	ctx := healthyContext()
	ctx.CriticalVulnerabilities = 1

	result := Assess(ctx)
	original := make([]model.RiskFactor, len(result.Factors))
	copy(original, result.Factors)

	_ = Assess(ctx)
	assert.Equal(t, original, result.Factors)
}
