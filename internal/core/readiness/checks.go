package readiness

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"release-orchestrator/pkg/constants"
)

const remediationBase = "https://docs.example.com/readiness"

// DefaultPanel 固定检查面板, 顺序即报告顺序
func DefaultPanel() []Checker {
	return []Checker{
		coverageChecker{},
		securityChecker{},
		performanceChecker{},
		infrastructureChecker{},
		complianceChecker{},
		dependencyChecker{},
		configurationChecker{},
		monitoringChecker{},
	}
}

// coverageChecker 测试覆盖率, 行覆盖率达标即通过
type coverageChecker struct{}

func (coverageChecker) Name() string { return constants.CheckTestCoverage }

func (coverageChecker) Run(_ context.Context, signals Signals) (Check, error) {
	const threshold = 80.0
	passed := signals.LineCoverage >= threshold

	check := Check{
		Name:           constants.CheckTestCoverage,
		Category:       constants.CheckCategoryQuality,
		Status:         statusOf(passed),
		Message:        fmt.Sprintf("行覆盖率%.1f%% (阈值%.0f%%)", signals.LineCoverage, threshold),
		Severity:       severityOf(passed, constants.SeverityMedium),
		Waivable:       true,
		RemediationURL: remediationBase + "/test-coverage",
		Detail: map[string]interface{}{
			"line_coverage":      signals.LineCoverage,
			"branch_coverage":    signals.BranchCoverage,
			"function_coverage":  signals.FunctionCoverage,
			"statement_coverage": signals.StatementCoverage,
		},
	}
	if !passed {
		check.FixMinutes = 60
	}
	return check, nil
}

// securityChecker 安全扫描, 严重漏洞=0且高危≤2
type securityChecker struct{}

func (securityChecker) Name() string { return constants.CheckSecurityScan }

func (securityChecker) Run(_ context.Context, signals Signals) (Check, error) {
	passed := signals.CriticalVulns == 0 && signals.HighVulns <= 2

	check := Check{
		Name:     constants.CheckSecurityScan,
		Category: constants.CheckCategorySecurity,
		Status:   statusOf(passed),
		Message: fmt.Sprintf("安全扫描: %d个严重, %d个高危漏洞",
			signals.CriticalVulns, signals.HighVulns),
		Severity:       severityOf(passed, constants.SeverityHigh),
		Waivable:       true,
		RemediationURL: remediationBase + "/security",
		Detail: map[string]interface{}{
			"critical": signals.CriticalVulns,
			"high":     signals.HighVulns,
			"medium":   signals.MediumVulns,
			"low":      signals.LowVulns,
		},
	}
	if !passed {
		check.FixMinutes = 120
	}
	return check, nil
}

// performanceChecker 性能预算, p95≤500ms且错误率≤1%, 不可豁免
type performanceChecker struct{}

func (performanceChecker) Name() string { return constants.CheckPerformance }

func (performanceChecker) Run(_ context.Context, signals Signals) (Check, error) {
	const (
		p95Threshold       = 500.0
		errorRateThreshold = 1.0
	)
	passed := signals.P95LatencyMs <= p95Threshold && signals.ErrorRatePercent <= errorRateThreshold

	check := Check{
		Name:     constants.CheckPerformance,
		Category: constants.CheckCategoryPerformance,
		Status:   statusOf(passed),
		Message: fmt.Sprintf("性能: p95 %.0fms, 错误率%.2f%%",
			signals.P95LatencyMs, signals.ErrorRatePercent),
		Severity:       severityOf(passed, constants.SeverityMedium),
		Waivable:       false,
		RemediationURL: remediationBase + "/performance",
		Detail: map[string]interface{}{
			"p95_latency_ms":     signals.P95LatencyMs,
			"error_rate_percent": signals.ErrorRatePercent,
			"requests_per_sec":   signals.RequestsPerSec,
		},
	}
	if !passed {
		check.FixMinutes = 180
	}
	return check, nil
}

// infrastructureChecker 基础设施健康, 全部组件健康才通过, 不可豁免
type infrastructureChecker struct{}

func (infrastructureChecker) Name() string { return constants.CheckInfrastructure }

func (infrastructureChecker) Run(_ context.Context, signals Signals) (Check, error) {
	failed := unhealthyItems(signals.InfraComponents)
	passed := len(failed) == 0

	message := "基础设施组件全部健康"
	if !passed {
		message = fmt.Sprintf("基础设施异常: %v", failed)
	}

	check := Check{
		Name:           constants.CheckInfrastructure,
		Category:       constants.CheckCategoryInfrastructure,
		Status:         statusOf(passed),
		Message:        message,
		Severity:       severityOf(passed, constants.SeverityHigh),
		Waivable:       false,
		RemediationURL: remediationBase + "/infrastructure",
		Detail:         boolDetail(signals.InfraComponents),
	}
	if !passed {
		check.FixMinutes = 30
	}
	return check, nil
}

// complianceChecker 合规检查
type complianceChecker struct{}

func (complianceChecker) Name() string { return constants.CheckCompliance }

func (complianceChecker) Run(_ context.Context, signals Signals) (Check, error) {
	failed := unhealthyItems(signals.ComplianceItems)
	passed := len(failed) == 0

	message := "合规检查全部通过"
	if !passed {
		message = fmt.Sprintf("合规项未达标: %v", failed)
	}

	check := Check{
		Name:           constants.CheckCompliance,
		Category:       constants.CheckCategoryCompliance,
		Status:         statusOf(passed),
		Message:        message,
		Severity:       severityOf(passed, constants.SeverityMedium),
		Waivable:       true,
		RemediationURL: remediationBase + "/compliance",
		Detail:         boolDetail(signals.ComplianceItems),
	}
	if !passed {
		check.FixMinutes = 90
	}
	return check, nil
}

// dependencyChecker 依赖检查, 带漏洞依赖≤5
type dependencyChecker struct{}

func (dependencyChecker) Name() string { return constants.CheckDependency }

func (dependencyChecker) Run(_ context.Context, signals Signals) (Check, error) {
	const vulnerableThreshold = 5
	passed := signals.VulnerableDependencies <= vulnerableThreshold

	check := Check{
		Name:     constants.CheckDependency,
		Category: constants.CheckCategorySecurity,
		Status:   statusOf(passed),
		Message: fmt.Sprintf("依赖: %d个存在漏洞, %d个过期",
			signals.VulnerableDependencies, signals.OutdatedDependencies),
		Severity:       severityOf(passed, constants.SeverityMedium),
		Waivable:       true,
		RemediationURL: remediationBase + "/dependencies",
		Detail: map[string]interface{}{
			"total":      signals.TotalDependencies,
			"outdated":   signals.OutdatedDependencies,
			"vulnerable": signals.VulnerableDependencies,
			"license":    signals.LicenseViolations,
		},
	}
	if !passed {
		check.FixMinutes = 45
	}
	return check, nil
}

// configurationChecker 配置检查
type configurationChecker struct{}

func (configurationChecker) Name() string { return constants.CheckConfiguration }

func (configurationChecker) Run(_ context.Context, signals Signals) (Check, error) {
	failed := unhealthyItems(signals.ConfigItems)
	passed := len(failed) == 0

	message := "配置检查全部通过"
	if !passed {
		message = fmt.Sprintf("配置项缺失: %v", failed)
	}

	check := Check{
		Name:           constants.CheckConfiguration,
		Category:       constants.CheckCategoryConfiguration,
		Status:         statusOf(passed),
		Message:        message,
		Severity:       severityOf(passed, constants.SeverityMedium),
		Waivable:       true,
		RemediationURL: remediationBase + "/configuration",
		Detail:         boolDetail(signals.ConfigItems),
	}
	if !passed {
		check.FixMinutes = 30
	}
	return check, nil
}

// monitoringChecker 监控配置检查
type monitoringChecker struct{}

func (monitoringChecker) Name() string { return constants.CheckMonitoring }

func (monitoringChecker) Run(_ context.Context, signals Signals) (Check, error) {
	failed := unhealthyItems(signals.MonitoringItems)
	passed := len(failed) == 0

	message := "监控配置完整"
	if !passed {
		message = fmt.Sprintf("监控配置缺失: %v", failed)
	}

	check := Check{
		Name:           constants.CheckMonitoring,
		Category:       constants.CheckCategoryObservability,
		Status:         statusOf(passed),
		Message:        message,
		Severity:       severityOf(passed, constants.SeverityLow),
		Waivable:       true,
		RemediationURL: remediationBase + "/monitoring",
		Detail:         boolDetail(signals.MonitoringItems),
	}
	if !passed {
		check.FixMinutes = 60
	}
	return check, nil
}

func statusOf(passed bool) string {
	if passed {
		return constants.CheckStatusPassed
	}
	return constants.CheckStatusFailed
}

func severityOf(passed bool, failedSeverity string) string {
	if passed {
		return constants.SeverityInfo
	}
	return failedSeverity
}

// unhealthyItems 返回不健康项名称, 排序保证消息稳定
func unhealthyItems(items map[string]bool) []string {
	failed := lo.Keys(lo.PickBy(items, func(_ string, healthy bool) bool { return !healthy }))
	sort.Strings(failed)
	return failed
}

func boolDetail(items map[string]bool) map[string]interface{} {
	detail := make(map[string]interface{}, len(items))
	for name, healthy := range items {
		detail[name] = healthy
	}
	return detail
}
