package constants

// ReadinessCheckStatus 就绪检查状态
const (
	CheckStatusPending = "pending"
	CheckStatusRunning = "running"
	CheckStatusPassed  = "passed"
	CheckStatusFailed  = "failed"
	CheckStatusWaived  = "waived"
	CheckStatusSkipped = "skipped"
)

// ReadinessOverallStatus 就绪聚合结论
const (
	ReadinessStatusReady   = "ready"
	ReadinessStatusPending = "pending"
	ReadinessStatusBlocked = "blocked"
)

// ReadinessReadyScore ready 结论要求的最低通过率(百分比)
const ReadinessReadyScore = 80.0

// 就绪检查名称, 固定面板
const (
	CheckTestCoverage   = "test_coverage"
	CheckSecurityScan   = "security_scan"
	CheckPerformance    = "performance_budget"
	CheckInfrastructure = "infrastructure_health"
	CheckCompliance     = "compliance_check"
	CheckDependency     = "dependency_check"
	CheckConfiguration  = "configuration_check"
	CheckMonitoring     = "monitoring_check"
)

// 检查分类
const (
	CheckCategoryQuality        = "quality"
	CheckCategorySecurity       = "security"
	CheckCategoryPerformance    = "performance"
	CheckCategoryInfrastructure = "infrastructure"
	CheckCategoryCompliance     = "compliance"
	CheckCategoryConfiguration  = "configuration"
	CheckCategoryObservability  = "observability"
	CheckCategorySystem         = "system" // 检查自身异常时的合成分类
)

// 严重级别
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
	SeverityInfo     = "info"
)

// WaiverExpireDays 豁免有效期(天)
const WaiverExpireDays = 30
