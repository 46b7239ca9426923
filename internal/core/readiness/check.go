package readiness

import (
	"context"
)

// Check 单项检查结果
type Check struct {
	Name           string                 `json:"name"`
	Category       string                 `json:"category"`
	Severity       string                 `json:"severity"`
	Status         string                 `json:"status"`
	Message        string                 `json:"message"`
	Waivable       bool                   `json:"waivable"`
	RemediationURL string                 `json:"remediation_url,omitempty"`
	FixMinutes     int                    `json:"estimated_fix_time_minutes"`
	WaiverID       *int64                 `json:"waiver_id,omitempty"`
	Detail         map[string]interface{} `json:"detail,omitempty"`
}

// Checker 检查实现的契约, 聚合器只依赖此接口
type Checker interface {
	Name() string
	Run(ctx context.Context, signals Signals) (Check, error)
}

// Signals 检查所需的外部信号快照, 由 Source 采集
type Signals struct {
	// 质量
	LineCoverage      float64 `json:"line_coverage"`
	BranchCoverage    float64 `json:"branch_coverage"`
	FunctionCoverage  float64 `json:"function_coverage"`
	StatementCoverage float64 `json:"statement_coverage"`

	// 安全
	CriticalVulns int `json:"critical_vulns"`
	HighVulns     int `json:"high_vulns"`
	MediumVulns   int `json:"medium_vulns"`
	LowVulns      int `json:"low_vulns"`

	// 性能
	P95LatencyMs     float64 `json:"p95_latency_ms"`
	ErrorRatePercent float64 `json:"error_rate_percent"`
	RequestsPerSec   float64 `json:"requests_per_sec"`

	// 基础设施/合规/配置/监控, 组件名 -> 是否健康
	InfraComponents map[string]bool `json:"infra_components"`
	ComplianceItems map[string]bool `json:"compliance_items"`
	ConfigItems     map[string]bool `json:"config_items"`
	MonitoringItems map[string]bool `json:"monitoring_items"`

	// 依赖
	TotalDependencies      int `json:"total_dependencies"`
	OutdatedDependencies   int `json:"outdated_dependencies"`
	VulnerableDependencies int `json:"vulnerable_dependencies"`
	LicenseViolations      int `json:"license_violations"`
}

// Source 信号采集器, 对接覆盖率平台/扫描器/监控系统
type Source interface {
	Collect(ctx context.Context, service, environment string) (Signals, error)
}
