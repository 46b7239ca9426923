package dto

// ReadinessRunRequest 执行就绪检查请求, 信号未传则按健康基线处理
type ReadinessRunRequest struct {
	Service     string `json:"service" binding:"required,max=64"`
	Version     string `json:"version" binding:"required,max=64"`
	Environment string `json:"environment" binding:"required"`

	// 质量
	LineCoverage      *float64 `json:"line_coverage"`
	BranchCoverage    *float64 `json:"branch_coverage"`
	FunctionCoverage  *float64 `json:"function_coverage"`
	StatementCoverage *float64 `json:"statement_coverage"`

	// 安全
	CriticalVulns *int `json:"critical_vulns"`
	HighVulns     *int `json:"high_vulns"`
	MediumVulns   *int `json:"medium_vulns"`
	LowVulns      *int `json:"low_vulns"`

	// 性能
	P95LatencyMs     *float64 `json:"p95_latency_ms"`
	ErrorRatePercent *float64 `json:"error_rate_percent"`
	RequestsPerSec   *float64 `json:"requests_per_sec"`

	// 基础设施/合规/配置/监控, 组件名 -> 是否健康
	InfraComponents map[string]bool `json:"infra_components"`
	ComplianceItems map[string]bool `json:"compliance_items"`
	ConfigItems     map[string]bool `json:"config_items"`
	MonitoringItems map[string]bool `json:"monitoring_items"`

	// 依赖
	TotalDependencies      *int `json:"total_dependencies"`
	OutdatedDependencies   *int `json:"outdated_dependencies"`
	VulnerableDependencies *int `json:"vulnerable_dependencies"`
	LicenseViolations      *int `json:"license_violations"`
}

// WaiverCreateRequest 创建豁免请求
type WaiverCreateRequest struct {
	Service   string `json:"service" binding:"required,max=64"`
	CheckName string `json:"check_name" binding:"required,max=64"`
	Reason    string `json:"reason" binding:"required,max=512"`
}
