package dto

import "time"

// RiskAssessRequest 风险评估请求, 未传的指标按健康值处理
type RiskAssessRequest struct {
	Service     string     `json:"service" binding:"required,max=64"`
	Version     string     `json:"version" binding:"required,max=64"`
	Environment string     `json:"environment" binding:"required"`
	PlannedAt   *time.Time `json:"planned_at"` // 计划发布时间, 不传按当前时间

	// 技术指标
	TestCoverage          *float64 `json:"test_coverage"`
	OutdatedDependencies  *int     `json:"outdated_dependencies"`
	PerformanceScore      *float64 `json:"performance_score"`
	HasDatabaseMigrations bool     `json:"has_database_migrations"`
	MigrationComplexity   string   `json:"migration_complexity" binding:"omitempty,oneof=low medium high"`

	// 运维指标
	TeamSize           *int     `json:"team_size"`
	MonitoringCoverage *float64 `json:"monitoring_coverage"`
	RollbackTested     *bool    `json:"rollback_tested"`

	// 安全指标
	CriticalVulnerabilities int   `json:"critical_vulnerabilities"`
	HighVulnerabilities     int   `json:"high_vulnerabilities"`
	SecretsEncrypted        *bool `json:"secrets_encrypted"`
	AuthConfigured          *bool `json:"authentication_configured"`

	// 合规指标
	ComplianceFrameworks []string `json:"compliance_frameworks"`
	SOC2Score            *float64 `json:"soc2_compliance_score"`
	HIPAAScore           *float64 `json:"hipaa_compliance_score"`
	HandlesPII           bool     `json:"handles_pii"`
	PIIProtectionScore   *float64 `json:"pii_protection_score"`

	// 业务指标
	ActiveUsers   *int     `json:"active_users"`
	RevenueImpact string   `json:"revenue_impact" binding:"omitempty,oneof=low medium high"`
	SLAUptime     *float64 `json:"sla_uptime"`
}
