package risk

import (
	"time"
)

// DeploymentContext 风险评估输入, 由调用方采集
// 时间相关规则使用 At 字段, 评估结果对同一上下文保持确定性
type DeploymentContext struct {
	Service     string    `json:"service"`
	Version     string    `json:"version"`
	Environment string    `json:"environment"`
	At          time.Time `json:"at"` // 计划发布时间

	// 技术指标
	TestCoverage          float64 `json:"test_coverage"`          // 百分比
	OutdatedDependencies  int     `json:"outdated_dependencies"`  // 过期依赖数
	PerformanceScore      float64 `json:"performance_score"`      // 百分比
	HasDatabaseMigrations bool    `json:"has_database_migrations"`
	MigrationComplexity   string  `json:"migration_complexity"` // low/medium/high

	// 运维指标
	TeamSize           int     `json:"team_size"`
	MonitoringCoverage float64 `json:"monitoring_coverage"` // 百分比
	RollbackTested     bool    `json:"rollback_tested"`

	// 安全指标
	CriticalVulnerabilities int  `json:"critical_vulnerabilities"`
	HighVulnerabilities     int  `json:"high_vulnerabilities"`
	SecretsEncrypted        bool `json:"secrets_encrypted"`
	AuthConfigured          bool `json:"authentication_configured"`

	// 合规指标
	ComplianceFrameworks []string `json:"compliance_frameworks"` // SOC2/HIPAA
	SOC2Score            float64  `json:"soc2_compliance_score"`
	HIPAAScore           float64  `json:"hipaa_compliance_score"`
	HandlesPII           bool     `json:"handles_pii"`
	PIIProtectionScore   float64  `json:"pii_protection_score"`

	// 业务指标
	ActiveUsers   int     `json:"active_users"`
	RevenueImpact string  `json:"revenue_impact"` // low/medium/high
	SLAUptime     float64 `json:"sla_uptime"`     // 百分比
}

// NewDeploymentContext 创建带默认指标的上下文, 未采集到的指标按健康值处理
func NewDeploymentContext(service, version, environment string) DeploymentContext {
	return DeploymentContext{
		Service:            service,
		Version:            version,
		Environment:        environment,
		At:                 time.Now(),
		TestCoverage:       80,
		PerformanceScore:   85,
		TeamSize:           3,
		MonitoringCoverage: 90,
		RollbackTested:     true,
		SecretsEncrypted:   true,
		AuthConfigured:     true,
		SOC2Score:          95,
		HIPAAScore:         95,
		PIIProtectionScore: 90,
		ActiveUsers:        1000,
		RevenueImpact:      "low",
		SLAUptime:          99.0,
	}
}
