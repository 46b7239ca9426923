package constants

// ReleaseStatus 发布单状态
const (
	ReleaseStatusPending    = "pending"     // 初始化, 等待调度
	ReleaseStatusRunning    = "running"     // 阶段执行中
	ReleaseStatusPaused     = "paused"      // 已暂停(监控继续, 不推进)
	ReleaseStatusCompleted  = "completed"   // 全部阶段完成
	ReleaseStatusFailed     = "failed"      // 健康检查失败或阶段失败
	ReleaseStatusRolledBack = "rolled_back" // 回滚成功后的终态
)

// IsTerminalReleaseStatus 是否终态
func IsTerminalReleaseStatus(status string) bool {
	switch status {
	case ReleaseStatusCompleted, ReleaseStatusFailed, ReleaseStatusRolledBack:
		return true
	}
	return false
}

// ReleaseStrategy 发布策略
const (
	StrategyCanary    = "canary"
	StrategyBlueGreen = "blue_green"
	StrategyRolling   = "rolling"
	StrategyDirect    = "direct"
)

// ValidStrategy 校验策略取值
func ValidStrategy(strategy string) bool {
	switch strategy {
	case StrategyCanary, StrategyBlueGreen, StrategyRolling, StrategyDirect:
		return true
	}
	return false
}

// StrategyConservatism 策略保守程度, 数值越大越保守
// canary > blue_green > rolling > direct
var StrategyConservatism = map[string]int{
	StrategyDirect:    0,
	StrategyRolling:   1,
	StrategyBlueGreen: 2,
	StrategyCanary:    3,
}

// PhaseStatus 发布阶段状态
const (
	PhaseStatusPending   = "pending"
	PhaseStatusRunning   = "running"
	PhaseStatusCompleted = "completed"
	PhaseStatusFailed    = "failed"
	PhaseStatusSkipped   = "skipped" // promote跳过的监控阶段
)

// PhaseKind 阶段类型
const (
	PhaseKindDeploy  = "deploy"  // 部署/切换/扩量类, 执行后做一次健康检查
	PhaseKindMonitor = "monitor" // 监控类, 按间隔轮询健康直到时长结束
)

// 环境类型
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// ValidEnvironment 校验环境取值
func ValidEnvironment(env string) bool {
	switch env {
	case EnvDevelopment, EnvStaging, EnvProduction:
		return true
	}
	return false
}
