package constants

// RollbackReason 回滚原因
const (
	RollbackReasonManual           = "manual"
	RollbackReasonHealthCheck      = "health_check_failed"
	RollbackReasonCriticalError    = "critical_error"
	RollbackReasonSecurityIncident = "security_incident"
)

// ValidRollbackReason 校验回滚原因取值
func ValidRollbackReason(reason string) bool {
	switch reason {
	case RollbackReasonManual, RollbackReasonHealthCheck,
		RollbackReasonCriticalError, RollbackReasonSecurityIncident:
		return true
	}
	return false
}

// AutoExecuteReason 故障触发的回滚自动执行, 手动回滚需要显式触发
func AutoExecuteReason(reason string) bool {
	switch reason {
	case RollbackReasonHealthCheck, RollbackReasonCriticalError, RollbackReasonSecurityIncident:
		return true
	}
	return false
}

// RollbackStrategy 回滚策略
const (
	RollbackStrategyInstantSwitch = "instant_switch"   // 蓝绿式瞬时切回
	RollbackStrategyGradual       = "gradual_rollback" // 逐步缩量切回
	RollbackStrategyEmergency     = "emergency_rollback"
)

// RollbackExecutionStatus 回滚执行状态
const (
	RollbackExecutionRunning   = "running"
	RollbackExecutionCompleted = "completed"
	RollbackExecutionFailed    = "failed"
)

// RollbackStepStatus 回滚步骤状态
const (
	RollbackStepPending   = "pending"
	RollbackStepRunning   = "running"
	RollbackStepCompleted = "completed"
	RollbackStepFailed    = "failed"
)

// 回滚步骤动作
const (
	RollbackActionStopTraffic   = "stop_traffic_to_new_version"
	RollbackActionReduceTraffic = "reduce_traffic_to_new_version"
	RollbackActionRestore       = "restore_previous_version"
	RollbackActionEmergency     = "emergency_rollback"
	RollbackActionVerify        = "verify_rollback"
	RollbackActionCleanup       = "cleanup_failed_version"
)
