package eventbus

// 各主题的事件载荷, 主题常量见 pkg/constants/events.go

// ReleaseCreatePayload release.create 载荷, 请求创建发布单
type ReleaseCreatePayload struct {
	Service     string `json:"service"`
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Strategy    string `json:"strategy"`
	Initiator   string `json:"initiator"`
}

// ReleaseCreatedPayload release.created 载荷
type ReleaseCreatedPayload struct {
	ReleaseID     int64  `json:"release_id"`
	ReleaseNumber string `json:"release_number"`
	Service       string `json:"service"`
	Version       string `json:"version"`
	Environment   string `json:"environment"`
	Strategy      string `json:"strategy"`
}

// ReleaseCommandPayload release.promote / release.pause / release.resume 载荷
type ReleaseCommandPayload struct {
	ReleaseID int64  `json:"release_id"`
	Operator  string `json:"operator"`
	Reason    string `json:"reason,omitempty"`
}

// HealthCheckPayload release.health_check 载荷, 监控阶段每次轮询发布一次
type HealthCheckPayload struct {
	ReleaseID int64    `json:"release_id"`
	Phase     string   `json:"phase"`
	Healthy   bool     `json:"healthy"`
	ErrorRate float64  `json:"error_rate"`
	LatencyMs float64  `json:"latency_ms"`
	Reasons   []string `json:"reasons,omitempty"`
}

// ReleaseRollbackPayload release.rollback 载荷, 发布失败时触发
type ReleaseRollbackPayload struct {
	ReleaseID   int64  `json:"release_id"`
	Service     string `json:"service"`
	Environment string `json:"environment"`
	FromVersion string `json:"from_version"`
	ToVersion   string `json:"to_version"`
	Reason      string `json:"reason"`
	TriggeredBy string `json:"triggered_by"`
}

// RollbackExecutePayload rollback.execute 载荷
type RollbackExecutePayload struct {
	PlanID      int64  `json:"plan_id"`
	TriggeredBy string `json:"triggered_by"`
}

// RollbackCompletedPayload rollback.completed 载荷
type RollbackCompletedPayload struct {
	ExecutionID int64  `json:"execution_id"`
	ReleaseID   int64  `json:"release_id"`
	Status      string `json:"status"`
	Verified    bool   `json:"verified"`
}

// PostmortemCreatePayload postmortem.create 载荷
type PostmortemCreatePayload struct {
	ExecutionID int64 `json:"execution_id"`
	ReleaseID   int64 `json:"release_id"`
}

// AgentErrorPayload error.agent 载荷, agent处理事件失败时上报
type AgentErrorPayload struct {
	Agent   string `json:"agent"`
	Subject string `json:"subject"`
	Error   string `json:"error"`
}
