package model

import (
	"time"

	"gorm.io/datatypes"
)

// RollbackStep 回滚步骤
type RollbackStep struct {
	Seq              int        `json:"seq"`
	Action           string     `json:"action"` // pkg/constants:StepAction
	Description      string     `json:"description"`
	EstimatedSeconds int        `json:"estimated_seconds"`
	Status           string     `json:"status"` // pending/running/completed/failed
	StartedAt        *time.Time `json:"started_at,omitempty"`
	FinishedAt       *time.Time `json:"finished_at,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// VerificationCheck 回滚后验证项
type VerificationCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// RollbackPlan 回滚计划, 执行前生成
type RollbackPlan struct {
	BaseModel
	ReleaseID   int64  `gorm:"index;not null" json:"release_id"`
	Service     string `gorm:"size:100;index;not null" json:"service"`
	Environment string `gorm:"size:20;not null" json:"environment"`

	Reason      string `gorm:"size:50;not null" json:"reason"`
	Strategy    string `gorm:"size:30;not null" json:"strategy"`
	FromVersion string `gorm:"size:100;not null" json:"from_version"`
	ToVersion   string `gorm:"size:100;not null" json:"to_version"` // 上一个completed发布的版本
	AutoExecute bool   `gorm:"not null;default:false" json:"auto_execute"`

	Steps datatypes.JSONSlice[RollbackStep] `gorm:"type:json" json:"steps"`

	// 回滚自身的风险评估
	RiskScore float64 `gorm:"not null;default:0" json:"risk_score"`
	RiskLevel string  `gorm:"size:20" json:"risk_level"`

	EstimatedSeconds int `gorm:"not null;default:0" json:"estimated_seconds"`
}

// TableName 指定表名
func (RollbackPlan) TableName() string {
	return "rollback_plans"
}

// RollbackExecution 回滚执行记录
type RollbackExecution struct {
	BaseModel
	PlanID      int64  `gorm:"index;not null" json:"plan_id"`
	ReleaseID   int64  `gorm:"index;not null" json:"release_id"`
	Service     string `gorm:"size:100;index;not null" json:"service"`
	Environment string `gorm:"size:20;not null" json:"environment"`

	FromVersion string `gorm:"size:100;not null" json:"from_version"` // 出问题的版本
	ToVersion   string `gorm:"size:100;not null" json:"to_version"`   // 回滚到的版本

	Reason   string `gorm:"size:50;index;not null" json:"reason"` // pkg/constants:RollbackReason
	Strategy string `gorm:"size:30;not null" json:"strategy"`     // instant_switch/gradual_rollback/emergency_rollback
	Status   string `gorm:"size:20;index;not null;default:running" json:"status"`

	Steps        datatypes.JSONSlice[RollbackStep]      `gorm:"type:json" json:"steps"`
	Verification datatypes.JSONSlice[VerificationCheck] `gorm:"type:json" json:"verification"`
	Verified     *bool                                  `json:"verified"` // 验证是否通过, 未验证为null

	TriggeredBy   string     `gorm:"size:50" json:"triggered_by"` // 人工为用户名, 自动为system
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	FailureReason *string    `gorm:"type:text" json:"failure_reason"`
}

// TableName 指定表名
func (RollbackExecution) TableName() string {
	return "rollback_executions"
}
