package model

import (
	"time"
)

// Release 发布单
type Release struct {
	BaseModel
	ReleaseNumber string `gorm:"size:64;uniqueIndex;not null" json:"release_number"` // 发布单编号
	Service       string `gorm:"size:100;index;not null" json:"service"`             // 服务名
	Environment   string `gorm:"size:20;index;not null" json:"environment"`          // development/staging/production
	Strategy      string `gorm:"size:20;not null" json:"strategy"`                   // canary/blue_green/rolling/direct

	// 版本信息
	PreviousVersion *string `gorm:"size:100" json:"previous_version"` // 回滚目标版本
	TargetVersion   string  `gorm:"size:100;not null" json:"target_version"`

	// 执行状态
	Status            string `gorm:"size:20;index;not null;default:pending" json:"status"` // pkg/constants:ReleaseStatus
	CurrentPhaseIndex int    `gorm:"not null;default:0" json:"current_phase_index"`        // 当前阶段下标(Seq)
	CandidateTraffic  int    `gorm:"not null;default:0" json:"candidate_traffic"`          // 新版本流量比例, 稳定版为100-此值
	RollbackAvailable bool   `gorm:"not null;default:false" json:"rollback_available"`     // 是否存在可回滚的历史版本

	// 前置门禁
	RiskAssessmentID *int64 `gorm:"index" json:"risk_assessment_id"` // 关联的风险评估
	ReadinessRunID   *int64 `gorm:"index" json:"readiness_run_id"`   // 关联的就绪检查

	Initiator    string  `gorm:"size:50" json:"initiator"`
	ReleaseNotes *string `gorm:"type:text" json:"release_notes"`

	// 暂停/完成信息
	PausedBy      *string    `gorm:"size:50" json:"paused_by"`
	PausedAt      *time.Time `json:"paused_at"`
	StartedAt     *time.Time `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at"`
	FailureReason *string    `gorm:"type:text" json:"failure_reason"`

	// 关联关系
	Phases []ReleasePhase `gorm:"foreignKey:ReleaseID" json:"phases,omitempty"`
}

// TableName 指定表名
func (Release) TableName() string {
	return "releases"
}

// ReleasePhase 发布阶段, 发布单创建时按策略模板生成
type ReleasePhase struct {
	BaseModel
	ReleaseID int64  `gorm:"index;not null" json:"release_id"`
	Seq       int    `gorm:"not null" json:"seq"`           // 阶段序号, 从0开始
	Name      string `gorm:"size:100;not null" json:"name"` // 如 canary_5
	Kind      string `gorm:"size:20;not null" json:"kind"`  // deploy/monitor

	TrafficPercent  int `gorm:"not null;default:0" json:"traffic_percent"`  // 该阶段的目标流量比例
	DurationMinutes int `gorm:"not null;default:0" json:"duration_minutes"` // monitor阶段观察时长

	Status     string     `gorm:"size:20;index;not null;default:pending" json:"status"` // pkg/constants:PhaseStatus
	StartedAt  *time.Time `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at"`
	Detail     *string    `gorm:"type:text" json:"detail"` // 失败原因或健康摘要
}

// TableName 指定表名
func (ReleasePhase) TableName() string {
	return "release_phases"
}
