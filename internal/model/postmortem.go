package model

import (
	"time"

	"gorm.io/datatypes"
)

// TimelineEvent 事后复盘时间线
type TimelineEvent struct {
	At    time.Time `json:"at"`
	Event string    `json:"event"`
}

// ActionItem 复盘行动项
type ActionItem struct {
	Description string    `json:"description"`
	Priority    string    `json:"priority"` // high/medium/low
	Owner       string    `json:"owner,omitempty"`
	DueDate     time.Time `json:"due_date"`
}

// Postmortem 回滚事后复盘, 仅故障类回滚自动生成
type Postmortem struct {
	BaseModel
	RollbackID int64  `gorm:"index;not null" json:"rollback_id"`
	ReleaseID  int64  `gorm:"index;not null" json:"release_id"`
	Service    string `gorm:"size:100;index;not null" json:"service"`

	Title         string `gorm:"size:200;not null" json:"title"`
	RootCause     string `gorm:"type:text" json:"root_cause"`
	ImpactSummary string `gorm:"type:text" json:"impact_summary"`

	Timeline       datatypes.JSONSlice[TimelineEvent] `gorm:"type:json" json:"timeline"`
	LessonsLearned StringList                         `gorm:"type:json" json:"lessons_learned"`
	ActionItems    datatypes.JSONSlice[ActionItem]    `gorm:"type:json" json:"action_items"`

	// 故障度量, 由记录的时间戳推算
	MTTDSeconds int64 `gorm:"not null;default:0" json:"mttd_seconds"` // 发布开始到故障检出
	MTTRSeconds int64 `gorm:"not null;default:0" json:"mttr_seconds"` // 故障检出到回滚结束

	Status string `gorm:"size:20;not null;default:draft" json:"status"` // draft/reviewed
}

// TableName 指定表名
func (Postmortem) TableName() string {
	return "postmortems"
}
