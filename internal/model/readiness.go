package model

import (
	"time"

	"gorm.io/datatypes"
)

// ReadinessRun 一次就绪检查
type ReadinessRun struct {
	BaseModel
	Service     string `gorm:"size:100;index;not null" json:"service"`
	Version     string `gorm:"size:100;not null" json:"version"`
	Environment string `gorm:"size:20;not null" json:"environment"`

	Score        float64 `gorm:"not null" json:"score"`                   // 0-100, 通过项占比
	Overall      string  `gorm:"size:20;index;not null" json:"overall"`   // ready/pending/blocked
	BlockerCount int     `gorm:"not null;default:0" json:"blocker_count"` // 不可豁免的失败项数量

	Checks []ReadinessCheckRecord `gorm:"foreignKey:RunID" json:"checks,omitempty"`
}

// TableName 指定表名
func (ReadinessRun) TableName() string {
	return "readiness_runs"
}

// ReadinessCheckRecord 单项检查结果
type ReadinessCheckRecord struct {
	BaseModel
	RunID    int64  `gorm:"index;not null" json:"run_id"`
	Name     string `gorm:"size:50;not null" json:"name"`     // pkg/constants:CheckName
	Category string `gorm:"size:20;not null" json:"category"` // quality/security/performance/system/compliance
	Severity string `gorm:"size:20;not null" json:"severity"` // blocker/warning

	Status         string         `gorm:"size:20;not null" json:"status"` // passed/failed/waived/skipped
	Waivable       bool           `gorm:"not null;default:true" json:"waivable"`
	Message        string         `gorm:"type:text" json:"message"`
	RemediationURL string         `gorm:"size:255" json:"remediation_url,omitempty"`
	FixMinutes     int            `gorm:"not null;default:0" json:"estimated_fix_time_minutes"`
	WaiverID       *int64         `gorm:"index" json:"waiver_id"` // 被豁免时关联的豁免记录
	Detail         datatypes.JSON `gorm:"type:json" json:"detail,omitempty"`
}

// TableName 指定表名
func (ReadinessCheckRecord) TableName() string {
	return "readiness_check_records"
}

// ReadinessWaiver 检查项豁免
type ReadinessWaiver struct {
	BaseModel
	Service   string    `gorm:"size:100;index;not null" json:"service"`
	CheckName string    `gorm:"size:50;index;not null" json:"check_name"`
	Reason    string    `gorm:"type:text;not null" json:"reason"`
	GrantedBy string    `gorm:"size:50;not null" json:"granted_by"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	Revoked   bool      `gorm:"not null;default:false" json:"revoked"`
}

// TableName 指定表名
func (ReadinessWaiver) TableName() string {
	return "readiness_waivers"
}

// Active 豁免是否生效
func (w *ReadinessWaiver) Active(now time.Time) bool {
	return !w.Revoked && now.Before(w.ExpiresAt)
}
