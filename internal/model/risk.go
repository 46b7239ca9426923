package model

import (
	"time"

	"gorm.io/datatypes"
)

// RiskFactor 单条风险因子
type RiskFactor struct {
	Category    string  `json:"category"` // technical/operational/security/compliance/business
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`      // 0-10
	Weight      float64 `json:"weight"`     // 0-1, 加权平均使用
	Likelihood  string  `json:"likelihood"` // low/medium/high
	Impact      string  `json:"impact"`     // low/medium/high/critical
}

// RiskAssessment 风险评估结果
type RiskAssessment struct {
	BaseModel
	Service     string `gorm:"size:100;index;not null" json:"service"`
	Version     string `gorm:"size:100;not null" json:"version"`
	Environment string `gorm:"size:20;not null" json:"environment"`

	OverallScore      float64 `gorm:"not null" json:"overall_score"` // 1-10
	RiskLevel         string  `gorm:"size:20;index;not null" json:"risk_level"`
	Confidence        float64 `gorm:"not null" json:"confidence"` // 0-100
	SuggestedStrategy string  `gorm:"size:20;not null" json:"suggested_strategy"`

	Factors         datatypes.JSONSlice[RiskFactor] `gorm:"type:json" json:"factors"`
	CategoryScores  datatypes.JSONMap               `gorm:"type:json" json:"category_scores"` // 分类 -> 平均分
	Recommendations StringList                      `gorm:"type:json" json:"recommendations"`
	Mitigations     StringList                      `gorm:"type:json" json:"mitigations"`

	AssessedBy string    `gorm:"size:50" json:"assessed_by"`
	ExpiresAt  time.Time `gorm:"index;not null" json:"expires_at"` // 评估有效期
}

// TableName 指定表名
func (RiskAssessment) TableName() string {
	return "risk_assessments"
}

// Expired 评估是否已过期
func (a *RiskAssessment) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
