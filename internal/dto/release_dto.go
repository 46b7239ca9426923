package dto

import "time"

// ReleaseCreateRequest 创建发布单请求
type ReleaseCreateRequest struct {
	Service          string  `json:"service" binding:"required,max=64"`
	Environment      string  `json:"environment" binding:"required"`
	TargetVersion    string  `json:"target_version" binding:"required,max=64"`
	PreviousVersion  *string `json:"previous_version"`
	Strategy         string  `json:"strategy"`           // 不传则按风险评估建议选择
	RiskAssessmentID *int64  `json:"risk_assessment_id"` // 发布前的风险评估
	ReadinessRunID   *int64  `json:"readiness_run_id"`   // 发布前的就绪检查
}

// ReleaseCommandRequest 发布单控制命令(暂停/恢复/提升)
type ReleaseCommandRequest struct {
	Reason string `json:"reason" binding:"max=256"`
}

// ReleaseRollbackRequest 手动触发回滚请求
type ReleaseRollbackRequest struct {
	Reason string `json:"reason" binding:"required"` // 回滚原因
}

// ReleaseListQuery 发布单列表查询参数
type ReleaseListQuery struct {
	Page           int      `json:"page" form:"page"`
	PageSize       int      `json:"page_size" form:"page_size"`
	Statuses       []string `json:"status" form:"status"` // 支持多状态查询
	Service        *string  `json:"service" form:"service"`
	Environment    *string  `json:"environment" form:"environment"`
	Initiator      *string  `json:"initiator" form:"initiator"`
	CreatedAtStart *string  `json:"created_at_start" form:"created_at_start"` // RFC3339格式
	CreatedAtEnd   *string  `json:"created_at_end" form:"created_at_end"`     // RFC3339格式
	Keyword        *string  `json:"keyword" form:"keyword"`                   // 模糊搜索发布单号、服务名
}

// ReleaseListParam 发布单列表查询条件
type ReleaseListParam struct {
	Page           int
	PageSize       int
	Statuses       []string
	Service        *string
	Environment    *string
	Initiator      *string
	CreatedAtStart *time.Time
	CreatedAtEnd   *time.Time
	Keyword        *string
}

// ToParam 查询参数转查询条件
func (q *ReleaseListQuery) ToParam() ReleaseListParam {
	param := ReleaseListParam{
		Page:        PageLimit(q.Page),
		PageSize:    PageSizeLimit(q.PageSize),
		Statuses:    q.Statuses,
		Service:     q.Service,
		Environment: q.Environment,
		Initiator:   q.Initiator,
		Keyword:     q.Keyword,
	}

	if q.CreatedAtStart != nil && *q.CreatedAtStart != "" {
		if createTime, err := time.Parse(time.RFC3339, *q.CreatedAtStart); err == nil {
			param.CreatedAtStart = &createTime
		}
	}
	if q.CreatedAtEnd != nil && *q.CreatedAtEnd != "" {
		if createTime, err := time.Parse(time.RFC3339, *q.CreatedAtEnd); err == nil {
			param.CreatedAtEnd = &createTime
		}
	}

	return param
}

// PageLimit 页码下限
func PageLimit(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// PageSizeLimit 每页数量上下限
func PageSizeLimit(pageSize int) int {
	if pageSize < 1 {
		return 20
	}
	if pageSize > 100 {
		return 100
	}
	return pageSize
}
