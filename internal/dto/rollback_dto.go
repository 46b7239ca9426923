package dto

// RollbackPlanCreateRequest 创建回滚计划请求
type RollbackPlanCreateRequest struct {
	ReleaseID int64  `json:"release_id" binding:"required,min=1"`
	Reason    string `json:"reason" binding:"required"`
}

// RollbackExecuteRequest 执行回滚计划请求
type RollbackExecuteRequest struct {
	PlanID int64 `json:"plan_id" binding:"required,min=1"`
}
