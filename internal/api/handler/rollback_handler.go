package handler

import (
	"github.com/gin-gonic/gin"

	"release-orchestrator/internal/api/middleware"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/service"
	"release-orchestrator/pkg/responses"
	"release-orchestrator/pkg/utils"
)

// RollbackHandler 回滚处理器
type RollbackHandler struct {
	rollbackService service.RollbackService
}

// NewRollbackHandler 创建回滚处理器
func NewRollbackHandler(rollbackService service.RollbackService) *RollbackHandler {
	return &RollbackHandler{
		rollbackService: rollbackService,
	}
}

// CreatePlan 生成回滚计划
// @Summary 为发布单生成回滚计划
// @Description 按发布策略与原因选择回滚策略并展开步骤
// @Tags 回滚管理
// @Accept json
// @Produce json
// @Param request body dto.RollbackPlanCreateRequest true "计划请求"
// @Success 200 {object} model.RollbackPlan
// @Security BearerAuth
// @Router /api/v1/rollback/plan [post]
func (h *RollbackHandler) CreatePlan(c *gin.Context) {
	var req dto.RollbackPlanCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	plan, err := h.rollbackService.CreatePlan(&req)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, plan)
}

// GetPlan 获取回滚计划
// @Summary 获取回滚计划详情
// @Tags 回滚管理
// @Produce json
// @Param id path int true "计划ID"
// @Success 200 {object} model.RollbackPlan
// @Security BearerAuth
// @Router /api/v1/rollback/plan/{id} [get]
func (h *RollbackHandler) GetPlan(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	plan, err := h.rollbackService.GetPlan(param.ID)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, plan)
}

// ListPlansByRelease 发布单的回滚计划
// @Summary 查询发布单下的全部回滚计划
// @Tags 回滚管理
// @Produce json
// @Param id path int true "发布单ID"
// @Success 200 {array} model.RollbackPlan
// @Security BearerAuth
// @Router /api/v1/release/{id}/rollback-plans [get]
func (h *RollbackHandler) ListPlansByRelease(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	plans, err := h.rollbackService.GetPlansByRelease(param.ID)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, plans)
}

// Execute 触发回滚执行
// @Summary 触发回滚计划执行
// @Description 异步执行, 进度通过执行记录查询
// @Tags 回滚管理
// @Accept json
// @Produce json
// @Param request body dto.RollbackExecuteRequest true "执行请求"
// @Security BearerAuth
// @Router /api/v1/rollback/execute [post]
func (h *RollbackHandler) Execute(c *gin.Context) {
	var req dto.RollbackExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	if err := h.rollbackService.Execute(&req, middleware.Username(c)); err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, gin.H{"message": "回滚执行已触发"})
}

// GetExecution 获取执行记录
// @Summary 获取回滚执行记录
// @Tags 回滚管理
// @Produce json
// @Param id path int true "执行ID"
// @Success 200 {object} model.RollbackExecution
// @Security BearerAuth
// @Router /api/v1/rollback/execution/{id} [get]
func (h *RollbackHandler) GetExecution(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	execution, err := h.rollbackService.GetExecution(param.ID)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, execution)
}

// ListExecutions 执行记录列表
// @Summary 分页查询回滚执行记录
// @Tags 回滚管理
// @Produce json
// @Param service query string false "服务名"
// @Success 200 {object} dto.PageResponse
// @Security BearerAuth
// @Router /api/v1/rollback/executions [get]
func (h *RollbackHandler) ListExecutions(c *gin.Context) {
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	executions, total, err := h.rollbackService.ListExecutions(c.Query("service"), query.GetPage(), query.GetPageSize())
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, dto.NewPageResponse(executions, total, query.GetPage(), query.GetPageSize()))
}

// GetPostmortem 获取复盘
// @Summary 获取回滚执行对应的复盘
// @Tags 回滚管理
// @Produce json
// @Param id path int true "执行ID"
// @Success 200 {object} model.Postmortem
// @Security BearerAuth
// @Router /api/v1/rollback/execution/{id}/postmortem [get]
func (h *RollbackHandler) GetPostmortem(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	postmortem, err := h.rollbackService.GetPostmortem(param.ID)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, postmortem)
}

// ListPostmortems 复盘列表
// @Summary 分页查询复盘
// @Tags 回滚管理
// @Produce json
// @Param service query string false "服务名"
// @Success 200 {object} dto.PageResponse
// @Security BearerAuth
// @Router /api/v1/postmortems [get]
func (h *RollbackHandler) ListPostmortems(c *gin.Context) {
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	postmortems, total, err := h.rollbackService.ListPostmortems(c.Query("service"), query.GetPage(), query.GetPageSize())
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, dto.NewPageResponse(postmortems, total, query.GetPage(), query.GetPageSize()))
}
