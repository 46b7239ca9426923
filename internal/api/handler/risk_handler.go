package handler

import (
	"github.com/gin-gonic/gin"

	"release-orchestrator/internal/api/middleware"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/service"
	"release-orchestrator/pkg/responses"
	"release-orchestrator/pkg/utils"
)

// RiskHandler 风险评估处理器
type RiskHandler struct {
	riskService service.RiskService
}

// NewRiskHandler 创建风险评估处理器
func NewRiskHandler(riskService service.RiskService) *RiskHandler {
	return &RiskHandler{
		riskService: riskService,
	}
}

// Assess 执行风险评估
// @Summary 执行风险评估
// @Description 根据部署上下文打分并给出策略建议, 结果24小时内有效
// @Tags 风险评估
// @Accept json
// @Produce json
// @Param request body dto.RiskAssessRequest true "评估请求"
// @Success 200 {object} model.RiskAssessment
// @Security BearerAuth
// @Router /api/v1/risk/assess [post]
func (h *RiskHandler) Assess(c *gin.Context) {
	var req dto.RiskAssessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	assessment, err := h.riskService.Assess(&req, middleware.Username(c))
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, assessment)
}

// Get 获取评估详情
// @Summary 获取风险评估详情
// @Tags 风险评估
// @Produce json
// @Param id path int true "评估ID"
// @Success 200 {object} model.RiskAssessment
// @Security BearerAuth
// @Router /api/v1/risk/{id} [get]
func (h *RiskHandler) Get(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	assessment, err := h.riskService.GetByID(param.ID)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, assessment)
}

// GetLatest 获取最近一次评估
// @Summary 获取服务在指定环境的最近一次评估
// @Tags 风险评估
// @Produce json
// @Param service query string true "服务名"
// @Param environment query string true "环境"
// @Success 200 {object} model.RiskAssessment
// @Security BearerAuth
// @Router /api/v1/risk/latest [get]
func (h *RiskHandler) GetLatest(c *gin.Context) {
	service := c.Query("service")
	environment := c.Query("environment")
	if service == "" || environment == "" {
		responses.ErrorWithCode(c, 400, "service与environment参数必填")
		return
	}

	assessment, err := h.riskService.GetLatest(service, environment)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, assessment)
}

// List 评估历史
// @Summary 分页查询评估历史
// @Tags 风险评估
// @Produce json
// @Param service query string false "服务名"
// @Success 200 {object} dto.PageResponse
// @Security BearerAuth
// @Router /api/v1/risks [get]
func (h *RiskHandler) List(c *gin.Context) {
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	assessments, total, err := h.riskService.List(c.Query("service"), query.GetPage(), query.GetPageSize())
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, dto.NewPageResponse(assessments, total, query.GetPage(), query.GetPageSize()))
}
