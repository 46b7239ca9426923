package handler

import (
	"github.com/gin-gonic/gin"

	"release-orchestrator/internal/api/middleware"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/service"
	"release-orchestrator/pkg/responses"
	"release-orchestrator/pkg/utils"
)

// ReadinessHandler 就绪检查处理器
type ReadinessHandler struct {
	readinessService service.ReadinessService
}

// NewReadinessHandler 创建就绪检查处理器
func NewReadinessHandler(readinessService service.ReadinessService) *ReadinessHandler {
	return &ReadinessHandler{
		readinessService: readinessService,
	}
}

// Run 执行就绪检查
// @Summary 执行就绪检查
// @Description 并发执行固定检查面板, 生效豁免的失败项不计入阻断
// @Tags 就绪检查
// @Accept json
// @Produce json
// @Param request body dto.ReadinessRunRequest true "检查请求"
// @Success 200 {object} model.ReadinessRun
// @Security BearerAuth
// @Router /api/v1/readiness/run [post]
func (h *ReadinessHandler) Run(c *gin.Context) {
	var req dto.ReadinessRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	run, err := h.readinessService.Run(c.Request.Context(), &req)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, run)
}

// Get 获取检查详情
// @Summary 获取就绪检查详情(含检查项)
// @Tags 就绪检查
// @Produce json
// @Param id path int true "检查ID"
// @Success 200 {object} model.ReadinessRun
// @Security BearerAuth
// @Router /api/v1/readiness/{id} [get]
func (h *ReadinessHandler) Get(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	run, err := h.readinessService.GetRun(param.ID)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, run)
}

// GetReport 获取检查报告
// @Summary 生成就绪检查报告
// @Description 分类汇总、按优先级排序的整改建议与后续动作
// @Tags 就绪检查
// @Produce json
// @Param id path int true "检查ID"
// @Success 200 {object} readiness.Report
// @Security BearerAuth
// @Router /api/v1/readiness/runs/{id}/report [get]
func (h *ReadinessHandler) GetReport(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	report, err := h.readinessService.GetReport(param.ID)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, report)
}

// List 检查历史
// @Summary 分页查询检查历史
// @Tags 就绪检查
// @Produce json
// @Param service query string false "服务名"
// @Success 200 {object} dto.PageResponse
// @Security BearerAuth
// @Router /api/v1/readiness [get]
func (h *ReadinessHandler) List(c *gin.Context) {
	var query dto.PageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	runs, total, err := h.readinessService.ListRuns(c.Query("service"), query.GetPage(), query.GetPageSize())
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, dto.NewPageResponse(runs, total, query.GetPage(), query.GetPageSize()))
}

// CreateWaiver 创建豁免
// @Summary 创建检查项豁免
// @Description 豁免固定30天有效, 不可豁免的检查项不受影响
// @Tags 就绪检查
// @Accept json
// @Produce json
// @Param request body dto.WaiverCreateRequest true "豁免请求"
// @Success 200 {object} model.ReadinessWaiver
// @Security BearerAuth
// @Router /api/v1/readiness/waiver [post]
func (h *ReadinessHandler) CreateWaiver(c *gin.Context) {
	var req dto.WaiverCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	waiver, err := h.readinessService.CreateWaiver(&req, middleware.Username(c))
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, waiver)
}

// ListWaivers 豁免列表
// @Summary 查询豁免列表
// @Tags 就绪检查
// @Produce json
// @Param service query string false "服务名"
// @Security BearerAuth
// @Router /api/v1/readiness/waivers [get]
func (h *ReadinessHandler) ListWaivers(c *gin.Context) {
	waivers, err := h.readinessService.ListWaivers(c.Query("service"))
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, waivers)
}

// RevokeWaiver 撤销豁免
// @Summary 撤销豁免
// @Tags 就绪检查
// @Produce json
// @Param id path int true "豁免ID"
// @Security BearerAuth
// @Router /api/v1/readiness/waiver/{id} [delete]
func (h *ReadinessHandler) RevokeWaiver(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	if err := h.readinessService.RevokeWaiver(param.ID); err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, gin.H{"message": "豁免已撤销"})
}
