package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"release-orchestrator/internal/api/middleware"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/service"
	"release-orchestrator/pkg/responses"
	"release-orchestrator/pkg/utils"
)

// ReleaseHandler 发布单处理器
type ReleaseHandler struct {
	releaseService service.ReleaseService
}

// NewReleaseHandler 创建发布单处理器
func NewReleaseHandler(releaseService service.ReleaseService) *ReleaseHandler {
	return &ReleaseHandler{
		releaseService: releaseService,
	}
}

// Create 创建发布单
// @Summary 创建发布单
// @Description 通过风险评估与就绪检查门禁后创建发布单, 阶段计划按策略模板生成
// @Tags 发布管理
// @Accept json
// @Produce json
// @Param request body dto.ReleaseCreateRequest true "创建请求"
// @Success 200 {object} model.Release
// @Security BearerAuth
// @Router /api/v1/release [post]
func (h *ReleaseHandler) Create(c *gin.Context) {
	var req dto.ReleaseCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	release, err := h.releaseService.Create(&req, middleware.Username(c))
	if err != nil {
		logger.Error("创建发布单失败",
			zap.String("service", req.Service),
			zap.String("target_version", req.TargetVersion),
			zap.Error(err))
		responses.Error(c, err)
		return
	}

	responses.Success(c, release)
}

// Get 获取发布单详情
// @Summary 获取发布单详情(含阶段)
// @Tags 发布管理
// @Produce json
// @Param id path int true "发布单ID"
// @Success 200 {object} model.Release
// @Security BearerAuth
// @Router /api/v1/release/{id} [get]
func (h *ReleaseHandler) Get(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	release, err := h.releaseService.GetByID(param.ID)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, release)
}

// List 发布单列表
// @Summary 分页查询发布单
// @Tags 发布管理
// @Produce json
// @Success 200 {object} dto.PageResponse
// @Security BearerAuth
// @Router /api/v1/releases [get]
func (h *ReleaseHandler) List(c *gin.Context) {
	var query dto.ReleaseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	param := query.ToParam()
	releases, total, err := h.releaseService.List(param)
	if err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, dto.NewPageResponse(releases, total, param.Page, param.PageSize))
}

// Pause 暂停发布
// @Summary 暂停发布
// @Description 暂停阶段推进, 监控轮询继续
// @Tags 发布管理
// @Accept json
// @Produce json
// @Param id path int true "发布单ID"
// @Security BearerAuth
// @Router /api/v1/release/{id}/pause [post]
func (h *ReleaseHandler) Pause(c *gin.Context) {
	h.command(c, func(id int64, operator string, req *dto.ReleaseCommandRequest) error {
		return h.releaseService.Pause(id, operator, req.Reason)
	})
}

// Resume 恢复发布
// @Summary 恢复被暂停的发布
// @Tags 发布管理
// @Accept json
// @Produce json
// @Param id path int true "发布单ID"
// @Security BearerAuth
// @Router /api/v1/release/{id}/resume [post]
func (h *ReleaseHandler) Resume(c *gin.Context) {
	h.command(c, func(id int64, operator string, _ *dto.ReleaseCommandRequest) error {
		return h.releaseService.Resume(id, operator)
	})
}

// Promote 提升发布
// @Summary 跳过剩余观察, 直接进入全量
// @Description 仅canary/blue_green策略支持
// @Tags 发布管理
// @Accept json
// @Produce json
// @Param id path int true "发布单ID"
// @Security BearerAuth
// @Router /api/v1/release/{id}/promote [post]
func (h *ReleaseHandler) Promote(c *gin.Context) {
	h.command(c, func(id int64, operator string, _ *dto.ReleaseCommandRequest) error {
		return h.releaseService.Promote(id, operator)
	})
}

// Rollback 手动回滚
// @Summary 手动触发回滚
// @Tags 发布管理
// @Accept json
// @Produce json
// @Param id path int true "发布单ID"
// @Param request body dto.ReleaseRollbackRequest true "回滚请求"
// @Security BearerAuth
// @Router /api/v1/release/{id}/rollback [post]
func (h *ReleaseHandler) Rollback(c *gin.Context) {
	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	var req dto.ReleaseRollbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	if err := h.releaseService.Rollback(param.ID, middleware.Username(c), req.Reason); err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, gin.H{"message": "回滚已触发"})
}

func (h *ReleaseHandler) command(c *gin.Context,
	run func(id int64, operator string, req *dto.ReleaseCommandRequest) error) {

	var param dto.IDParam
	if err := c.ShouldBindUri(&param); err != nil {
		responses.ErrorWithDetail(c, 400, "请求参数错误", utils.FormatValidationError(err))
		return
	}

	req := &dto.ReleaseCommandRequest{}
	// 命令请求体可为空
	_ = c.ShouldBindJSON(req)

	if err := run(param.ID, middleware.Username(c), req); err != nil {
		responses.Error(c, err)
		return
	}

	responses.Success(c, gin.H{"message": "操作成功"})
}
