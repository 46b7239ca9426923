package service

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"release-orchestrator/internal/core/rollback"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/repository"
	"release-orchestrator/pkg/constants"
	pkgErrors "release-orchestrator/pkg/errors"
)

type RollbackService interface {
	CreatePlan(req *dto.RollbackPlanCreateRequest) (*model.RollbackPlan, error)
	GetPlan(id int64) (*model.RollbackPlan, error)
	GetPlansByRelease(releaseID int64) ([]*model.RollbackPlan, error)

	Execute(req *dto.RollbackExecuteRequest, triggeredBy string) error
	GetExecution(id int64) (*model.RollbackExecution, error)
	ListExecutions(service string, page, pageSize int) ([]*model.RollbackExecution, int64, error)

	GetPostmortem(executionID int64) (*model.Postmortem, error)
	ListPostmortems(service string, page, pageSize int) ([]*model.Postmortem, int64, error)
}

type rollbackService struct {
	db           *gorm.DB
	releaseRepo  *repository.ReleaseRepository
	rollbackRepo *repository.RollbackRepository
	bus          *eventbus.Bus
}

func NewRollbackService(
	db *gorm.DB,
	releaseRepo *repository.ReleaseRepository,
	rollbackRepo *repository.RollbackRepository,
	bus *eventbus.Bus,
) RollbackService {
	return &rollbackService{
		db:           db,
		releaseRepo:  releaseRepo,
		rollbackRepo: rollbackRepo,
		bus:          bus,
	}
}

// CreatePlan 为发布单生成回滚计划
func (s *rollbackService) CreatePlan(req *dto.RollbackPlanCreateRequest) (*model.RollbackPlan, error) {
	if !constants.ValidRollbackReason(req.Reason) {
		return nil, pkgErrors.New(pkgErrors.CodeBadRequest, "无效的回滚原因")
	}

	release, err := s.releaseRepo.GetByID(req.ReleaseID)
	if err != nil {
		return nil, pkgErrors.ErrRecordNotFound
	}

	plan, err := rollback.CreatePlan(s.db, release, req.Reason)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeInternalError, "生成回滚计划失败", err)
	}

	logger.Info("回滚计划已生成",
		zap.Int64("plan_id", plan.ID),
		zap.Int64("release_id", release.ID),
		zap.String("strategy", plan.Strategy),
		zap.Bool("auto_execute", plan.AutoExecute))

	return plan, nil
}

func (s *rollbackService) GetPlan(id int64) (*model.RollbackPlan, error) {
	plan, err := s.rollbackRepo.GetPlanByID(id)
	if err != nil {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return plan, nil
}

func (s *rollbackService) GetPlansByRelease(releaseID int64) ([]*model.RollbackPlan, error) {
	return s.rollbackRepo.GetPlansByReleaseID(releaseID)
}

// Execute 触发回滚执行, 实际执行由回滚agent异步处理
func (s *rollbackService) Execute(req *dto.RollbackExecuteRequest, triggeredBy string) error {
	if _, err := s.rollbackRepo.GetPlanByID(req.PlanID); err != nil {
		return pkgErrors.ErrRecordNotFound
	}

	return s.bus.Publish(constants.SubjectRollbackExecute, eventbus.RollbackExecutePayload{
		PlanID:      req.PlanID,
		TriggeredBy: triggeredBy,
	})
}

func (s *rollbackService) GetExecution(id int64) (*model.RollbackExecution, error) {
	execution, err := s.rollbackRepo.GetExecutionByID(id)
	if err != nil {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return execution, nil
}

func (s *rollbackService) ListExecutions(service string, page, pageSize int) ([]*model.RollbackExecution, int64, error) {
	return s.rollbackRepo.ListExecutions(service, page, pageSize)
}

func (s *rollbackService) GetPostmortem(executionID int64) (*model.Postmortem, error) {
	postmortem, err := s.rollbackRepo.GetPostmortemByExecutionID(executionID)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询复盘失败", err)
	}
	if postmortem == nil {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return postmortem, nil
}

func (s *rollbackService) ListPostmortems(service string, page, pageSize int) ([]*model.Postmortem, int64, error) {
	return s.rollbackRepo.ListPostmortems(service, page, pageSize)
}
