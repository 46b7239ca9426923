package service

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/repository"
	"release-orchestrator/pkg/constants"
	pkgErrors "release-orchestrator/pkg/errors"
)

// PhasePlanner 按策略生成阶段计划
type PhasePlanner interface {
	Phases(strategy string, releaseID int64) ([]model.ReleasePhase, error)
}

type ReleaseService interface {
	Create(req *dto.ReleaseCreateRequest, initiator string) (*model.Release, error)
	GetByID(id int64) (*model.Release, error)
	List(req dto.ReleaseListParam) ([]*model.Release, int64, error)

	Pause(id int64, operator, reason string) error
	Resume(id int64, operator string) error
	Promote(id int64, operator string) error
	Rollback(id int64, operator, reason string) error
}

type releaseService struct {
	releaseRepo   *repository.ReleaseRepository
	riskRepo      *repository.RiskRepository
	readinessRepo *repository.ReadinessRepository
	planner       PhasePlanner
	bus           *eventbus.Bus
}

func NewReleaseService(
	releaseRepo *repository.ReleaseRepository,
	riskRepo *repository.RiskRepository,
	readinessRepo *repository.ReadinessRepository,
	planner PhasePlanner,
	bus *eventbus.Bus,
) ReleaseService {
	return &releaseService{
		releaseRepo:   releaseRepo,
		riskRepo:      riskRepo,
		readinessRepo: readinessRepo,
		planner:       planner,
		bus:           bus,
	}
}

// Create 创建发布单
// 准入门禁: 风险评估未过期, 就绪检查无阻断; 策略不指定时采用评估建议
func (s *releaseService) Create(req *dto.ReleaseCreateRequest, initiator string) (*model.Release, error) {
	if !constants.ValidEnvironment(req.Environment) {
		return nil, pkgErrors.ErrInvalidEnvironment
	}
	if req.TargetVersion == "" {
		return nil, pkgErrors.ErrMissingVersion
	}

	// 同一服务同一环境不允许并行发布
	active, err := s.releaseRepo.CountActiveByService(req.Service, req.Environment)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询进行中发布失败", err)
	}
	if active > 0 {
		return nil, pkgErrors.New(pkgErrors.CodeConflict, "该服务在此环境已有进行中的发布")
	}

	strategy := req.Strategy

	// 风险评估门禁
	if req.RiskAssessmentID != nil {
		assessment, err := s.riskRepo.GetByID(*req.RiskAssessmentID)
		if err != nil {
			return nil, pkgErrors.ErrRecordNotFound
		}
		if assessment.Expired(time.Now()) {
			return nil, pkgErrors.ErrStaleRiskAssessment
		}
		// 未指定策略时采用评估建议
		if strategy == "" {
			strategy = assessment.SuggestedStrategy
		}
	}

	if !constants.ValidStrategy(strategy) {
		return nil, pkgErrors.ErrInvalidStrategy
	}

	// 就绪检查门禁: 未指定run时以该服务+环境最近一次检查为准
	if req.ReadinessRunID != nil {
		run, err := s.readinessRepo.GetRunByID(*req.ReadinessRunID)
		if err != nil {
			return nil, pkgErrors.ErrRecordNotFound
		}
		if run.Service != req.Service || run.Environment != req.Environment {
			return nil, pkgErrors.New(pkgErrors.CodeBadRequest, "就绪检查与发布的服务或环境不一致")
		}
		if run.Overall == constants.ReadinessStatusBlocked {
			return nil, pkgErrors.ErrReadinessBlocked
		}
	} else {
		run, err := s.readinessRepo.GetLatestRun(req.Service, req.Environment)
		if err != nil {
			return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询就绪检查失败", err)
		}
		if run != nil && run.Overall == constants.ReadinessStatusBlocked {
			return nil, pkgErrors.ErrReadinessBlocked
		}
	}

	// 回滚目标: 请求指定的上一版本, 否则取最近一次完成的发布
	previousVersion := req.PreviousVersion
	if previousVersion == nil {
		last, err := s.releaseRepo.GetLastCompleted(req.Service, req.Environment)
		if err != nil {
			return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询历史发布失败", err)
		}
		if last != nil {
			previousVersion = &last.TargetVersion
		}
	}

	releaseNumber, err := s.nextReleaseNumber()
	if err != nil {
		return nil, err
	}

	release := &model.Release{
		ReleaseNumber:     releaseNumber,
		Service:           req.Service,
		Environment:       req.Environment,
		Strategy:          strategy,
		PreviousVersion:   previousVersion,
		TargetVersion:     req.TargetVersion,
		Status:            constants.ReleaseStatusPending,
		RollbackAvailable: previousVersion != nil,
		RiskAssessmentID:  req.RiskAssessmentID,
		ReadinessRunID:    req.ReadinessRunID,
		Initiator:         initiator,
	}

	phases, err := s.planner.Phases(strategy, 0)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeInternalError, "生成阶段计划失败", err)
	}
	release.Phases = phases

	if err := s.releaseRepo.Create(release); err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "创建发布单失败", err)
	}

	logger.Info("发布单已创建",
		zap.Int64("release_id", release.ID),
		zap.String("release_number", release.ReleaseNumber),
		zap.String("service", release.Service),
		zap.String("strategy", release.Strategy),
		zap.String("initiator", initiator))

	_ = s.bus.Publish(constants.SubjectReleaseCreated, eventbus.ReleaseCreatedPayload{
		ReleaseID:     release.ID,
		ReleaseNumber: release.ReleaseNumber,
		Service:       release.Service,
		Version:       release.TargetVersion,
		Environment:   release.Environment,
		Strategy:      release.Strategy,
	})

	return release, nil
}

// nextReleaseNumber 生成当天递增的发布单号, 如 REL-20250104-003
func (s *releaseService) nextReleaseNumber() (string, error) {
	datePrefix := time.Now().Format("20060102")
	count, err := s.releaseRepo.CountCreatedOn(datePrefix)
	if err != nil {
		return "", pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "生成发布单号失败", err)
	}
	return fmt.Sprintf("REL-%s-%03d", datePrefix, count+1), nil
}

func (s *releaseService) GetByID(id int64) (*model.Release, error) {
	release, err := s.releaseRepo.GetByID(id, repository.WithPreload("Phases"))
	if err != nil {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return release, nil
}

func (s *releaseService) List(req dto.ReleaseListParam) ([]*model.Release, int64, error) {
	return s.releaseRepo.List(req)
}

// Pause 暂停发布, 监控继续但不推进阶段
func (s *releaseService) Pause(id int64, operator, reason string) error {
	release, err := s.releaseRepo.GetByID(id)
	if err != nil {
		return pkgErrors.ErrRecordNotFound
	}

	if constants.IsTerminalReleaseStatus(release.Status) {
		return pkgErrors.ErrReleaseTerminal
	}
	if release.Status != constants.ReleaseStatusRunning {
		return pkgErrors.New(pkgErrors.CodeConflict, "仅执行中的发布可以暂停")
	}

	return s.publishCommand(constants.SubjectReleasePause, id, operator, reason)
}

// Resume 恢复被暂停的发布
func (s *releaseService) Resume(id int64, operator string) error {
	release, err := s.releaseRepo.GetByID(id)
	if err != nil {
		return pkgErrors.ErrRecordNotFound
	}

	if constants.IsTerminalReleaseStatus(release.Status) {
		return pkgErrors.ErrReleaseTerminal
	}
	if release.Status != constants.ReleaseStatusPaused {
		return pkgErrors.ErrReleaseNotPaused
	}

	return s.publishCommand(constants.SubjectReleaseResume, id, operator, "")
}

// Promote 提前结束观察, 直接进入全量阶段
// 仅canary/blue_green策略支持
func (s *releaseService) Promote(id int64, operator string) error {
	release, err := s.releaseRepo.GetByID(id)
	if err != nil {
		return pkgErrors.ErrRecordNotFound
	}

	if constants.IsTerminalReleaseStatus(release.Status) {
		return pkgErrors.ErrReleaseTerminal
	}
	if release.Strategy != constants.StrategyCanary && release.Strategy != constants.StrategyBlueGreen {
		return pkgErrors.ErrPromoteNotAllowed
	}
	if release.Status != constants.ReleaseStatusRunning && release.Status != constants.ReleaseStatusPaused {
		return pkgErrors.ErrPromoteNotAllowed
	}

	return s.publishCommand(constants.SubjectReleasePromote, id, operator, "")
}

// Rollback 手动触发回滚
func (s *releaseService) Rollback(id int64, operator, reason string) error {
	if !constants.ValidRollbackReason(reason) {
		return pkgErrors.New(pkgErrors.CodeBadRequest, "无效的回滚原因")
	}

	release, err := s.releaseRepo.GetByID(id)
	if err != nil {
		return pkgErrors.ErrRecordNotFound
	}

	if release.Status == constants.ReleaseStatusRolledBack {
		return pkgErrors.New(pkgErrors.CodeConflict, "发布已回滚")
	}
	if !release.RollbackAvailable {
		return pkgErrors.New(pkgErrors.CodeConflict, "没有可回滚的历史版本")
	}

	toVersion := ""
	if release.PreviousVersion != nil {
		toVersion = *release.PreviousVersion
	}

	return s.bus.Publish(constants.SubjectReleaseRollback, eventbus.ReleaseRollbackPayload{
		ReleaseID:   release.ID,
		Service:     release.Service,
		Environment: release.Environment,
		FromVersion: release.TargetVersion,
		ToVersion:   toVersion,
		Reason:      reason,
		TriggeredBy: operator,
	})
}

func (s *releaseService) publishCommand(subject string, releaseID int64, operator, reason string) error {
	return s.bus.Publish(subject, eventbus.ReleaseCommandPayload{
		ReleaseID: releaseID,
		Operator:  operator,
		Reason:    reason,
	})
}
