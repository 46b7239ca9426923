package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"release-orchestrator/internal/core/readiness"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/repository"
	"release-orchestrator/pkg/constants"
	pkgErrors "release-orchestrator/pkg/errors"
)

type ReadinessService interface {
	Run(ctx context.Context, req *dto.ReadinessRunRequest) (*model.ReadinessRun, error)
	GetRun(id int64) (*model.ReadinessRun, error)
	GetReport(id int64) (*readiness.Report, error)
	ListRuns(service string, page, pageSize int) ([]*model.ReadinessRun, int64, error)

	CreateWaiver(req *dto.WaiverCreateRequest, grantedBy string) (*model.ReadinessWaiver, error)
	ListWaivers(service string) ([]*model.ReadinessWaiver, error)
	RevokeWaiver(id int64) error
}

type readinessService struct {
	aggregator    *readiness.Aggregator
	readinessRepo *repository.ReadinessRepository
}

func NewReadinessService(aggregator *readiness.Aggregator,
	readinessRepo *repository.ReadinessRepository) ReadinessService {
	return &readinessService{
		aggregator:    aggregator,
		readinessRepo: readinessRepo,
	}
}

// Run 执行一次就绪检查并持久化
// 生效的豁免会把失败项标记为waived, 不计入阻断
func (s *readinessService) Run(ctx context.Context, req *dto.ReadinessRunRequest) (*model.ReadinessRun, error) {
	if !constants.ValidEnvironment(req.Environment) {
		return nil, pkgErrors.ErrInvalidEnvironment
	}

	waivers, err := s.readinessRepo.GetActiveWaivers(req.Service, time.Now())
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询生效豁免失败", err)
	}

	signals := buildSignals(req)
	result := s.aggregator.Run(ctx, req.Service, req.Version, req.Environment, signals, waivers)

	run := &model.ReadinessRun{
		Service:      req.Service,
		Version:      req.Version,
		Environment:  req.Environment,
		Score:        result.Score,
		Overall:      result.Overall,
		BlockerCount: len(result.Blockers),
	}
	for _, check := range result.Checks {
		record := model.ReadinessCheckRecord{
			Name:           check.Name,
			Category:       check.Category,
			Severity:       check.Severity,
			Status:         check.Status,
			Waivable:       check.Waivable,
			Message:        check.Message,
			RemediationURL: check.RemediationURL,
			FixMinutes:     check.FixMinutes,
			WaiverID:       check.WaiverID,
		}
		if len(check.Detail) > 0 {
			if detail, err := json.Marshal(check.Detail); err == nil {
				record.Detail = detail
			}
		}
		run.Checks = append(run.Checks, record)
	}

	if err := s.readinessRepo.CreateRun(run); err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "保存就绪检查失败", err)
	}

	logger.Info("就绪检查完成",
		zap.Int64("run_id", run.ID),
		zap.String("service", req.Service),
		zap.String("version", req.Version),
		zap.Float64("score", run.Score),
		zap.String("overall", run.Overall),
		zap.Int("blockers", run.BlockerCount))

	return run, nil
}

func (s *readinessService) GetRun(id int64) (*model.ReadinessRun, error) {
	run, err := s.readinessRepo.GetRunByID(id, repository.WithPreload("Checks"))
	if err != nil {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return run, nil
}

// GetReport 基于一次检查生成报告: 分类汇总、整改建议与后续动作
func (s *readinessService) GetReport(id int64) (*readiness.Report, error) {
	run, err := s.readinessRepo.GetRunByID(id, repository.WithPreload("Checks"))
	if err != nil {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return readiness.GenerateReport(run), nil
}

func (s *readinessService) ListRuns(service string, page, pageSize int) ([]*model.ReadinessRun, int64, error) {
	return s.readinessRepo.ListRunsByService(service, page, pageSize)
}

// CreateWaiver 创建豁免, 有效期固定30天
func (s *readinessService) CreateWaiver(req *dto.WaiverCreateRequest, grantedBy string) (*model.ReadinessWaiver, error) {
	waiver := &model.ReadinessWaiver{
		Service:   req.Service,
		CheckName: req.CheckName,
		Reason:    req.Reason,
		GrantedBy: grantedBy,
		ExpiresAt: time.Now().AddDate(0, 0, constants.WaiverExpireDays),
	}

	if err := s.readinessRepo.CreateWaiver(waiver); err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "创建豁免失败", err)
	}

	logger.Info("豁免已创建",
		zap.Int64("waiver_id", waiver.ID),
		zap.String("service", waiver.Service),
		zap.String("check_name", waiver.CheckName),
		zap.String("granted_by", grantedBy))

	return waiver, nil
}

func (s *readinessService) ListWaivers(service string) ([]*model.ReadinessWaiver, error) {
	return s.readinessRepo.ListWaivers(service)
}

func (s *readinessService) RevokeWaiver(id int64) error {
	if _, err := s.readinessRepo.GetWaiverByID(id); err != nil {
		return pkgErrors.ErrRecordNotFound
	}
	return s.readinessRepo.RevokeWaiver(id)
}

// buildSignals 请求转检查信号, 未传的信号沿用健康基线
func buildSignals(req *dto.ReadinessRunRequest) readiness.Signals {
	signals := readiness.HealthySignals()

	setFloat := func(target *float64, value *float64) {
		if value != nil {
			*target = *value
		}
	}
	setInt := func(target *int, value *int) {
		if value != nil {
			*target = *value
		}
	}

	setFloat(&signals.LineCoverage, req.LineCoverage)
	setFloat(&signals.BranchCoverage, req.BranchCoverage)
	setFloat(&signals.FunctionCoverage, req.FunctionCoverage)
	setFloat(&signals.StatementCoverage, req.StatementCoverage)

	setInt(&signals.CriticalVulns, req.CriticalVulns)
	setInt(&signals.HighVulns, req.HighVulns)
	setInt(&signals.MediumVulns, req.MediumVulns)
	setInt(&signals.LowVulns, req.LowVulns)

	setFloat(&signals.P95LatencyMs, req.P95LatencyMs)
	setFloat(&signals.ErrorRatePercent, req.ErrorRatePercent)
	setFloat(&signals.RequestsPerSec, req.RequestsPerSec)

	if req.InfraComponents != nil {
		signals.InfraComponents = req.InfraComponents
	}
	if req.ComplianceItems != nil {
		signals.ComplianceItems = req.ComplianceItems
	}
	if req.ConfigItems != nil {
		signals.ConfigItems = req.ConfigItems
	}
	if req.MonitoringItems != nil {
		signals.MonitoringItems = req.MonitoringItems
	}

	setInt(&signals.TotalDependencies, req.TotalDependencies)
	setInt(&signals.OutdatedDependencies, req.OutdatedDependencies)
	setInt(&signals.VulnerableDependencies, req.VulnerableDependencies)
	setInt(&signals.LicenseViolations, req.LicenseViolations)

	return signals
}
