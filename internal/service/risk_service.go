package service

import (
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"release-orchestrator/internal/core/risk"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/repository"
	"release-orchestrator/pkg/constants"
	pkgErrors "release-orchestrator/pkg/errors"
)

type RiskService interface {
	Assess(req *dto.RiskAssessRequest, assessedBy string) (*model.RiskAssessment, error)
	GetByID(id int64) (*model.RiskAssessment, error)
	GetLatest(service, environment string) (*model.RiskAssessment, error)
	List(service string, page, pageSize int) ([]*model.RiskAssessment, int64, error)
}

type riskService struct {
	riskRepo *repository.RiskRepository
}

func NewRiskService(riskRepo *repository.RiskRepository) RiskService {
	return &riskService{
		riskRepo: riskRepo,
	}
}

// Assess 执行并持久化一次风险评估
func (s *riskService) Assess(req *dto.RiskAssessRequest, assessedBy string) (*model.RiskAssessment, error) {
	if !constants.ValidEnvironment(req.Environment) {
		return nil, pkgErrors.ErrInvalidEnvironment
	}

	ctx := buildDeploymentContext(req)
	result := risk.Assess(ctx)

	categoryScores := make(datatypes.JSONMap, len(result.CategoryScores))
	for category, score := range result.CategoryScores {
		categoryScores[category] = score
	}

	assessment := &model.RiskAssessment{
		Service:           req.Service,
		Version:           req.Version,
		Environment:       req.Environment,
		OverallScore:      result.OverallScore,
		RiskLevel:         result.Level,
		Confidence:        result.Confidence,
		SuggestedStrategy: result.SuggestedStrategy,
		Factors:           datatypes.NewJSONSlice(result.Factors),
		CategoryScores:    categoryScores,
		Recommendations:   result.Recommendations,
		Mitigations:       result.Mitigations,
		AssessedBy:        assessedBy,
		ExpiresAt:         result.ExpiresAt,
	}

	if err := s.riskRepo.Create(assessment); err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "保存风险评估失败", err)
	}

	logger.Info("风险评估完成",
		zap.Int64("assessment_id", assessment.ID),
		zap.String("service", req.Service),
		zap.String("version", req.Version),
		zap.Float64("score", result.OverallScore),
		zap.String("level", result.Level),
		zap.String("suggested_strategy", result.SuggestedStrategy))

	return assessment, nil
}

func (s *riskService) GetByID(id int64) (*model.RiskAssessment, error) {
	assessment, err := s.riskRepo.GetByID(id)
	if err != nil {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return assessment, nil
}

func (s *riskService) GetLatest(service, environment string) (*model.RiskAssessment, error) {
	assessment, err := s.riskRepo.GetLatest(service, environment)
	if err != nil {
		return nil, pkgErrors.Wrap(pkgErrors.CodeDatabaseError, "查询风险评估失败", err)
	}
	if assessment == nil {
		return nil, pkgErrors.ErrRecordNotFound
	}
	return assessment, nil
}

func (s *riskService) List(service string, page, pageSize int) ([]*model.RiskAssessment, int64, error) {
	return s.riskRepo.ListByService(service, page, pageSize)
}

// buildDeploymentContext 请求转评估上下文, 未传的指标沿用健康默认值
func buildDeploymentContext(req *dto.RiskAssessRequest) risk.DeploymentContext {
	ctx := risk.NewDeploymentContext(req.Service, req.Version, req.Environment)

	if req.PlannedAt != nil {
		ctx.At = *req.PlannedAt
	}

	if req.TestCoverage != nil {
		ctx.TestCoverage = *req.TestCoverage
	}
	if req.OutdatedDependencies != nil {
		ctx.OutdatedDependencies = *req.OutdatedDependencies
	}
	if req.PerformanceScore != nil {
		ctx.PerformanceScore = *req.PerformanceScore
	}
	ctx.HasDatabaseMigrations = req.HasDatabaseMigrations
	if req.MigrationComplexity != "" {
		ctx.MigrationComplexity = req.MigrationComplexity
	}

	if req.TeamSize != nil {
		ctx.TeamSize = *req.TeamSize
	}
	if req.MonitoringCoverage != nil {
		ctx.MonitoringCoverage = *req.MonitoringCoverage
	}
	if req.RollbackTested != nil {
		ctx.RollbackTested = *req.RollbackTested
	}

	ctx.CriticalVulnerabilities = req.CriticalVulnerabilities
	ctx.HighVulnerabilities = req.HighVulnerabilities
	if req.SecretsEncrypted != nil {
		ctx.SecretsEncrypted = *req.SecretsEncrypted
	}
	if req.AuthConfigured != nil {
		ctx.AuthConfigured = *req.AuthConfigured
	}

	ctx.ComplianceFrameworks = req.ComplianceFrameworks
	if req.SOC2Score != nil {
		ctx.SOC2Score = *req.SOC2Score
	}
	if req.HIPAAScore != nil {
		ctx.HIPAAScore = *req.HIPAAScore
	}
	ctx.HandlesPII = req.HandlesPII
	if req.PIIProtectionScore != nil {
		ctx.PIIProtectionScore = *req.PIIProtectionScore
	}

	if req.ActiveUsers != nil {
		ctx.ActiveUsers = *req.ActiveUsers
	}
	if req.RevenueImpact != "" {
		ctx.RevenueImpact = req.RevenueImpact
	}
	if req.SLAUptime != nil {
		ctx.SLAUptime = *req.SLAUptime
	}

	return ctx
}
