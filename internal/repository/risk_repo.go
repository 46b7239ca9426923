package repository

import (
	"time"

	"gorm.io/gorm"

	"release-orchestrator/internal/model"
)

// RiskRepository 风险评估数据访问层
type RiskRepository struct {
	db *gorm.DB
}

// NewRiskRepository 创建风险评估Repository
func NewRiskRepository(db *gorm.DB) *RiskRepository {
	return &RiskRepository{
		db: db,
	}
}

// Create 保存评估结果
func (r *RiskRepository) Create(assessment *model.RiskAssessment) error {
	return r.db.Create(assessment).Error
}

// GetByID 根据ID获取评估
func (r *RiskRepository) GetByID(id int64) (*model.RiskAssessment, error) {
	var assessment model.RiskAssessment
	if err := r.db.First(&assessment, id).Error; err != nil {
		return nil, err
	}
	return &assessment, nil
}

// GetLatest 获取服务在指定环境的最近一次评估
func (r *RiskRepository) GetLatest(service, environment string) (*model.RiskAssessment, error) {
	var assessment model.RiskAssessment
	err := r.db.Where("service = ? AND environment = ?", service, environment).
		Order("created_at DESC").
		First(&assessment).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &assessment, nil
}

// ListByService 分页查询服务的评估历史
func (r *RiskRepository) ListByService(service string, page, pageSize int) ([]*model.RiskAssessment, int64, error) {
	var assessments []*model.RiskAssessment
	var total int64

	query := r.db.Model(&model.RiskAssessment{})
	if service != "" {
		query = query.Where("service = ?", service)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Limit(pageSize).Offset(offset).
		Find(&assessments).Error

	return assessments, total, err
}

// DeleteExpiredBefore 清理在指定时间之前就已过期的评估
func (r *RiskRepository) DeleteExpiredBefore(before time.Time) (int64, error) {
	result := r.db.Where("expires_at < ?", before).Delete(&model.RiskAssessment{})
	return result.RowsAffected, result.Error
}
