package repository

import (
	"gorm.io/gorm"

	"release-orchestrator/internal/model"
)

// RollbackRepository 回滚数据访问层
type RollbackRepository struct {
	db *gorm.DB
}

// NewRollbackRepository 创建回滚Repository
func NewRollbackRepository(db *gorm.DB) *RollbackRepository {
	return &RollbackRepository{
		db: db,
	}
}

// GetPlanByID 根据ID获取回滚计划
func (r *RollbackRepository) GetPlanByID(id int64) (*model.RollbackPlan, error) {
	var plan model.RollbackPlan
	if err := r.db.First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// GetPlansByReleaseID 获取发布单的回滚计划
func (r *RollbackRepository) GetPlansByReleaseID(releaseID int64) ([]*model.RollbackPlan, error) {
	var plans []*model.RollbackPlan
	err := r.db.Where("release_id = ?", releaseID).
		Order("created_at DESC").
		Find(&plans).Error
	return plans, err
}

// GetExecutionByID 根据ID获取回滚执行记录
func (r *RollbackRepository) GetExecutionByID(id int64) (*model.RollbackExecution, error) {
	var execution model.RollbackExecution
	if err := r.db.First(&execution, id).Error; err != nil {
		return nil, err
	}
	return &execution, nil
}

// ListExecutions 分页查询回滚执行记录
func (r *RollbackRepository) ListExecutions(service string, page, pageSize int) ([]*model.RollbackExecution, int64, error) {
	var executions []*model.RollbackExecution
	var total int64

	query := r.db.Model(&model.RollbackExecution{})
	if service != "" {
		query = query.Where("service = ?", service)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Limit(pageSize).Offset(offset).
		Find(&executions).Error

	return executions, total, err
}

// GetPostmortemByExecutionID 获取回滚执行对应的复盘
func (r *RollbackRepository) GetPostmortemByExecutionID(executionID int64) (*model.Postmortem, error) {
	var postmortem model.Postmortem
	err := r.db.Where("rollback_id = ?", executionID).First(&postmortem).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &postmortem, nil
}

// ListPostmortems 分页查询复盘列表
func (r *RollbackRepository) ListPostmortems(service string, page, pageSize int) ([]*model.Postmortem, int64, error) {
	var postmortems []*model.Postmortem
	var total int64

	query := r.db.Model(&model.Postmortem{})
	if service != "" {
		query = query.Where("service = ?", service)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Limit(pageSize).Offset(offset).
		Find(&postmortems).Error

	return postmortems, total, err
}
