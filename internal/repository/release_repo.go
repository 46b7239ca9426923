package repository

import (
	"gorm.io/gorm"

	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/model"
	"release-orchestrator/pkg/constants"
)

// ReleaseRepository 发布单数据访问层
type ReleaseRepository struct {
	db *gorm.DB
}

// NewReleaseRepository 创建发布单Repository
func NewReleaseRepository(db *gorm.DB) *ReleaseRepository {
	return &ReleaseRepository{
		db: db,
	}
}

// Create 创建发布单及其阶段计划
func (r *ReleaseRepository) Create(release *model.Release) error {
	return r.db.Create(release).Error
}

// GetByID 根据ID获取发布单
func (r *ReleaseRepository) GetByID(id int64, opts ...QueryOption) (*model.Release, error) {
	query := r.db
	for _, opt := range opts {
		query = opt(query)
	}

	var release model.Release
	if err := query.First(&release, id).Error; err != nil {
		return nil, err
	}
	return &release, nil
}

// GetByReleaseNumber 根据发布单号获取
func (r *ReleaseRepository) GetByReleaseNumber(releaseNumber string) (*model.Release, error) {
	var release model.Release
	err := r.db.Where("release_number = ?", releaseNumber).First(&release).Error
	if err != nil {
		return nil, err
	}
	return &release, nil
}

// Update 更新发布单
func (r *ReleaseRepository) Update(release *model.Release) error {
	return r.db.Save(release).Error
}

// List 分页查询发布单列表
func (r *ReleaseRepository) List(req dto.ReleaseListParam) ([]*model.Release, int64, error) {
	var releases []*model.Release
	var total int64

	// Where 条件
	applyFilters := func(query *gorm.DB) *gorm.DB {
		if len(req.Statuses) > 0 {
			query = query.Where("status IN ?", req.Statuses)
		}
		if req.Service != nil && *req.Service != "" {
			query = query.Where("service = ?", *req.Service)
		}
		if req.Environment != nil && *req.Environment != "" {
			query = query.Where("environment = ?", *req.Environment)
		}
		if req.Initiator != nil && *req.Initiator != "" {
			query = query.Where("initiator = ?", *req.Initiator)
		}
		if req.CreatedAtStart != nil {
			query = query.Where("created_at >= ?", *req.CreatedAtStart)
		}
		if req.CreatedAtEnd != nil {
			query = query.Where("created_at <= ?", *req.CreatedAtEnd)
		}
		if req.Keyword != nil && *req.Keyword != "" {
			query = query.Where(
				"release_number LIKE ? OR service LIKE ?",
				"%"+*req.Keyword+"%", "%"+*req.Keyword+"%",
			)
		}
		return query
	}

	// 统计总数
	if err := applyFilters(r.db.Model(&model.Release{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (req.Page - 1) * req.PageSize
	err := applyFilters(r.db.Model(&model.Release{})).
		Order("created_at DESC").
		Limit(req.PageSize).Offset(offset).
		Find(&releases).Error

	return releases, total, err
}

// CountActiveByService 统计服务在指定环境下未完结的发布单
func (r *ReleaseRepository) CountActiveByService(service, environment string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Release{}).
		Where("service = ? AND environment = ?", service, environment).
		Where("status IN ?", []string{
			constants.ReleaseStatusPending,
			constants.ReleaseStatusRunning,
			constants.ReleaseStatusPaused,
		}).
		Count(&count).Error
	return count, err
}

// CountCreatedOn 统计当天已创建的发布单数, 用于生成发布单号
func (r *ReleaseRepository) CountCreatedOn(datePrefix string) (int64, error) {
	var count int64
	err := r.db.Model(&model.Release{}).
		Where("release_number LIKE ?", "REL-"+datePrefix+"-%").
		Count(&count).Error
	return count, err
}

// GetLastCompleted 获取服务在指定环境最近一次完成的发布
func (r *ReleaseRepository) GetLastCompleted(service, environment string) (*model.Release, error) {
	var release model.Release
	err := r.db.Where("service = ? AND environment = ? AND status = ?",
		service, environment, constants.ReleaseStatusCompleted).
		Order("finished_at DESC").
		First(&release).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &release, nil
}

// ================== 阶段相关 ==================

// GetPhases 获取发布单的阶段列表
func (r *ReleaseRepository) GetPhases(releaseID int64) ([]*model.ReleasePhase, error) {
	var phases []*model.ReleasePhase
	err := r.db.Where("release_id = ?", releaseID).
		Order("seq ASC").
		Find(&phases).Error
	return phases, err
}
