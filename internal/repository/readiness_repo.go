package repository

import (
	"time"

	"gorm.io/gorm"

	"release-orchestrator/internal/model"
)

// ReadinessRepository 就绪检查数据访问层
type ReadinessRepository struct {
	db *gorm.DB
}

// NewReadinessRepository 创建就绪检查Repository
func NewReadinessRepository(db *gorm.DB) *ReadinessRepository {
	return &ReadinessRepository{
		db: db,
	}
}

// CreateRun 保存一次检查运行及其检查项
func (r *ReadinessRepository) CreateRun(run *model.ReadinessRun) error {
	return r.db.Create(run).Error
}

// GetRunByID 根据ID获取检查运行
func (r *ReadinessRepository) GetRunByID(id int64, opts ...QueryOption) (*model.ReadinessRun, error) {
	query := r.db
	for _, opt := range opts {
		query = opt(query)
	}

	var run model.ReadinessRun
	if err := query.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// GetLatestRun 获取服务在指定环境的最近一次检查, 不存在返回nil
func (r *ReadinessRepository) GetLatestRun(service, environment string) (*model.ReadinessRun, error) {
	var run model.ReadinessRun
	err := r.db.Where("service = ? AND environment = ?", service, environment).
		Order("created_at DESC").
		First(&run).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// ListRunsByService 分页查询服务的检查历史
func (r *ReadinessRepository) ListRunsByService(service string, page, pageSize int) ([]*model.ReadinessRun, int64, error) {
	var runs []*model.ReadinessRun
	var total int64

	query := r.db.Model(&model.ReadinessRun{})
	if service != "" {
		query = query.Where("service = ?", service)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").
		Limit(pageSize).Offset(offset).
		Find(&runs).Error

	return runs, total, err
}

// ================== 豁免相关 ==================

// CreateWaiver 创建豁免
func (r *ReadinessRepository) CreateWaiver(waiver *model.ReadinessWaiver) error {
	return r.db.Create(waiver).Error
}

// GetWaiverByID 根据ID获取豁免
func (r *ReadinessRepository) GetWaiverByID(id int64) (*model.ReadinessWaiver, error) {
	var waiver model.ReadinessWaiver
	if err := r.db.First(&waiver, id).Error; err != nil {
		return nil, err
	}
	return &waiver, nil
}

// GetActiveWaivers 获取服务当前生效的豁免, 按检查名索引
func (r *ReadinessRepository) GetActiveWaivers(service string, now time.Time) (map[string]int64, error) {
	var waivers []*model.ReadinessWaiver
	err := r.db.Where("service = ? AND revoked = ? AND expires_at > ?", service, false, now).
		Find(&waivers).Error
	if err != nil {
		return nil, err
	}

	active := make(map[string]int64, len(waivers))
	for _, waiver := range waivers {
		active[waiver.CheckName] = waiver.ID
	}
	return active, nil
}

// ListWaivers 查询服务的豁免列表
func (r *ReadinessRepository) ListWaivers(service string) ([]*model.ReadinessWaiver, error) {
	var waivers []*model.ReadinessWaiver
	query := r.db.Model(&model.ReadinessWaiver{})
	if service != "" {
		query = query.Where("service = ?", service)
	}
	err := query.Order("created_at DESC").Find(&waivers).Error
	return waivers, err
}

// RevokeWaiver 撤销豁免
func (r *ReadinessRepository) RevokeWaiver(id int64) error {
	return r.db.Model(&model.ReadinessWaiver{}).
		Where("id = ?", id).
		Update("revoked", true).Error
}

// RevokeExpiredWaivers 批量撤销已过期的豁免
func (r *ReadinessRepository) RevokeExpiredWaivers(now time.Time) (int64, error) {
	result := r.db.Model(&model.ReadinessWaiver{}).
		Where("revoked = ? AND expires_at <= ?", false, now).
		Update("revoked", true)
	return result.RowsAffected, result.Error
}
