package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/repository"
)

// Scheduler 调度器, 承担过期数据的周期清理
type Scheduler struct {
	cron          *cron.Cron
	logger        *zap.Logger
	riskRepo      *repository.RiskRepository
	readinessRepo *repository.ReadinessRepository
	cronSchedules map[string]cron.EntryID // 存储任务ID，便于管理
}

// NewScheduler 创建调度器
func NewScheduler(db *gorm.DB, logger *zap.Logger) *Scheduler {
	// 创建 cron 实例（带秒级支持）
	c := cron.New(cron.WithSeconds())

	return &Scheduler{
		cron:          c,
		logger:        logger,
		riskRepo:      repository.NewRiskRepository(db),
		readinessRepo: repository.NewReadinessRepository(db),
		cronSchedules: make(map[string]cron.EntryID),
	}
}

// Start 启动调度器
func (s *Scheduler) Start(cfg *config.SchedulerConfig) error {
	log := s.logger.Sugar()

	log.Info("启动定时任务调度器...")

	// cron 表达式格式: 秒 分 时 日 月 周
	waiverCron := cfg.WaiverSweepCron
	if waiverCron == "" {
		waiverCron = "0 0 1 * * *" // 默认: 每天凌晨1点
		log.Warn("未配置waiver_sweep_cron，使用默认值", zap.String("cron", waiverCron))
	}

	entryID, err := s.cron.AddFunc(waiverCron, func() {
		log.Info("执行定时任务: 过期豁免清理")
		revoked, err := s.readinessRepo.RevokeExpiredWaivers(time.Now())
		if err != nil {
			log.Errorf("过期豁免清理任务执行失败: %v", err)
			return
		}
		if revoked > 0 {
			log.Infof("已撤销%d条过期豁免", revoked)
		}
	})
	if err != nil {
		log.Errorf("注册过期豁免清理任务失败: %v", err)
		return err
	}
	s.cronSchedules["waiver_sweep"] = entryID
	log.Infof("过期豁免清理任务已注册: %s entry_id=%d", waiverCron, entryID)

	assessmentCron := cfg.AssessmentSweepCron
	if assessmentCron == "" {
		assessmentCron = "0 30 1 * * *" // 默认: 每天凌晨1点半
		log.Warn("未配置assessment_sweep_cron，使用默认值", zap.String("cron", assessmentCron))
	}

	entryID, err = s.cron.AddFunc(assessmentCron, func() {
		log.Info("执行定时任务: 过期风险评估清理")
		// 保留过期后7天内的评估供追溯
		deleted, err := s.riskRepo.DeleteExpiredBefore(time.Now().AddDate(0, 0, -7))
		if err != nil {
			log.Errorf("过期风险评估清理任务执行失败: %v", err)
			return
		}
		if deleted > 0 {
			log.Infof("已清理%d条过期风险评估", deleted)
		}
	})
	if err != nil {
		log.Errorf("注册过期风险评估清理任务失败: %v", err)
		return err
	}
	s.cronSchedules["assessment_sweep"] = entryID
	log.Infof("过期风险评估清理任务已注册: %s entry_id=%d", assessmentCron, entryID)

	// 启动 cron
	s.cron.Start()
	log.Info("定时任务调度器启动成功")

	return nil
}

// Stop 停止调度器
func (s *Scheduler) Stop() {
	s.logger.Info("正在停止定时任务调度器...")

	// 停止 cron（等待正在执行的任务完成）
	ctx := s.cron.Stop()
	<-ctx.Done()

	s.logger.Info("定时任务调度器已停止")
}
