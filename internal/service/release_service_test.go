package service

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"release-orchestrator/internal/core/release"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/repository"
	"release-orchestrator/pkg/constants"
	pkgErrors "release-orchestrator/pkg/errors"
)

func TestMain(m *testing.M) {
	_ = logger.Init(&config.LogConfig{Level: "error", Format: "console", Output: "stdout"})
	os.Exit(m.Run())
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Release{}, &model.ReleasePhase{},
		&model.RiskAssessment{},
		&model.ReadinessRun{}, &model.ReadinessCheckRecord{},
	))
	return db
}

func newReleaseService(t *testing.T, db *gorm.DB, bus *eventbus.Bus) ReleaseService {
	t.Helper()
	templates, err := release.LoadTemplates(4, "")
	require.NoError(t, err)
	return NewReleaseService(
		repository.NewReleaseRepository(db),
		repository.NewRiskRepository(db),
		repository.NewReadinessRepository(db),
		templates,
		bus,
	)
}

func TestCreateReleaseWithPhasePlan(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	created, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:       "payment",
		Environment:   constants.EnvProduction,
		TargetVersion: "v2.0.0",
		Strategy:      constants.StrategyCanary,
	}, "zhangsan")
	require.NoError(t, err)

	assert.Regexp(t, `^REL-\d{8}-001$`, created.ReleaseNumber)
	assert.Equal(t, constants.ReleaseStatusPending, created.Status)
	assert.Equal(t, "zhangsan", created.Initiator)
	// 首次发布没有历史版本, 不可回滚
	assert.False(t, created.RollbackAvailable)
	assert.Nil(t, created.PreviousVersion)
	// canary 7个阶段, 流量严格递增至100
	require.Len(t, created.Phases, 7)
	assert.Equal(t, 100, created.Phases[6].TrafficPercent)

	// 同一天第二张单号递增
	second, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:       "order",
		Environment:   constants.EnvProduction,
		TargetVersion: "v1.0.0",
		Strategy:      constants.StrategyDirect,
	}, "zhangsan")
	require.NoError(t, err)
	assert.Regexp(t, `^REL-\d{8}-002$`, second.ReleaseNumber)
}

func TestCreateReleasePreviousVersionFromHistory(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	finished := time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(&model.Release{
		ReleaseNumber: "REL-20250101-001",
		Service:       "payment",
		Environment:   constants.EnvProduction,
		Strategy:      constants.StrategyDirect,
		TargetVersion: "v1.9.0",
		Status:        constants.ReleaseStatusCompleted,
		FinishedAt:    &finished,
	}).Error)

	created, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:       "payment",
		Environment:   constants.EnvProduction,
		TargetVersion: "v2.0.0",
		Strategy:      constants.StrategyCanary,
	}, "zhangsan")
	require.NoError(t, err)

	require.NotNil(t, created.PreviousVersion)
	assert.Equal(t, "v1.9.0", *created.PreviousVersion)
	assert.True(t, created.RollbackAvailable)
}

func TestCreateReleaseRejectsConcurrentActive(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	require.NoError(t, db.Create(&model.Release{
		ReleaseNumber: "REL-20250101-001",
		Service:       "payment",
		Environment:   constants.EnvProduction,
		Strategy:      constants.StrategyCanary,
		TargetVersion: "v1.9.0",
		Status:        constants.ReleaseStatusRunning,
	}).Error)

	_, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:       "payment",
		Environment:   constants.EnvProduction,
		TargetVersion: "v2.0.0",
		Strategy:      constants.StrategyCanary,
	}, "zhangsan")
	require.Error(t, err)

	var appErr *pkgErrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgErrors.CodeConflict, appErr.Code)
}

func TestCreateReleaseRejectsStaleAssessment(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	assessment := &model.RiskAssessment{
		Service:           "payment",
		Version:           "v2.0.0",
		Environment:       constants.EnvProduction,
		OverallScore:      3.2,
		RiskLevel:         constants.RiskLevelLow,
		Confidence:        90,
		SuggestedStrategy: constants.StrategyRolling,
		ExpiresAt:         time.Now().Add(-time.Minute), // 已过期
	}
	require.NoError(t, db.Create(assessment).Error)

	_, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:          "payment",
		Environment:      constants.EnvProduction,
		TargetVersion:    "v2.0.0",
		RiskAssessmentID: &assessment.ID,
	}, "zhangsan")
	assert.ErrorIs(t, err, pkgErrors.ErrStaleRiskAssessment)
}

func TestCreateReleaseStrategyFromAssessment(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	assessment := &model.RiskAssessment{
		Service:           "payment",
		Version:           "v2.0.0",
		Environment:       constants.EnvProduction,
		OverallScore:      7.5,
		RiskLevel:         constants.RiskLevelHigh,
		Confidence:        70,
		SuggestedStrategy: constants.StrategyBlueGreen,
		ExpiresAt:         time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, db.Create(assessment).Error)

	created, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:          "payment",
		Environment:      constants.EnvProduction,
		TargetVersion:    "v2.0.0",
		RiskAssessmentID: &assessment.ID,
	}, "zhangsan")
	require.NoError(t, err)
	assert.Equal(t, constants.StrategyBlueGreen, created.Strategy)
}

func TestCreateReleaseRejectsBlockedReadiness(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	run := &model.ReadinessRun{
		Service:      "payment",
		Version:      "v2.0.0",
		Environment:  constants.EnvProduction,
		Score:        75,
		Overall:      constants.ReadinessStatusBlocked,
		BlockerCount: 2,
	}
	require.NoError(t, db.Create(run).Error)

	_, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:        "payment",
		Environment:    constants.EnvProduction,
		TargetVersion:  "v2.0.0",
		Strategy:       constants.StrategyCanary,
		ReadinessRunID: &run.ID,
	}, "zhangsan")
	assert.ErrorIs(t, err, pkgErrors.ErrReadinessBlocked)
}

func TestCreateReleaseBlockedByLatestReadiness(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	blocked := &model.ReadinessRun{
		Service:      "payment",
		Version:      "v2.0.0",
		Environment:  constants.EnvProduction,
		Score:        60,
		Overall:      constants.ReadinessStatusBlocked,
		BlockerCount: 2,
	}
	blocked.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, db.Create(blocked).Error)

	// 不带run_id时以该服务+环境最近一次检查为准, 阻塞则拒绝
	_, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:       "payment",
		Environment:   constants.EnvProduction,
		TargetVersion: "v2.0.0",
		Strategy:      constants.StrategyCanary,
	}, "zhangsan")
	assert.ErrorIs(t, err, pkgErrors.ErrReadinessBlocked)

	// 更新的一次检查通过后放行
	ready := &model.ReadinessRun{
		Service:     "payment",
		Version:     "v2.0.1",
		Environment: constants.EnvProduction,
		Score:       95,
		Overall:     constants.ReadinessStatusReady,
	}
	ready.CreatedAt = time.Now()
	require.NoError(t, db.Create(ready).Error)

	created, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:       "payment",
		Environment:   constants.EnvProduction,
		TargetVersion: "v2.0.1",
		Strategy:      constants.StrategyCanary,
	}, "zhangsan")
	require.NoError(t, err)
	assert.Equal(t, constants.ReleaseStatusPending, created.Status)
}

func TestCreateReleaseRejectsMismatchedReadinessRun(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	// 别的服务的检查结果不能用于本次发布
	run := &model.ReadinessRun{
		Service:     "order",
		Version:     "v3.0.0",
		Environment: constants.EnvProduction,
		Score:       98,
		Overall:     constants.ReadinessStatusReady,
	}
	require.NoError(t, db.Create(run).Error)

	_, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:        "payment",
		Environment:    constants.EnvProduction,
		TargetVersion:  "v2.0.0",
		Strategy:       constants.StrategyCanary,
		ReadinessRunID: &run.ID,
	}, "zhangsan")
	require.Error(t, err)

	var appErr *pkgErrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgErrors.CodeBadRequest, appErr.Code)
}

func TestCreateReleaseInvalidInputs(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	_, err := svc.Create(&dto.ReleaseCreateRequest{
		Service:       "payment",
		Environment:   "qa",
		TargetVersion: "v2.0.0",
		Strategy:      constants.StrategyCanary,
	}, "zhangsan")
	assert.ErrorIs(t, err, pkgErrors.ErrInvalidEnvironment)

	_, err = svc.Create(&dto.ReleaseCreateRequest{
		Service:     "payment",
		Environment: constants.EnvProduction,
		Strategy:    constants.StrategyCanary,
	}, "zhangsan")
	assert.ErrorIs(t, err, pkgErrors.ErrMissingVersion)

	_, err = svc.Create(&dto.ReleaseCreateRequest{
		Service:       "payment",
		Environment:   constants.EnvProduction,
		TargetVersion: "v2.0.0",
		Strategy:      "big_bang",
	}, "zhangsan")
	assert.ErrorIs(t, err, pkgErrors.ErrInvalidStrategy)
}

func TestReleaseCommandGuards(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()
	svc := newReleaseService(t, db, bus)

	prev := "v1.0.0"
	running := &model.Release{
		ReleaseNumber:     "REL-20250101-001",
		Service:           "payment",
		Environment:       constants.EnvProduction,
		Strategy:          constants.StrategyRolling,
		PreviousVersion:   &prev,
		TargetVersion:     "v1.1.0",
		Status:            constants.ReleaseStatusRunning,
		RollbackAvailable: true,
	}
	require.NoError(t, db.Create(running).Error)

	// rolling 不支持promote
	assert.ErrorIs(t, svc.Promote(running.ID, "zhangsan"), pkgErrors.ErrPromoteNotAllowed)

	// 未暂停不能resume
	assert.ErrorIs(t, svc.Resume(running.ID, "zhangsan"), pkgErrors.ErrReleaseNotPaused)

	// 执行中可以pause
	assert.NoError(t, svc.Pause(running.ID, "zhangsan", "观察指标"))

	completed := &model.Release{
		ReleaseNumber: "REL-20250101-002",
		Service:       "order",
		Environment:   constants.EnvProduction,
		Strategy:      constants.StrategyDirect,
		TargetVersion: "v1.0.0",
		Status:        constants.ReleaseStatusCompleted,
	}
	require.NoError(t, db.Create(completed).Error)

	// 终态不接受命令
	assert.ErrorIs(t, svc.Pause(completed.ID, "zhangsan", ""), pkgErrors.ErrReleaseTerminal)

	// 没有历史版本不可回滚
	assert.Error(t, svc.Rollback(completed.ID, "zhangsan", constants.RollbackReasonManual))

	// 无效回滚原因被拒
	assert.Error(t, svc.Rollback(running.ID, "zhangsan", "just_because"))
}
