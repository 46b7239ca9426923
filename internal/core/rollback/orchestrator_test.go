package rollback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/pkg/constants"
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
		&model.Release{}, &model.RollbackPlan{},
		&model.RollbackExecution{}, &model.Postmortem{},
		&model.RiskAssessment{}))
	return db
}

var releaseSeq int64

func failedRelease(t *testing.T, db *gorm.DB, strategy string) *model.Release {
	t.Helper()
	prev := "v1.0.0"
	started := time.Now().Add(-10 * time.Minute)
	finished := time.Now().Add(-5 * time.Minute)
	reason := "阶段monitor_1_percent失败: 健康检查未通过: [错误率2.40%超过阈值1%]"
	release := &model.Release{
		ReleaseNumber:     fmt.Sprintf("REL-20250104-%03d", atomic.AddInt64(&releaseSeq, 1)),
		Service:           "payment",
		Environment:       constants.EnvProduction,
		Strategy:          strategy,
		PreviousVersion:   &prev,
		TargetVersion:     "v1.1.0",
		Status:            constants.ReleaseStatusFailed,
		CandidateTraffic:  1,
		RollbackAvailable: true,
		StartedAt:         &started,
		FinishedAt:        &finished,
		FailureReason:     &reason,
	}
	require.NoError(t, db.Create(release).Error)
	return release
}

func TestCreatePlanBlueGreenInstantSwitch(t *testing.T) {
	db := setupDB(t)
	release := failedRelease(t, db, constants.StrategyBlueGreen)

	plan, err := CreatePlan(db, release, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	assert.Equal(t, constants.RollbackStrategyInstantSwitch, plan.Strategy)
	require.Len(t, plan.Steps, 4)
	assert.Equal(t, constants.RollbackActionStopTraffic, plan.Steps[0].Action)
	assert.Equal(t, constants.RollbackActionCleanup, plan.Steps[3].Action)
	assert.Equal(t, 240, plan.EstimatedSeconds)
	assert.True(t, plan.AutoExecute)
	assert.Equal(t, "v1.0.0", plan.ToVersion)
	assert.LessOrEqual(t, plan.RiskScore, 5.0) // 回滚自身风险偏低
}

func TestCreatePlanManualIsNotAutoExecute(t *testing.T) {
	db := setupDB(t)
	release := failedRelease(t, db, constants.StrategyCanary)

	plan, err := CreatePlan(db, release, constants.RollbackReasonManual)
	require.NoError(t, err)

	assert.Equal(t, constants.RollbackStrategyGradual, plan.Strategy)
	assert.False(t, plan.AutoExecute)
}

func TestCreatePlanEmergencyForCriticalError(t *testing.T) {
	db := setupDB(t)
	release := failedRelease(t, db, constants.StrategyRolling)

	plan, err := CreatePlan(db, release, constants.RollbackReasonCriticalError)
	require.NoError(t, err)

	assert.Equal(t, constants.RollbackStrategyEmergency, plan.Strategy)
	require.Len(t, plan.Steps, 2)
	assert.True(t, plan.AutoExecute)
}

func TestCreatePlanTargetsLastCompletedRelease(t *testing.T) {
	db := setupDB(t)

	// 历史完成的发布, 其版本应作为回滚目标
	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-1 * time.Hour)
	for version, at := range map[string]time.Time{"v0.9.0": older, "v1.0.5": newer} {
		finishedAt := at
		require.NoError(t, db.Create(&model.Release{
			ReleaseNumber: "REL-" + version,
			Service:       "payment",
			Environment:   constants.EnvProduction,
			Strategy:      constants.StrategyDirect,
			TargetVersion: version,
			Status:        constants.ReleaseStatusCompleted,
			FinishedAt:    &finishedAt,
		}).Error)
	}

	release := failedRelease(t, db, constants.StrategyCanary)
	plan, err := CreatePlan(db, release, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	assert.Equal(t, "v1.0.5", plan.ToVersion)
}

func TestExecuteSuccess(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	var mu sync.Mutex
	var completed []eventbus.RollbackCompletedPayload
	_, err := bus.Subscribe(constants.SubjectRollbackCompleted, "test", func(event eventbus.Event) {
		mu.Lock()
		defer mu.Unlock()
		completed = append(completed, event.Data.(eventbus.RollbackCompletedPayload))
	})
	require.NoError(t, err)

	release := failedRelease(t, db, constants.StrategyCanary)
	plan, err := CreatePlan(db, release, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	orchestrator := New(db, bus, NewMockRunner(), &StaticVerifier{})
	execution, err := orchestrator.Execute(context.Background(), plan.ID, "system")
	require.NoError(t, err)

	assert.Equal(t, constants.RollbackExecutionCompleted, execution.Status)
	require.NotNil(t, execution.Verified)
	assert.True(t, *execution.Verified)
	assert.Len(t, execution.Verification, 5)
	for _, step := range execution.Steps {
		assert.Equal(t, constants.RollbackStepCompleted, step.Status)
	}

	var got model.Release
	require.NoError(t, db.First(&got, release.ID).Error)
	assert.Equal(t, constants.ReleaseStatusRolledBack, got.Status)
	assert.Equal(t, 0, got.CandidateTraffic)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(completed) == 1 && completed[0].Verified
	}, 2*time.Second, 10*time.Millisecond)
}

func TestExecuteStepFailureHaltsWithoutRetry(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	release := failedRelease(t, db, constants.StrategyCanary)
	plan, err := CreatePlan(db, release, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	runner := NewMockRunner().
		SetFailAction(constants.RollbackActionRestore, errors.New("镜像仓库不可达"))

	orchestrator := New(db, bus, runner, &StaticVerifier{})
	execution, err := orchestrator.Execute(context.Background(), plan.ID, "system")
	require.NoError(t, err)

	assert.Equal(t, constants.RollbackExecutionFailed, execution.Status)
	require.NotNil(t, execution.FailureReason)
	assert.Contains(t, *execution.FailureReason, "镜像仓库不可达")
	assert.Nil(t, execution.Verified)

	// 失败步骤之后的步骤不再执行, 也不重试
	ran := runner.RanActions()
	assert.Equal(t, []string{
		constants.RollbackActionReduceTraffic,
		constants.RollbackActionRestore,
	}, ran)

	// 发布单保持failed, 不进入rolled_back
	var got model.Release
	require.NoError(t, db.First(&got, release.ID).Error)
	assert.Equal(t, constants.ReleaseStatusFailed, got.Status)
}

func TestExecuteVerificationFailureFailsExecution(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	release := failedRelease(t, db, constants.StrategyCanary)
	plan, err := CreatePlan(db, release, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	orchestrator := New(db, bus, NewMockRunner(),
		&StaticVerifier{Failing: []string{"error_rates"}})
	execution, err := orchestrator.Execute(context.Background(), plan.ID, "system")
	require.NoError(t, err)

	// 步骤全部成功, 验证失败仍判定回滚失败
	for _, step := range execution.Steps {
		assert.Equal(t, constants.RollbackStepCompleted, step.Status)
	}
	assert.Equal(t, constants.RollbackExecutionFailed, execution.Status)
	require.NotNil(t, execution.Verified)
	assert.False(t, *execution.Verified)

	var got model.Release
	require.NoError(t, db.First(&got, release.ID).Error)
	assert.Equal(t, constants.ReleaseStatusFailed, got.Status)
}

func TestGeneratePostmortem(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	release := failedRelease(t, db, constants.StrategyCanary)
	plan, err := CreatePlan(db, release, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	orchestrator := New(db, bus, NewMockRunner(), &StaticVerifier{})
	execution, err := orchestrator.Execute(context.Background(), plan.ID, "system")
	require.NoError(t, err)

	postmortem, err := GeneratePostmortem(db, plan, execution, release)
	require.NoError(t, err)

	assert.Equal(t, "新版本性能/稳定性回归", postmortem.RootCause)
	assert.Equal(t, "draft", postmortem.Status)

	// 时间线按真实时间戳重建且有序
	require.GreaterOrEqual(t, len(postmortem.Timeline), 4)
	for i := 1; i < len(postmortem.Timeline); i++ {
		assert.False(t, postmortem.Timeline[i].At.Before(postmortem.Timeline[i-1].At))
	}

	// 经验教训与带截止期的行动项
	assert.NotEmpty(t, postmortem.LessonsLearned)
	require.NotEmpty(t, postmortem.ActionItems)
	for _, item := range postmortem.ActionItems {
		assert.False(t, item.DueDate.IsZero())
		assert.True(t, item.DueDate.After(time.Now()))
	}
	// 高优先级行动项的截止期早于低优先级
	assert.True(t, postmortem.ActionItems[0].DueDate.Before(postmortem.ActionItems[len(postmortem.ActionItems)-1].DueDate))

	// MTTD/MTTR由记录的时间戳推算: 发布开始-10min, 故障检出-5min
	assert.Equal(t, int64(300), postmortem.MTTDSeconds)
	assert.GreaterOrEqual(t, postmortem.MTTRSeconds, int64(300))
}

func TestGeneratePostmortemRejectsManualReason(t *testing.T) {
	db := setupDB(t)
	release := failedRelease(t, db, constants.StrategyCanary)
	plan, err := CreatePlan(db, release, constants.RollbackReasonManual)
	require.NoError(t, err)

	execution := &model.RollbackExecution{PlanID: plan.ID, ReleaseID: release.ID}
	_, err = GeneratePostmortem(db, plan, execution, release)
	assert.Error(t, err)
}

func TestReverifyCompletedExecutionIsRepeatable(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	release := failedRelease(t, db, constants.StrategyCanary)
	plan, err := CreatePlan(db, release, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	orchestrator := New(db, bus, NewMockRunner(), &StaticVerifier{})
	execution, err := orchestrator.Execute(context.Background(), plan.ID, "system")
	require.NoError(t, err)
	require.Equal(t, constants.RollbackExecutionCompleted, execution.Status)

	var before model.RollbackExecution
	require.NoError(t, db.First(&before, execution.ID).Error)

	// 成功的回滚重复验证结果不变
	for i := 0; i < 2; i++ {
		checks, passed, err := orchestrator.Reverify(context.Background(), execution.ID)
		require.NoError(t, err)
		assert.True(t, passed)
		assert.Len(t, checks, 5)
	}

	// 重复验证是纯读操作, 不改动执行记录
	var after model.RollbackExecution
	require.NoError(t, db.First(&after, execution.ID).Error)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Verification, after.Verification)
	require.NotNil(t, after.Verified)
	assert.True(t, *after.Verified)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestCreatePlanMigrationRaisesRisk(t *testing.T) {
	db := setupDB(t)

	baseline := failedRelease(t, db, constants.StrategyCanary)
	basePlan, err := CreatePlan(db, baseline, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	// 原发布带高复杂度迁移因子时, 回滚风险上调
	assessment := &model.RiskAssessment{
		Service:           "payment",
		Version:           "v1.1.0",
		Environment:       constants.EnvProduction,
		OverallScore:      6.5,
		RiskLevel:         constants.RiskLevelHigh,
		Confidence:        80,
		SuggestedStrategy: constants.StrategyCanary,
		Factors: datatypes.NewJSONSlice([]model.RiskFactor{
			{Category: "technical", Name: "complex_database_migration", Score: 8, Weight: 0.3},
		}),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(assessment).Error)

	withMigration := failedRelease(t, db, constants.StrategyCanary)
	withMigration.RiskAssessmentID = &assessment.ID
	require.NoError(t, db.Save(withMigration).Error)

	plan, err := CreatePlan(db, withMigration, constants.RollbackReasonHealthCheck)
	require.NoError(t, err)

	assert.InDelta(t, basePlan.RiskScore+1.0, plan.RiskScore, 0.001)
	assert.Greater(t, plan.RiskScore, basePlan.RiskScore)
}
