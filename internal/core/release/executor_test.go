package release

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"release-orchestrator/internal/adapter/health"
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
	require.NoError(t, db.AutoMigrate(&model.Release{}, &model.ReleasePhase{}))
	return db
}

func fastConfig() *config.ReleaseConfig {
	return &config.ReleaseConfig{
		PollInterval:     "10ms",
		MinuteDuration:   "20ms",
		RollingInstances: 2,
	}
}

func createRelease(t *testing.T, db *gorm.DB, strategy string) *model.Release {
	t.Helper()
	prev := "v1.0.0"
	release := &model.Release{
		ReleaseNumber:     "REL-20250104-001",
		Service:           "payment",
		Environment:       constants.EnvProduction,
		Strategy:          strategy,
		PreviousVersion:   &prev,
		TargetVersion:     "v1.1.0",
		Status:            constants.ReleaseStatusPending,
		RollbackAvailable: true,
		Initiator:         "zhangsan",
	}
	require.NoError(t, db.Create(release).Error)

	templates, err := LoadTemplates(2, "")
	require.NoError(t, err)
	phases, err := templates.Phases(strategy, release.ID)
	require.NoError(t, err)
	require.NoError(t, db.Create(&phases).Error)
	return release
}

func loadPhases(t *testing.T, db *gorm.DB, releaseID int64) []model.ReleasePhase {
	t.Helper()
	var phases []model.ReleasePhase
	require.NoError(t, db.Where("release_id = ?", releaseID).Order("seq ASC").Find(&phases).Error)
	return phases
}

func reload(t *testing.T, db *gorm.DB, releaseID int64) *model.Release {
	t.Helper()
	var release model.Release
	require.NoError(t, db.First(&release, releaseID).Error)
	return &release
}

func TestCanaryTemplate(t *testing.T) {
	templates, err := LoadTemplates(4, "")
	require.NoError(t, err)

	phases, err := templates.Phases(constants.StrategyCanary, 1)
	require.NoError(t, err)
	require.Len(t, phases, 7)

	// 流量比例严格递增: 1 → 5 → 25 → 100
	expanding := []int{phases[0].TrafficPercent, phases[2].TrafficPercent,
		phases[4].TrafficPercent, phases[6].TrafficPercent}
	assert.Equal(t, []int{1, 5, 25, 100}, expanding)

	assert.Equal(t, constants.PhaseKindMonitor, phases[1].Kind)
	assert.Equal(t, 10, phases[1].DurationMinutes)
	assert.Equal(t, 15, phases[3].DurationMinutes)
	assert.Equal(t, 20, phases[5].DurationMinutes)
}

func TestRollingTemplateUsesInstanceCount(t *testing.T) {
	templates, err := LoadTemplates(3, "")
	require.NoError(t, err)

	phases, err := templates.Phases(constants.StrategyRolling, 1)
	require.NoError(t, err)
	require.Len(t, phases, 3)
	assert.Equal(t, "update_instance_1", phases[0].Name)
	assert.Equal(t, 100, phases[2].TrafficPercent)
}

func TestTemplateUnknownStrategy(t *testing.T) {
	templates, err := LoadTemplates(4, "")
	require.NoError(t, err)

	_, err = templates.Phases("big_bang", 1)
	assert.Error(t, err)
}

func TestDirectReleaseCompletes(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	release := createRelease(t, db, constants.StrategyDirect)
	executor := NewExecutor(db, bus, health.NewMockMonitor(), fastConfig(), release.ID)
	executor.Run(context.Background())

	got := reload(t, db, release.ID)
	assert.Equal(t, constants.ReleaseStatusCompleted, got.Status)
	assert.Equal(t, 100, got.CandidateTraffic)
	require.NotNil(t, got.FinishedAt)

	for _, phase := range loadPhases(t, db, release.ID) {
		assert.Equal(t, constants.PhaseStatusCompleted, phase.Status)
	}
}

func TestUnhealthyMonitorFailsReleaseAndRequestsRollback(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	var mu sync.Mutex
	var rollbacks []eventbus.ReleaseRollbackPayload
	_, err := bus.Subscribe(constants.SubjectReleaseRollback, "test", func(event eventbus.Event) {
		mu.Lock()
		defer mu.Unlock()
		rollbacks = append(rollbacks, event.Data.(eventbus.ReleaseRollbackPayload))
	})
	require.NoError(t, err)

	release := createRelease(t, db, constants.StrategyCanary)

	// 部署阶段通过, 进入monitor_1_percent后第3次检查开始不健康
	monitor := health.NewMockMonitor().
		SetUnhealthyAfter(3, health.UnhealthyVerdict("错误率2.40%超过阈值1%"))

	executor := NewExecutor(db, bus, monitor, fastConfig(), release.ID)
	executor.Run(context.Background())

	got := reload(t, db, release.ID)
	assert.Equal(t, constants.ReleaseStatusFailed, got.Status)
	require.NotNil(t, got.FailureReason)

	phases := loadPhases(t, db, release.ID)
	assert.Equal(t, constants.PhaseStatusCompleted, phases[0].Status)
	assert.Equal(t, constants.PhaseStatusFailed, phases[1].Status)
	// 剩余阶段被放弃, 永不执行
	for _, phase := range phases[2:] {
		assert.Equal(t, constants.PhaseStatusPending, phase.Status)
	}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(rollbacks) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	payload := rollbacks[0]
	mu.Unlock()
	assert.Equal(t, release.ID, payload.ReleaseID)
	assert.Equal(t, constants.RollbackReasonHealthCheck, payload.Reason)
	assert.Equal(t, "v1.1.0", payload.FromVersion)
	assert.Equal(t, "v1.0.0", payload.ToVersion)
	assert.Equal(t, "system", payload.TriggeredBy)
}

func TestPauseFreezesAdvancement(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	release := createRelease(t, db, constants.StrategyCanary)
	executor := NewExecutor(db, bus, health.NewMockMonitor(), fastConfig(), release.ID)

	done := make(chan struct{})
	go func() {
		executor.Run(context.Background())
		close(done)
	}()

	// 等进入监控阶段后暂停
	assert.Eventually(t, func() bool {
		return reload(t, db, release.ID).CurrentPhaseIndex >= 1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, executor.Send(Command{Kind: CommandPause, Operator: "lisi"}))

	assert.Eventually(t, func() bool {
		return reload(t, db, release.ID).Status == constants.ReleaseStatusPaused
	}, 5*time.Second, 10*time.Millisecond)

	// 暂停期间不推进
	idx := reload(t, db, release.ID).CurrentPhaseIndex
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, idx, reload(t, db, release.ID).CurrentPhaseIndex)
	assert.Equal(t, constants.ReleaseStatusPaused, reload(t, db, release.ID).Status)

	// 恢复后继续执行到完成
	require.NoError(t, executor.Send(Command{Kind: CommandResume, Operator: "lisi"}))
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		t.Fatal("发布未在预期时间内完成")
	}
	assert.Equal(t, constants.ReleaseStatusCompleted, reload(t, db, release.ID).Status)
}

func TestPromoteSkipsRemainingMonitors(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	release := createRelease(t, db, constants.StrategyCanary)
	executor := NewExecutor(db, bus, health.NewMockMonitor(), fastConfig(), release.ID)

	done := make(chan struct{})
	go func() {
		executor.Run(context.Background())
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return reload(t, db, release.ID).CurrentPhaseIndex >= 1
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, executor.Send(Command{Kind: CommandPromote, Operator: "lisi"}))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("promote后发布未完成")
	}

	got := reload(t, db, release.ID)
	assert.Equal(t, constants.ReleaseStatusCompleted, got.Status)
	assert.Equal(t, 100, got.CandidateTraffic)

	phases := loadPhases(t, db, release.ID)
	// 被跳过的扩量/监控阶段标记为skipped, full_deployment正常执行
	skipped := 0
	for _, phase := range phases {
		if phase.Status == constants.PhaseStatusSkipped {
			skipped++
		}
	}
	assert.Greater(t, skipped, 0)
	assert.Equal(t, constants.PhaseStatusCompleted, phases[len(phases)-1].Status)
}

func TestExecutorSkipsTerminalRelease(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	release := createRelease(t, db, constants.StrategyDirect)
	require.NoError(t, db.Model(release).Update("status", constants.ReleaseStatusCompleted).Error)

	monitor := health.NewMockMonitor()
	executor := NewExecutor(db, bus, monitor, fastConfig(), release.ID)
	executor.Run(context.Background())

	assert.Equal(t, 0, monitor.CheckCalled())
}
