package agent

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"release-orchestrator/internal/core/rollback"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/internal/repository"
	"release-orchestrator/pkg/constants"
)

func TestMain(m *testing.M) {
	_ = logger.Init(&config.LogConfig{Level: "error", Format: "console", Output: "stdout"})
	os.Exit(m.Run())
}

// flakyAgent 第一条事件panic, 第二条事件返回错误, 之后正常
type flakyAgent struct {
	mu    sync.Mutex
	calls int
}

func (a *flakyAgent) Name() string       { return "flaky-agent" }
func (a *flakyAgent) Subjects() []string { return []string{"test.subject"} }

func (a *flakyAgent) Handle(_ context.Context, _ eventbus.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	switch a.calls {
	case 1:
		panic("处理崩溃")
	case 2:
		return errors.New("处理失败")
	}
	return nil
}

func (a *flakyAgent) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func TestSupervisorIsolatesPanicAndError(t *testing.T) {
	bus := eventbus.New()
	defer bus.Close()

	var mu sync.Mutex
	var reported []eventbus.AgentErrorPayload
	_, err := bus.Subscribe(constants.SubjectAgentError, "test", func(event eventbus.Event) {
		mu.Lock()
		defer mu.Unlock()
		reported = append(reported, event.Data.(eventbus.AgentErrorPayload))
	})
	require.NoError(t, err)

	agent := &flakyAgent{}
	supervisor := NewSupervisor(bus, agent)
	require.NoError(t, supervisor.Start())
	defer supervisor.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, bus.Publish("test.subject", i))
	}

	// 三条事件全部被处理, panic与错误都不会中断订阅
	assert.Eventually(t, func() bool {
		return agent.Calls() == 3
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "flaky-agent", reported[0].Agent)
	assert.Contains(t, reported[0].Error, "panic")
	assert.Contains(t, reported[1].Error, "处理失败")
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Release{}, &model.ReleasePhase{},
		&model.RollbackPlan{}, &model.RollbackExecution{}, &model.Postmortem{}))
	return db
}

func TestRollbackAgentChain(t *testing.T) {
	db := setupDB(t)
	bus := eventbus.New()
	defer bus.Close()

	prev := "v1.0.0"
	now := time.Now()
	reason := "阶段monitor_5_percent失败: 健康检查未通过: [错误率3.10%超过阈值1%]"
	release := &model.Release{
		ReleaseNumber:     "REL-20250104-007",
		Service:           "payment",
		Environment:       constants.EnvProduction,
		Strategy:          constants.StrategyCanary,
		PreviousVersion:   &prev,
		TargetVersion:     "v1.1.0",
		Status:            constants.ReleaseStatusFailed,
		CandidateTraffic:  5,
		RollbackAvailable: true,
		FinishedAt:        &now,
		FailureReason:     &reason,
	}
	require.NoError(t, db.Create(release).Error)

	orchestrator := rollback.New(db, bus, rollback.NewMockRunner(), &rollback.StaticVerifier{})
	rollbackAgent := NewRollbackAgent(db, bus, orchestrator,
		repository.NewReleaseRepository(db), repository.NewRollbackRepository(db))

	supervisor := NewSupervisor(bus, rollbackAgent)
	require.NoError(t, supervisor.Start())
	defer supervisor.Stop()

	// 故障回滚事件 -> 计划 -> 自动执行 -> 复盘, 全链路只经过事件总线
	require.NoError(t, bus.Publish(constants.SubjectReleaseRollback, eventbus.ReleaseRollbackPayload{
		ReleaseID:   release.ID,
		Service:     release.Service,
		Environment: release.Environment,
		FromVersion: release.TargetVersion,
		ToVersion:   prev,
		Reason:      constants.RollbackReasonHealthCheck,
		TriggeredBy: "system",
	}))

	var postmortem model.Postmortem
	assert.Eventually(t, func() bool {
		return db.Where("release_id = ?", release.ID).First(&postmortem).Error == nil
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, "payment", postmortem.Service)
	assert.Equal(t, "新版本性能/稳定性回归", postmortem.RootCause)

	var got model.Release
	require.NoError(t, db.First(&got, release.ID).Error)
	assert.Equal(t, constants.ReleaseStatusRolledBack, got.Status)
	assert.Equal(t, 0, got.CandidateTraffic)

	var execution model.RollbackExecution
	require.NoError(t, db.Where("release_id = ?", release.ID).First(&execution).Error)
	assert.Equal(t, constants.RollbackExecutionCompleted, execution.Status)
	assert.Equal(t, "system", execution.TriggeredBy)
}
