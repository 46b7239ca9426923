package readiness

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"release-orchestrator/internal/pkg/config"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/pkg/constants"
)

func TestMain(m *testing.M) {
	_ = logger.Init(&config.LogConfig{Level: "error", Format: "console", Output: "stdout"})
	os.Exit(m.Run())
}

func newAggregator() *Aggregator {
	return New(DefaultPanel(), 5*time.Second)
}

func findCheck(t *testing.T, checks []Check, name string) Check {
	t.Helper()
	for _, c := range checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s not found", name)
	return Check{}
}

func TestRunAllPassed(t *testing.T) {
	result := newAggregator().Run(context.Background(),
		"payment", "v1.0.0", constants.EnvStaging, HealthySignals(), nil)

	require.Len(t, result.Checks, 8)
	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, constants.ReadinessStatusReady, result.Overall)
	assert.Empty(t, result.Blockers)
	assert.False(t, result.Blocked())
}

func TestRunTwoNonWaivableFailures(t *testing.T) {
	signals := HealthySignals()
	signals.P95LatencyMs = 620                   // performance_budget 失败, 不可豁免
	signals.InfraComponents["database"] = false  // infrastructure_health 失败, 不可豁免

	result := newAggregator().Run(context.Background(),
		"payment", "v1.0.0", constants.EnvStaging, signals, nil)

	assert.Equal(t, 75.0, result.Score)
	assert.Equal(t, constants.ReadinessStatusBlocked, result.Overall)
	require.Len(t, result.Blockers, 2)
	assert.True(t, result.Blocked())
}

func TestFailedWaivableCheckIsNotBlocker(t *testing.T) {
	signals := HealthySignals()
	signals.LineCoverage = 70 // test_coverage 失败, 可豁免

	result := newAggregator().Run(context.Background(),
		"payment", "v1.0.0", constants.EnvStaging, signals, nil)

	assert.Equal(t, 87.5, result.Score)
	assert.Equal(t, constants.ReadinessStatusReady, result.Overall)
	assert.Empty(t, result.Blockers)

	coverage := findCheck(t, result.Checks, constants.CheckTestCoverage)
	assert.Equal(t, constants.CheckStatusFailed, coverage.Status)
}

func TestWaiverRemovesBlockerButKeepsCheck(t *testing.T) {
	signals := HealthySignals()
	signals.P95LatencyMs = 620
	signals.InfraComponents["database"] = false

	waivers := map[string]int64{constants.CheckInfrastructure: 42}
	result := newAggregator().Run(context.Background(),
		"payment", "v1.0.0", constants.EnvStaging, signals, waivers)

	// 豁免只移出阻断列表, 检查项仍然上报
	require.Len(t, result.Blockers, 1)
	assert.Equal(t, constants.CheckPerformance, result.Blockers[0].Name)

	infra := findCheck(t, result.Checks, constants.CheckInfrastructure)
	assert.Equal(t, constants.CheckStatusWaived, infra.Status)
	require.NotNil(t, infra.WaiverID)
	assert.Equal(t, int64(42), *infra.WaiverID)

	// waived不计入通过
	assert.Equal(t, 75.0, result.Score)
	assert.Equal(t, constants.ReadinessStatusBlocked, result.Overall)
}

type panicChecker struct{}

func (panicChecker) Name() string { return "exploding_check" }

func (panicChecker) Run(context.Context, Signals) (Check, error) {
	panic("signal source unavailable")
}

func TestCheckPanicIsolated(t *testing.T) {
	panel := append(DefaultPanel(), panicChecker{})
	agg := New(panel, 5*time.Second)

	result := agg.Run(context.Background(),
		"payment", "v1.0.0", constants.EnvStaging, HealthySignals(), nil)

	require.Len(t, result.Checks, 9)

	synthetic := findCheck(t, result.Checks, "exploding_check")
	assert.Equal(t, constants.CheckStatusFailed, synthetic.Status)
	assert.Equal(t, constants.CheckCategorySystem, synthetic.Category)
	assert.Equal(t, constants.SeverityHigh, synthetic.Severity)
	assert.True(t, synthetic.Waivable)

	// 其余检查不受影响
	for _, c := range result.Checks {
		if c.Name != "exploding_check" {
			assert.Equal(t, constants.CheckStatusPassed, c.Status)
		}
	}
	assert.Empty(t, result.Blockers)
}
