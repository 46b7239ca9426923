package rollback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"release-orchestrator/internal/adapter/health"
	"release-orchestrator/internal/model"
	"release-orchestrator/internal/pkg/config"
)

// 验证项名称, 独立于发布健康检查的固定集合
var verificationChecks = []string{
	"application_health",
	"database_connectivity",
	"performance_metrics",
	"error_rates",
	"user_impact",
}

// SimulatedRunner 模拟步骤执行, 按预计时长等比例等待
type SimulatedRunner struct {
	cfg *config.RollbackConfig
}

func NewSimulatedRunner(cfg *config.RollbackConfig) *SimulatedRunner {
	return &SimulatedRunner{cfg: cfg}
}

func (r *SimulatedRunner) RunStep(ctx context.Context, _ *model.RollbackPlan, step model.RollbackStep) error {
	select {
	case <-time.After(time.Duration(step.EstimatedSeconds) * r.cfg.StepScale()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HealthVerifier 基于健康监控的回滚验证
// 一次探测结论拆解为各验证项, 任一不达标则整体未通过
type HealthVerifier struct {
	monitor health.Monitor
}

func NewHealthVerifier(monitor health.Monitor) *HealthVerifier {
	return &HealthVerifier{monitor: monitor}
}

func (v *HealthVerifier) Verify(ctx context.Context, service, environment, version string) ([]model.VerificationCheck, bool, error) {
	verdict, err := v.monitor.Check(ctx, service, environment, version)
	if err != nil {
		return nil, false, fmt.Errorf("回滚验证探测失败: %w", err)
	}

	checks := []model.VerificationCheck{
		{Name: "application_health", Passed: verdict.EndpointOK},
		{Name: "database_connectivity", Passed: verdict.DependenciesOK},
		{Name: "performance_metrics", Passed: verdict.P95LatencyMs < 500,
			Message: fmt.Sprintf("p95延迟%.0fms", verdict.P95LatencyMs)},
		{Name: "error_rates", Passed: verdict.ErrorRate < 1.0,
			Message: fmt.Sprintf("错误率%.2f%%", verdict.ErrorRate)},
		{Name: "user_impact", Passed: verdict.Healthy},
	}

	allPassed := true
	for _, check := range checks {
		if !check.Passed {
			allPassed = false
		}
	}
	return checks, allPassed, nil
}

// StaticVerifier 固定结论验证器, failing中的检查项判为失败
type StaticVerifier struct {
	Failing []string
	Err     error
}

func (v *StaticVerifier) Verify(_ context.Context, _, _, _ string) ([]model.VerificationCheck, bool, error) {
	if v.Err != nil {
		return nil, false, v.Err
	}

	failing := make(map[string]bool, len(v.Failing))
	for _, name := range v.Failing {
		failing[name] = true
	}

	checks := make([]model.VerificationCheck, 0, len(verificationChecks))
	allPassed := true
	for _, name := range verificationChecks {
		passed := !failing[name]
		if !passed {
			allPassed = false
		}
		check := model.VerificationCheck{Name: name, Passed: passed}
		if !passed {
			check.Message = "验证未通过"
		}
		checks = append(checks, check)
	}
	return checks, allPassed, nil
}

// MockRunner 模拟步骤执行器, 可指定失败步骤
type MockRunner struct {
	mu sync.Mutex

	failAction string // 执行到该action时返回错误
	failErr    error
	ranActions []string
}

func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

// SetFailAction 指定失败步骤
func (m *MockRunner) SetFailAction(action string, err error) *MockRunner {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAction = action
	m.failErr = err
	return m
}

// RanActions 已执行的步骤动作
func (m *MockRunner) RanActions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ranActions...)
}

func (m *MockRunner) RunStep(_ context.Context, _ *model.RollbackPlan, step model.RollbackStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ranActions = append(m.ranActions, step.Action)
	if m.failAction == step.Action {
		return m.failErr
	}
	return nil
}
