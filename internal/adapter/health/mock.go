package health

import (
	"context"
	"sync"
	"time"
)

// MockMonitor 模拟健康监控
type MockMonitor struct {
	mu sync.Mutex

	// 可控行为
	verdict        Verdict       // 默认结论
	checkError     error         // Check 是否返回错误
	checkDelay     time.Duration // 单次检查延迟
	unhealthyAfter int           // >0 时, 第N次检查开始返回不健康
	unhealthyFrom  Verdict       // unhealthyAfter 触发后的结论
	checkCalled    int           // Check 被调用次数
}

func NewMockMonitor() *MockMonitor {
	return &MockMonitor{
		verdict: HealthyVerdict(),
	}
}

// === 配置方法 ===

func (m *MockMonitor) SetVerdict(verdict Verdict) *MockMonitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verdict = verdict
	return m
}

func (m *MockMonitor) SetCheckError(err error) *MockMonitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkError = err
	return m
}

func (m *MockMonitor) SetCheckDelay(d time.Duration) *MockMonitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkDelay = d
	return m
}

// SetUnhealthyAfter 前n-1次返回健康, 从第n次起返回指定的不健康结论
func (m *MockMonitor) SetUnhealthyAfter(n int, verdict Verdict) *MockMonitor {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unhealthyAfter = n
	m.unhealthyFrom = verdict
	return m
}

// CheckCalled Check 被调用次数
func (m *MockMonitor) CheckCalled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkCalled
}

// === 接口实现 ===

func (m *MockMonitor) Check(ctx context.Context, _, _, _ string) (Verdict, error) {
	m.mu.Lock()
	m.checkCalled++
	called := m.checkCalled
	verdict := m.verdict
	if m.unhealthyAfter > 0 && called >= m.unhealthyAfter {
		verdict = m.unhealthyFrom
	}
	err := m.checkError
	delay := m.checkDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Verdict{}, ctx.Err()
		}
	}

	verdict.CheckedAt = time.Now()
	return verdict, err
}
