package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Verdict 健康结论, 四项全部满足才算健康:
// 健康端点2xx、依赖连通、错误率<1%、p95延迟<500ms
type Verdict struct {
	Healthy        bool      `json:"healthy"`
	EndpointOK     bool      `json:"endpoint_ok"`
	DependenciesOK bool      `json:"dependencies_ok"`
	ErrorRate      float64   `json:"error_rate"`      // 百分比
	P95LatencyMs   float64   `json:"p95_latency_ms"`
	Reasons        []string  `json:"reasons,omitempty"` // 不健康原因
	CheckedAt      time.Time `json:"checked_at"`
}

// Monitor 健康监控契约
type Monitor interface {
	Check(ctx context.Context, service, environment, version string) (Verdict, error)
}

const (
	errorRateThreshold  = 1.0
	p95LatencyThreshold = 500.0
)

// Metrics 指标快照, 由监控系统提供
type Metrics struct {
	DependenciesOK bool
	ErrorRate      float64
	P95LatencyMs   float64
}

// MetricsSource 指标来源
type MetricsSource interface {
	Fetch(ctx context.Context, service, environment string) (Metrics, error)
}

// HTTPMonitor 组合探测: HTTP健康端点 + 监控指标
type HTTPMonitor struct {
	client      *http.Client
	endpointFmt string // 形如 http://%s.%s.svc/healthz
	metrics     MetricsSource
}

// NewHTTPMonitor 创建HTTP健康监控
func NewHTTPMonitor(endpointFmt string, metrics MetricsSource) *HTTPMonitor {
	return &HTTPMonitor{
		client:      &http.Client{Timeout: 5 * time.Second},
		endpointFmt: endpointFmt,
		metrics:     metrics,
	}
}

// Check 执行一次健康检查
func (m *HTTPMonitor) Check(ctx context.Context, service, environment, _ string) (Verdict, error) {
	verdict := Verdict{CheckedAt: time.Now()}

	endpoint := fmt.Sprintf(m.endpointFmt, service, environment)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return verdict, fmt.Errorf("构造健康探测请求失败: %w", err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("健康端点不可达: %v", err))
	} else {
		_ = resp.Body.Close()
		verdict.EndpointOK = resp.StatusCode >= 200 && resp.StatusCode < 300
		if !verdict.EndpointOK {
			verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("健康端点返回%d", resp.StatusCode))
		}
	}

	metrics, err := m.metrics.Fetch(ctx, service, environment)
	if err != nil {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("指标获取失败: %v", err))
		return verdict, nil
	}

	verdict.DependenciesOK = metrics.DependenciesOK
	verdict.ErrorRate = metrics.ErrorRate
	verdict.P95LatencyMs = metrics.P95LatencyMs

	if !metrics.DependenciesOK {
		verdict.Reasons = append(verdict.Reasons, "依赖连通性异常")
	}
	if metrics.ErrorRate >= errorRateThreshold {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("错误率%.2f%%超过阈值%.0f%%", metrics.ErrorRate, errorRateThreshold))
	}
	if metrics.P95LatencyMs >= p95LatencyThreshold {
		verdict.Reasons = append(verdict.Reasons, fmt.Sprintf("p95延迟%.0fms超过阈值%.0fms", metrics.P95LatencyMs, p95LatencyThreshold))
	}

	verdict.Healthy = len(verdict.Reasons) == 0
	return verdict, nil
}

// HTTPMetricsSource 从监控系统HTTP接口拉取指标快照
type HTTPMetricsSource struct {
	client *http.Client
	urlFmt string // 形如 http://metrics.internal/api/v1/%s/%s/summary
}

// NewHTTPMetricsSource 创建HTTP指标来源
func NewHTTPMetricsSource(urlFmt string) *HTTPMetricsSource {
	return &HTTPMetricsSource{
		client: &http.Client{Timeout: 5 * time.Second},
		urlFmt: urlFmt,
	}
}

// Fetch 拉取一次指标
func (s *HTTPMetricsSource) Fetch(ctx context.Context, service, environment string) (Metrics, error) {
	url := fmt.Sprintf(s.urlFmt, service, environment)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Metrics{}, fmt.Errorf("构造指标请求失败: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Metrics{}, fmt.Errorf("拉取指标失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Metrics{}, fmt.Errorf("指标接口返回%d", resp.StatusCode)
	}

	var payload struct {
		DependenciesOK bool    `json:"dependencies_ok"`
		ErrorRate      float64 `json:"error_rate"`
		P95LatencyMs   float64 `json:"p95_latency_ms"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Metrics{}, fmt.Errorf("解析指标响应失败: %w", err)
	}

	return Metrics{
		DependenciesOK: payload.DependenciesOK,
		ErrorRate:      payload.ErrorRate,
		P95LatencyMs:   payload.P95LatencyMs,
	}, nil
}

// StaticMetrics 固定指标来源, 用于联调
type StaticMetrics struct {
	Metrics Metrics
	Err     error
}

func (s *StaticMetrics) Fetch(_ context.Context, _, _ string) (Metrics, error) {
	return s.Metrics, s.Err
}

// StaticMonitor 固定结论监控, 用于联调
type StaticMonitor struct {
	Verdict Verdict
	Err     error
}

func (m *StaticMonitor) Check(_ context.Context, _, _, _ string) (Verdict, error) {
	verdict := m.Verdict
	verdict.CheckedAt = time.Now()
	return verdict, m.Err
}

// HealthyVerdict 全部达标的结论
func HealthyVerdict() Verdict {
	return Verdict{
		Healthy:        true,
		EndpointOK:     true,
		DependenciesOK: true,
		ErrorRate:      0.05,
		P95LatencyMs:   234,
	}
}

// UnhealthyVerdict 指定原因的不健康结论
func UnhealthyVerdict(reasons ...string) Verdict {
	return Verdict{
		Healthy:        false,
		EndpointOK:     true,
		DependenciesOK: true,
		ErrorRate:      2.4,
		P95LatencyMs:   870,
		Reasons:        reasons,
	}
}
