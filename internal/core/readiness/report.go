package readiness

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"release-orchestrator/internal/model"
	"release-orchestrator/pkg/constants"
)

// CategoryStat 分类统计
type CategoryStat struct {
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// Recommendation 整改建议, 按优先级与预计耗时排序
type Recommendation struct {
	Check          string `json:"check"`
	Priority       string `json:"priority"` // high/medium/low
	Description    string `json:"description"`
	EstimatedTime  int    `json:"estimated_time"` // 分钟
	RemediationURL string `json:"remediation_url,omitempty"`
}

// Report 就绪检查报告
type Report struct {
	RunID            int64                   `json:"run_id"`
	ReportID         string                  `json:"report_id"`
	GeneratedAt      time.Time               `json:"generated_at"`
	Service          string                  `json:"service"`
	Version          string                  `json:"version"`
	Environment      string                  `json:"environment"`
	Overall          string                  `json:"overall_status"`
	Score            float64                 `json:"overall_score"`
	Categories       map[string]CategoryStat `json:"categories"`
	TotalChecks      int                     `json:"total_checks"`
	PassedChecks     int                     `json:"passed_checks"`
	FailedChecks     int                     `json:"failed_checks"`
	Recommendations  []Recommendation        `json:"recommendations"`
	EstimatedFixTime int                     `json:"estimated_fix_time_total"` // 分钟
	NextSteps        []string                `json:"next_steps"`
}

// 报告最多保留的建议数
const maxRecommendations = 10

// GenerateReport 基于一次已持久化的检查生成报告
func GenerateReport(run *model.ReadinessRun) *Report {
	categories := make(map[string]CategoryStat)
	var failed []model.ReadinessCheckRecord
	passed := 0

	for _, check := range run.Checks {
		stat := categories[check.Category]
		stat.Total++
		if check.Status == constants.CheckStatusPassed {
			stat.Passed++
			passed++
		} else {
			stat.Failed++
		}
		categories[check.Category] = stat

		if check.Status == constants.CheckStatusFailed {
			failed = append(failed, check)
		}
	}

	recommendations := make([]Recommendation, 0, len(failed))
	for _, check := range failed {
		if check.FixMinutes <= 0 {
			continue
		}
		recommendations = append(recommendations, Recommendation{
			Check:          check.Name,
			Priority:       priorityFromSeverity(check.Severity),
			Description:    check.Message,
			EstimatedTime:  check.FixMinutes,
			RemediationURL: check.RemediationURL,
		})
	}

	rank := map[string]int{"high": 0, "medium": 1, "low": 2}
	sort.SliceStable(recommendations, func(i, j int) bool {
		if rank[recommendations[i].Priority] != rank[recommendations[j].Priority] {
			return rank[recommendations[i].Priority] < rank[recommendations[j].Priority]
		}
		return recommendations[i].EstimatedTime < recommendations[j].EstimatedTime
	})

	totalFixTime := lo.SumBy(recommendations, func(r Recommendation) int { return r.EstimatedTime })
	if len(recommendations) > maxRecommendations {
		recommendations = recommendations[:maxRecommendations]
	}

	return &Report{
		RunID:            run.ID,
		ReportID:         fmt.Sprintf("report-%d-%s", run.ID, time.Now().Format("20060102150405")),
		GeneratedAt:      time.Now(),
		Service:          run.Service,
		Version:          run.Version,
		Environment:      run.Environment,
		Overall:          run.Overall,
		Score:            run.Score,
		Categories:       categories,
		TotalChecks:      len(run.Checks),
		PassedChecks:     passed,
		FailedChecks:     len(failed),
		Recommendations:  recommendations,
		EstimatedFixTime: totalFixTime,
		NextSteps:        nextSteps(run, failed),
	}
}

// priorityFromSeverity 严重级别 -> 整改优先级
func priorityFromSeverity(severity string) string {
	switch severity {
	case constants.SeverityCritical, constants.SeverityHigh:
		return "high"
	case constants.SeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// nextSteps 按整体结论给出后续动作
func nextSteps(run *model.ReadinessRun, failed []model.ReadinessCheckRecord) []string {
	switch run.Overall {
	case constants.ReadinessStatusReady:
		return []string{
			"所有就绪检查通过, 可以发布",
			"建议发布前做一次冒烟测试",
			"确认发布策略(canary/blue_green等)与评估建议一致",
			"确认监控与告警已配置",
		}
	case constants.ReadinessStatusBlocked:
		steps := []string{"发布被阻断, 先解决以下问题:"}
		blockers := lo.Filter(failed, func(c model.ReadinessCheckRecord, _ int) bool {
			return !c.Waivable
		})
		for i, blocker := range blockers {
			if i >= 5 {
				steps = append(steps, fmt.Sprintf("... 以及另外%d项", len(blockers)-5))
				break
			}
			steps = append(steps, fmt.Sprintf("%s: %s", blocker.Name, blocker.Message))
		}
		return steps
	default:
		return []string{
			"部分就绪检查未通过",
			"修复失败项后重新执行检查",
			"非关键项可按需申请豁免",
			"得分超过80%后再推进发布",
		}
	}
}
