package release

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"release-orchestrator/internal/model"
	"release-orchestrator/pkg/constants"
)

// PhaseTemplate 阶段模板
type PhaseTemplate struct {
	Name            string `yaml:"name"`
	Kind            string `yaml:"kind"` // deploy/monitor
	TrafficPercent  int    `yaml:"traffic_percent"`
	DurationMinutes int    `yaml:"duration_minutes"`
}

// builtinTemplates 内置策略模板
func builtinTemplates(rollingInstances int) map[string][]PhaseTemplate {
	rolling := make([]PhaseTemplate, 0, rollingInstances)
	for i := 1; i <= rollingInstances; i++ {
		rolling = append(rolling, PhaseTemplate{
			Name:           fmt.Sprintf("update_instance_%d", i),
			Kind:           constants.PhaseKindDeploy,
			TrafficPercent: i * 100 / rollingInstances,
		})
	}

	return map[string][]PhaseTemplate{
		constants.StrategyCanary: {
			{Name: "deploy_canary", Kind: constants.PhaseKindDeploy, TrafficPercent: 1},
			{Name: "monitor_1_percent", Kind: constants.PhaseKindMonitor, TrafficPercent: 1, DurationMinutes: 10},
			{Name: "expand_to_5_percent", Kind: constants.PhaseKindDeploy, TrafficPercent: 5},
			{Name: "monitor_5_percent", Kind: constants.PhaseKindMonitor, TrafficPercent: 5, DurationMinutes: 15},
			{Name: "expand_to_25_percent", Kind: constants.PhaseKindDeploy, TrafficPercent: 25},
			{Name: "monitor_25_percent", Kind: constants.PhaseKindMonitor, TrafficPercent: 25, DurationMinutes: 20},
			{Name: "full_deployment", Kind: constants.PhaseKindDeploy, TrafficPercent: 100},
		},
		constants.StrategyBlueGreen: {
			{Name: "deploy_green", Kind: constants.PhaseKindDeploy, TrafficPercent: 0},
			{Name: "health_check", Kind: constants.PhaseKindMonitor, TrafficPercent: 0},
			{Name: "traffic_switch", Kind: constants.PhaseKindDeploy, TrafficPercent: 100},
			{Name: "monitor", Kind: constants.PhaseKindMonitor, TrafficPercent: 100, DurationMinutes: 5},
			{Name: "cleanup", Kind: constants.PhaseKindDeploy, TrafficPercent: 100},
		},
		constants.StrategyRolling: rolling,
		constants.StrategyDirect: {
			{Name: "deploy", Kind: constants.PhaseKindDeploy, TrafficPercent: 100},
			{Name: "health_check", Kind: constants.PhaseKindMonitor, TrafficPercent: 100},
		},
	}
}

// Templates 策略 -> 阶段模板
type Templates struct {
	templates map[string][]PhaseTemplate
}

// LoadTemplates 加载阶段模板, strategyFile非空时用YAML覆盖同名策略
func LoadTemplates(rollingInstances int, strategyFile string) (*Templates, error) {
	templates := builtinTemplates(rollingInstances)

	if strategyFile != "" {
		data, err := os.ReadFile(strategyFile)
		if err != nil {
			return nil, fmt.Errorf("读取策略模板文件失败: %w", err)
		}

		var overrides map[string][]PhaseTemplate
		if err := yaml.Unmarshal(data, &overrides); err != nil {
			return nil, fmt.Errorf("解析策略模板文件失败: %w", err)
		}

		for strategy, phases := range overrides {
			if !constants.ValidStrategy(strategy) {
				return nil, fmt.Errorf("策略模板文件包含未知策略: %s", strategy)
			}
			if len(phases) == 0 {
				return nil, fmt.Errorf("策略%s的阶段模板为空", strategy)
			}
			templates[strategy] = phases
		}
	}

	return &Templates{templates: templates}, nil
}

// Phases 按策略展开阶段记录
func (t *Templates) Phases(strategy string, releaseID int64) ([]model.ReleasePhase, error) {
	templates, ok := t.templates[strategy]
	if !ok {
		return nil, fmt.Errorf("未知的发布策略: %s", strategy)
	}

	phases := make([]model.ReleasePhase, 0, len(templates))
	for i, tpl := range templates {
		phases = append(phases, model.ReleasePhase{
			ReleaseID:       releaseID,
			Seq:             i,
			Name:            tpl.Name,
			Kind:            tpl.Kind,
			TrafficPercent:  tpl.TrafficPercent,
			DurationMinutes: tpl.DurationMinutes,
			Status:          constants.PhaseStatusPending,
		})
	}
	return phases, nil
}

// EstimatedMinutes 模板预计总时长
func (t *Templates) EstimatedMinutes(strategy string) int {
	total := 0
	for _, tpl := range t.templates[strategy] {
		total += tpl.DurationMinutes
	}
	return total
}
