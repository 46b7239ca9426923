package agent

import (
	"context"
	"fmt"

	"release-orchestrator/internal/core"
	"release-orchestrator/internal/core/release"
	"release-orchestrator/internal/dto"
	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/service"
	"release-orchestrator/pkg/constants"
)

// ReleaseAgent 处理发布单相关事件
// 创建请求落库生成发布单, 控制命令转投递给执行引擎
type ReleaseAgent struct {
	engine         *core.Engine
	releaseService service.ReleaseService
}

// NewReleaseAgent 创建发布agent
func NewReleaseAgent(engine *core.Engine, releaseService service.ReleaseService) *ReleaseAgent {
	return &ReleaseAgent{
		engine:         engine,
		releaseService: releaseService,
	}
}

func (a *ReleaseAgent) Name() string {
	return "release-agent"
}

func (a *ReleaseAgent) Subjects() []string {
	return []string{
		constants.SubjectReleaseCreate,
		constants.SubjectReleasePause,
		constants.SubjectReleaseResume,
		constants.SubjectReleasePromote,
	}
}

func (a *ReleaseAgent) Handle(_ context.Context, event eventbus.Event) error {
	switch event.Subject {
	case constants.SubjectReleaseCreate:
		payload, ok := event.Data.(eventbus.ReleaseCreatePayload)
		if !ok {
			return fmt.Errorf("release.create载荷类型错误: %T", event.Data)
		}
		_, err := a.releaseService.Create(&dto.ReleaseCreateRequest{
			Service:       payload.Service,
			Environment:   payload.Environment,
			TargetVersion: payload.Version,
			Strategy:      payload.Strategy,
		}, payload.Initiator)
		return err

	case constants.SubjectReleasePause:
		return a.sendCommand(event, release.CommandPause)
	case constants.SubjectReleaseResume:
		return a.sendCommand(event, release.CommandResume)
	case constants.SubjectReleasePromote:
		return a.sendCommand(event, release.CommandPromote)
	}
	return nil
}

func (a *ReleaseAgent) sendCommand(event eventbus.Event, kind string) error {
	payload, ok := event.Data.(eventbus.ReleaseCommandPayload)
	if !ok {
		return fmt.Errorf("%s载荷类型错误: %T", event.Subject, event.Data)
	}
	return a.engine.SendCommand(payload.ReleaseID, release.Command{
		Kind:     kind,
		Operator: payload.Operator,
	})
}
