package agent

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"release-orchestrator/internal/eventbus"
	"release-orchestrator/internal/pkg/logger"
	"release-orchestrator/pkg/constants"
)

// Agent 事件处理器, 订阅若干主题并处理事件
type Agent interface {
	Name() string
	Subjects() []string
	Handle(ctx context.Context, event eventbus.Event) error
}

// Supervisor 管理agent的订阅生命周期
// 单个事件处理失败或panic只上报error.agent, 不影响后续事件
type Supervisor struct {
	bus     *eventbus.Bus
	agents  []Agent
	cancels []func()

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSupervisor 创建Supervisor
func NewSupervisor(bus *eventbus.Bus, agents ...Agent) *Supervisor {
	return &Supervisor{
		bus:    bus,
		agents: agents,
	}
}

// Start 订阅所有agent声明的主题
func (s *Supervisor) Start() error {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	for _, a := range s.agents {
		for _, subject := range a.Subjects() {
			cancel, err := s.bus.Subscribe(subject, a.Name(), s.wrap(a, subject))
			if err != nil {
				s.Stop()
				return fmt.Errorf("订阅%s失败: %w", subject, err)
			}
			s.cancels = append(s.cancels, cancel)
		}
		logger.Info("agent已启动",
			zap.String("agent", a.Name()),
			zap.Strings("subjects", a.Subjects()))
	}
	return nil
}

// Stop 取消全部订阅
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	for _, cancel := range s.cancels {
		cancel()
	}
	s.cancels = nil
}

// wrap 包装agent处理函数, 隔离panic并上报处理错误
func (s *Supervisor) wrap(a Agent, subject string) eventbus.Handler {
	return func(event eventbus.Event) {
		defer func() {
			if r := recover(); r != nil {
				s.reportError(a, subject, fmt.Sprintf("panic: %v", r))
			}
		}()

		if err := a.Handle(s.ctx, event); err != nil {
			s.reportError(a, subject, err.Error())
		}
	}
}

func (s *Supervisor) reportError(a Agent, subject, message string) {
	logger.Error("agent处理事件失败",
		zap.String("agent", a.Name()),
		zap.String("subject", subject),
		zap.String("error", message))

	_ = s.bus.Publish(constants.SubjectAgentError, eventbus.AgentErrorPayload{
		Agent:   a.Name(),
		Subject: subject,
		Error:   message,
	})
}
