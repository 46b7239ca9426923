package eventbus

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"release-orchestrator/internal/pkg/logger"
)

// Event 总线事件
type Event struct {
	Subject string      `json:"subject"`
	Data    interface{} `json:"data"`
	At      time.Time   `json:"at"`
}

// Handler 事件处理函数
type Handler func(event Event)

// subscription 单个订阅, 独立goroutine顺序消费, 保证同一订阅内FIFO
type subscription struct {
	subject string
	name    string
	handler Handler

	mu     sync.Mutex
	ch     chan Event
	closed bool
}

// send 投递事件; channel写满时阻塞, 对发布方形成背压
func (s *subscription) send(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ch <- event
}

// stop 关闭消费channel, 已入队事件仍会被处理
func (s *subscription) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// dispatch 调用handler, 隔离panic避免拖垮消费goroutine
func (s *subscription) dispatch(event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("事件处理panic",
				zap.String("subject", s.subject),
				zap.String("subscriber", s.name),
				zap.Any("panic", r))
		}
	}()
	s.handler(event)
}

// Bus 进程内事件总线
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]*subscription
	closed bool
	wg     sync.WaitGroup

	bufferSize int
}

// New 创建事件总线
func New() *Bus {
	return &Bus{
		subs:       make(map[string][]*subscription),
		bufferSize: 64,
	}
}

// Subscribe 订阅主题, name用于日志定位, 返回取消函数
func (b *Bus) Subscribe(subject, name string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("事件总线已关闭, 无法订阅: %s", subject)
	}

	sub := &subscription{
		subject: subject,
		name:    name,
		ch:      make(chan Event, b.bufferSize),
		handler: handler,
	}
	b.subs[subject] = append(b.subs[subject], sub)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for event := range sub.ch {
			sub.dispatch(event)
		}
	}()

	return func() { b.unsubscribe(sub) }, nil
}

// unsubscribe 取消订阅
func (b *Bus) unsubscribe(target *subscription) {
	b.mu.Lock()
	subs := b.subs[target.subject]
	for i, sub := range subs {
		if sub == target {
			b.subs[target.subject] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.mu.Unlock()

	target.stop()
}

// Publish 发布事件, 同一主题按订阅顺序投递
func (b *Bus) Publish(subject string, data interface{}) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return fmt.Errorf("事件总线已关闭, 无法发布: %s", subject)
	}
	subs := make([]*subscription, len(b.subs[subject]))
	copy(subs, b.subs[subject])
	b.mu.RUnlock()

	event := Event{
		Subject: subject,
		Data:    data,
		At:      time.Now(),
	}

	if len(subs) == 0 {
		logger.Debug("事件无订阅者", zap.String("subject", subject))
		return nil
	}

	for _, sub := range subs {
		sub.send(event)
	}
	return nil
}

// Close 关闭总线, 等待所有在途事件处理完成
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	all := make([]*subscription, 0)
	for _, subs := range b.subs {
		all = append(all, subs...)
	}
	b.subs = make(map[string][]*subscription)
	b.mu.Unlock()

	for _, sub := range all {
		sub.stop()
	}
	b.wg.Wait()
}
