package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"release-orchestrator/internal/model"
)

// NotificationType 通知类型
type NotificationType string

const (
	NotifyReleaseStart     NotificationType = "release_start"     // 发布开始
	NotifyReleaseComplete  NotificationType = "release_complete"  // 发布完成
	NotifyReleaseFailed    NotificationType = "release_failed"    // 发布失败
	NotifyReleasePaused    NotificationType = "release_paused"    // 发布暂停
	NotifyRollbackStart    NotificationType = "rollback_start"    // 回滚开始
	NotifyRollbackComplete NotificationType = "rollback_complete" // 回滚完成
	NotifyRollbackFailed   NotificationType = "rollback_failed"   // 回滚失败
)

// NotificationMessage 通知消息
type NotificationMessage struct {
	Type      NotificationType       `json:"type"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Timestamp time.Time              `json:"timestamp"`
	Extra     map[string]interface{} `json:"extra,omitempty"` // 额外信息
}

// Notifier 通知器接口
type Notifier interface {
	// Send 发送通知
	Send(ctx context.Context, msg *NotificationMessage) error

	// SendReleaseNotification 发送发布单通知
	SendReleaseNotification(ctx context.Context, release *model.Release, notifyType NotificationType, message string) error

	// SendRollbackNotification 发送回滚通知
	SendRollbackNotification(ctx context.Context, execution *model.RollbackExecution, notifyType NotificationType, message string) error
}

// ============= Lark 通知适配器 =============

// LarkNotifier Lark通知器
type LarkNotifier struct {
	webhookURL string
	enabled    bool
	logger     *zap.Logger
	client     *http.Client
}

// NewLarkNotifier 创建Lark通知器
func NewLarkNotifier(webhookURL string, enabled bool, logger *zap.Logger) *LarkNotifier {
	return &LarkNotifier{
		webhookURL: webhookURL,
		enabled:    enabled,
		logger:     logger,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send 发送通知
func (n *LarkNotifier) Send(ctx context.Context, msg *NotificationMessage) error {
	if !n.enabled {
		n.logger.Debug("通知已禁用,跳过发送")
		return nil
	}

	if n.webhookURL == "" {
		n.logger.Warn("Lark Webhook URL未配置")
		return nil
	}

	// 构建Lark消息格式
	larkMsg := n.buildLarkMessage(msg)

	// 发送HTTP请求
	jsonData, err := json.Marshal(larkMsg)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", n.webhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Lark API返回错误状态码: %d", resp.StatusCode)
	}

	n.logger.Info("Lark通知发送成功",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title))

	return nil
}

// SendReleaseNotification 发送发布单通知
func (n *LarkNotifier) SendReleaseNotification(ctx context.Context, release *model.Release, notifyType NotificationType, message string) error {
	var title string
	var color string

	switch notifyType {
	case NotifyReleaseStart:
		title = "🚀 发布开始"
		color = "blue"
	case NotifyReleaseComplete:
		title = "✅ 发布完成"
		color = "green"
	case NotifyReleaseFailed:
		title = "❌ 发布失败"
		color = "red"
	case NotifyReleasePaused:
		title = "⏸️ 发布暂停"
		color = "orange"
	default:
		title = "📢 发布通知"
		color = "grey"
	}

	content := fmt.Sprintf("**发布单号**: %s\n**服务**: %s\n**目标版本**: %s\n**策略**: %s\n**发起人**: %s\n**消息**: %s",
		release.ReleaseNumber, release.Service, release.TargetVersion,
		release.Strategy, release.Initiator, message)

	msg := &NotificationMessage{
		Type:      notifyType,
		Title:     title,
		Content:   content,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"release_id":     release.ID,
			"release_number": release.ReleaseNumber,
			"service":        release.Service,
			"color":          color,
		},
	}

	return n.Send(ctx, msg)
}

// SendRollbackNotification 发送回滚通知
func (n *LarkNotifier) SendRollbackNotification(ctx context.Context, execution *model.RollbackExecution, notifyType NotificationType, message string) error {
	var title string
	var color string

	switch notifyType {
	case NotifyRollbackStart:
		title = "🔄 回滚开始"
		color = "orange"
	case NotifyRollbackComplete:
		title = "✅ 回滚完成"
		color = "green"
	case NotifyRollbackFailed:
		title = "🚨 回滚失败, 需人工介入"
		color = "red"
	default:
		title = "📢 回滚通知"
		color = "grey"
	}

	content := fmt.Sprintf("**服务**: %s\n**环境**: %s\n**版本**: %s → %s\n**原因**: %s\n**消息**: %s",
		execution.Service, execution.Environment,
		execution.FromVersion, execution.ToVersion, execution.Reason, message)

	msg := &NotificationMessage{
		Type:      notifyType,
		Title:     title,
		Content:   content,
		Timestamp: time.Now(),
		Extra: map[string]interface{}{
			"execution_id": execution.ID,
			"release_id":   execution.ReleaseID,
			"service":      execution.Service,
			"color":        color,
		},
	}

	return n.Send(ctx, msg)
}

// buildLarkMessage 构建Lark消息格式
func (n *LarkNotifier) buildLarkMessage(msg *NotificationMessage) map[string]interface{} {
	color := "grey"
	if c, ok := msg.Extra["color"].(string); ok {
		color = c
	}

	// Lark富文本消息格式
	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": msg.Title,
				},
				"template": color,
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"tag":     "lark_md",
						"content": msg.Content,
					},
				},
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"tag":     "plain_text",
						"content": fmt.Sprintf("时间: %s", msg.Timestamp.Format("2006-01-02 15:04:05")),
					},
				},
			},
		},
	}
}

// ============= 多通知器 =============

// MultiNotifier 多通知器(支持同时发送到多个渠道)
type MultiNotifier struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewMultiNotifier 创建多通知器
func NewMultiNotifier(logger *zap.Logger, notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		notifiers: notifiers,
		logger:    logger,
	}
}

// Send 发送到所有通知器
func (m *MultiNotifier) Send(ctx context.Context, msg *NotificationMessage) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, msg); err != nil {
			m.logger.Error("发送通知失败", zap.Error(err))
			lastErr = err
			// 继续发送其他通知器
		}
	}
	return lastErr
}

// SendReleaseNotification 发送发布单通知到所有通知器
func (m *MultiNotifier) SendReleaseNotification(ctx context.Context, release *model.Release, notifyType NotificationType, message string) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.SendReleaseNotification(ctx, release, notifyType, message); err != nil {
			m.logger.Error("发送发布单通知失败", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// SendRollbackNotification 发送回滚通知到所有通知器
func (m *MultiNotifier) SendRollbackNotification(ctx context.Context, execution *model.RollbackExecution, notifyType NotificationType, message string) error {
	var lastErr error
	for _, notifier := range m.notifiers {
		if err := notifier.SendRollbackNotification(ctx, execution, notifyType, message); err != nil {
			m.logger.Error("发送回滚通知失败", zap.Error(err))
			lastErr = err
		}
	}
	return lastErr
}

// ============= 日志通知器(仅记录日志,不发送实际通知) =============

// LogNotifier 日志通知器
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier 创建日志通知器
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger,
	}
}

// Send 记录通知到日志
func (n *LogNotifier) Send(ctx context.Context, msg *NotificationMessage) error {
	n.logger.Info("📢 通知",
		zap.String("type", string(msg.Type)),
		zap.String("title", msg.Title),
		zap.String("content", msg.Content),
		zap.Any("extra", msg.Extra))
	return nil
}

// SendReleaseNotification 记录发布单通知到日志
func (n *LogNotifier) SendReleaseNotification(ctx context.Context, release *model.Release, notifyType NotificationType, message string) error {
	n.logger.Info("📢 发布通知",
		zap.String("type", string(notifyType)),
		zap.Int64("release_id", release.ID),
		zap.String("release_number", release.ReleaseNumber),
		zap.String("service", release.Service),
		zap.String("message", message))
	return nil
}

// SendRollbackNotification 记录回滚通知到日志
func (n *LogNotifier) SendRollbackNotification(ctx context.Context, execution *model.RollbackExecution, notifyType NotificationType, message string) error {
	n.logger.Info("📢 回滚通知",
		zap.String("type", string(notifyType)),
		zap.Int64("execution_id", execution.ID),
		zap.Int64("release_id", execution.ReleaseID),
		zap.String("service", execution.Service),
		zap.String("message", message))
	return nil
}

// New 按配置创建通知器
func New(enabled bool, provider, larkWebhook string, logger *zap.Logger) Notifier {
	switch provider {
	case "lark":
		return NewLarkNotifier(larkWebhook, enabled, logger)
	default:
		return NewLogNotifier(logger)
	}
}
