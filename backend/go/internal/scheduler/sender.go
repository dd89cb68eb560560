package scheduler

import (
	httpclient "Friday/backend/go/pkg/http"
	"Friday/backend/go/pkg/logger"
	"context"
	"fmt"
)

// Sender 把报告投递到某个平台上的某个用户。
type Sender interface {
	Send(ctx context.Context, platform, userID, text string) error
}

// LogSender 只把报告写入日志，用于开发环境。
type LogSender struct {
	Log *logger.Logger
}

func (s LogSender) Send(ctx context.Context, platform, userID, text string) error {
	l := s.Log
	if l == nil {
		l = logger.New("scheduler")
	}
	l.WithUser(platform, userID).WithField("report", text).Info("daily report")
	return nil
}

// WebhookSender 通过平台的 incoming webhook 发送文本，例如 Synology Chat。
// 请求体为 {"text": ..., "user_ids": [...]}。
type WebhookSender struct {
	client *httpclient.Client
	urls   map[string]string
}

// NewWebhookSender 创建 WebhookSender，urls 为 platform -> webhook 地址。
func NewWebhookSender(client *httpclient.Client, urls map[string]string) *WebhookSender {
	return &WebhookSender{client: client, urls: urls}
}

func (w *WebhookSender) Send(ctx context.Context, platform, userID, text string) error {
	url, ok := w.urls[platform]
	if !ok || url == "" {
		return fmt.Errorf("no webhook configured for platform %q", platform)
	}
	body := map[string]interface{}{
		"text":     text,
		"user_ids": []string{userID},
	}
	if err := w.client.PostJSON(ctx, url, body); err != nil {
		return fmt.Errorf("send to %s:%s: %w", platform, userID, err)
	}
	return nil
}

// MultiSender 按平台选择 Sender，未登记的平台使用 Fallback。
type MultiSender struct {
	ByPlatform map[string]Sender
	Fallback   Sender
}

func (m MultiSender) Send(ctx context.Context, platform, userID, text string) error {
	if s, ok := m.ByPlatform[platform]; ok {
		return s.Send(ctx, platform, userID, text)
	}
	if m.Fallback != nil {
		return m.Fallback.Send(ctx, platform, userID, text)
	}
	return fmt.Errorf("no sender for platform %q", platform)
}
