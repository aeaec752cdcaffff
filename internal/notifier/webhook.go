package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/models"
)

// WebhookNotifier 告警 Webhook 通知器
// 告警级别变化时将投影整体 POST 到配置的地址；未配置地址时禁用
type WebhookNotifier struct {
	httpClient *resty.Client
	webhookURL string
	logger     *zap.Logger
}

// NewWebhookNotifier 创建通知器
func NewWebhookNotifier(cfg *config.Config, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Notify.TimeoutSec) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		webhookURL: cfg.Notify.WebhookURL,
		logger:     logger,
	}
}

// NotifyAlertChange 推送告警变化
func (n *WebhookNotifier) NotifyAlertChange(ctx context.Context, projection *models.TelemetryProjection) error {
	if n.webhookURL == "" {
		return nil
	}

	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(projection).
		Post(n.webhookURL)
	if err != nil {
		return fmt.Errorf("failed to post alert webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("alert webhook returned status %d", resp.StatusCode())
	}

	n.logger.Debug("Alert webhook delivered",
		zap.String("company_id", projection.CompanyID),
		zap.Int("status_code", resp.StatusCode()),
	)

	return nil
}
