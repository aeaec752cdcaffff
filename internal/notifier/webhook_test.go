package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/models"
)

func notifyConfig(webhookURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Notify.WebhookURL = webhookURL
	cfg.Notify.TimeoutSec = 2
	return cfg
}

func sampleProjection() *models.TelemetryProjection {
	emissionCap := 5000.0
	now := time.Now().UTC()
	return &models.TelemetryProjection{
		CompanyID:   "company-1",
		Status:      models.StatusApproved,
		EmissionCap: &emissionCap,
		Snapshot: &models.AggregateSnapshot{
			Current:   5100,
			Forecast:  5600,
			UpdatedAt: now,
		},
		Alert: &models.ComplianceAlert{
			Severity:    models.SeverityBreach,
			Reason:      "current emissions exceed cap",
			TriggeredAt: now,
		},
		UpdatedAt: now,
	}
}

func TestNotifyAlertChange_PostsProjection(t *testing.T) {
	var received models.TelemetryProjection
	var contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(notifyConfig(server.URL), zap.NewNop())
	err := n.NotifyAlertChange(context.Background(), sampleProjection())
	require.NoError(t, err)

	assert.Equal(t, "application/json", contentType)
	assert.Equal(t, "company-1", received.CompanyID)
	require.NotNil(t, received.Alert)
	assert.Equal(t, models.SeverityBreach, received.Alert.Severity)
}

func TestNotifyAlertChange_DisabledWhenURLEmpty(t *testing.T) {
	n := NewWebhookNotifier(notifyConfig(""), zap.NewNop())

	err := n.NotifyAlertChange(context.Background(), sampleProjection())
	assert.NoError(t, err)
}

func TestNotifyAlertChange_ServerError(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	n := NewWebhookNotifier(notifyConfig(server.URL), zap.NewNop())
	err := n.NotifyAlertChange(context.Background(), sampleProjection())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")

	// 重试只针对传输层错误，5xx 响应不重试
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
