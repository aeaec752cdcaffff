package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-monitor/internal/config"
)

func setupMQTTConsumer(t *testing.T) (*MQTTConsumer, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Telemetry.Stream = "telemetry:readings"
	cfg.Store.TimeoutSec = 5

	return NewMQTTConsumer(cfg, nil, client, zap.NewNop()), client
}

func TestHandleMessage_RedisUnavailable_ReturnsWithinBound(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Telemetry.Stream = "telemetry:readings"
	cfg.Store.TimeoutSec = 1

	c := NewMQTTConsumer(cfg, nil, client, zap.NewNop())

	// Redis 不可用时回调在有界时间内报错返回，不会卡住 paho 回调
	mr.Close()

	start := time.Now()
	err := c.handleMessage("telemetry/company-1/readings", []byte(`{"timestamp": 1748736000, "value": 100}`))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestHandleMessage_PublishesToStream(t *testing.T) {
	c, client := setupMQTTConsumer(t)

	payload := []byte(`{"timestamp": 1748736000, "value": 4200.5}`)
	err := c.handleMessage("telemetry/company-1/readings", payload)
	require.NoError(t, err)

	entries, err := client.XRange(context.Background(), "telemetry:readings", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "company-1", entries[0].Values["company_id"])
	assert.Equal(t, "1748736000", entries[0].Values["timestamp"])
	assert.Equal(t, "4200.5", entries[0].Values["value"])
}

func TestHandleMessage_InvalidInput(t *testing.T) {
	c, client := setupMQTTConsumer(t)

	cases := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad topic", "telemetry", `{"timestamp": 1748736000, "value": 100}`},
		{"empty company id", "telemetry//readings", `{"timestamp": 1748736000, "value": 100}`},
		{"bad json", "telemetry/company-1/readings", `{not json`},
		{"zero timestamp", "telemetry/company-1/readings", `{"timestamp": 0, "value": 100}`},
		{"negative value", "telemetry/company-1/readings", `{"timestamp": 1748736000, "value": -5}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.handleMessage(tc.topic, []byte(tc.payload))
			assert.Error(t, err)
		})
	}

	// 非法消息不进入流
	entries, err := client.XRange(context.Background(), "telemetry:readings", "-", "+").Result()
	require.NoError(t, err)
	assert.Empty(t, entries)
}
