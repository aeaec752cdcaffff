package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/mqttcommon"
	"carbon-monitor/internal/rediscommon"
)

// mqttReading 传感器上报的读数载荷
type mqttReading struct {
	Timestamp int64   `json:"timestamp"` // Unix 秒
	Value     float64 `json:"value"`
}

// MQTTConsumer MQTT消息消费者
// 订阅传感器读数主题，校验后转发到 Redis Stream（摄入端不做窗口重排）
type MQTTConsumer struct {
	config      *config.Config
	mqttClient  *mqttcommon.Client
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewMQTTConsumer 创建MQTT消费者
func NewMQTTConsumer(
	cfg *config.Config,
	mqttClient *mqttcommon.Client,
	redisClient *redis.Client,
	logger *zap.Logger,
) *MQTTConsumer {
	return &MQTTConsumer{
		config:      cfg,
		mqttClient:  mqttClient,
		redisClient: redisClient,
		logger:      logger,
	}
}

// Start 启动消费者
func (c *MQTTConsumer) Start(ctx context.Context) error {
	if err := c.mqttClient.Subscribe(c.config.MQTT.Topics.Readings, c.config.MQTT.QoS, c.handleMessage); err != nil {
		return fmt.Errorf("failed to subscribe to readings topic: %w", err)
	}

	c.logger.Info("MQTT consumer started",
		zap.String("topic", c.config.MQTT.Topics.Readings),
	)

	// 等待上下文取消
	<-ctx.Done()
	return nil
}

// Stop 停止消费者
func (c *MQTTConsumer) Stop() error {
	if err := c.mqttClient.Unsubscribe(c.config.MQTT.Topics.Readings); err != nil {
		c.logger.Error("Failed to unsubscribe", zap.Error(err))
	}

	c.logger.Info("MQTT consumer stopped")
	return nil
}

// handleMessage 处理MQTT消息
func (c *MQTTConsumer) handleMessage(topic string, payload []byte) error {
	c.logger.Debug("Received MQTT message",
		zap.String("topic", topic),
		zap.Int("payload_size", len(payload)),
	)

	// 1. 从主题中提取公司ID
	// 主题格式: telemetry/{company_id}/readings
	parts := strings.Split(topic, "/")
	if len(parts) < 3 {
		return fmt.Errorf("invalid topic format: %s", topic)
	}
	companyID := parts[1]
	if companyID == "" {
		return fmt.Errorf("empty company id in topic: %s", topic)
	}

	// 2. 解析并校验读数
	var reading mqttReading
	if err := json.Unmarshal(payload, &reading); err != nil {
		return fmt.Errorf("failed to unmarshal reading: %w", err)
	}
	if reading.Timestamp <= 0 {
		return fmt.Errorf("invalid reading timestamp: %d", reading.Timestamp)
	}
	if reading.Value < 0 {
		return fmt.Errorf("invalid reading value: %f", reading.Value)
	}

	// 3. 转发到 Redis Stream（有界超时，Redis 挂起时不能卡住 paho 回调 goroutine）
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(c.config.Store.TimeoutSec)*time.Second)
	defer cancel()
	msgID, err := rediscommon.PublishToStream(ctx, c.redisClient, c.config.Telemetry.Stream, map[string]interface{}{
		"company_id": companyID,
		"timestamp":  reading.Timestamp,
		"value":      reading.Value,
	})
	if err != nil {
		return fmt.Errorf("failed to publish reading to stream: %w", err)
	}

	c.logger.Debug("Reading published to stream",
		zap.String("company_id", companyID),
		zap.String("message_id", msgID),
	)

	return nil
}
