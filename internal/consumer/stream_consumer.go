package consumer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/models"
	"carbon-monitor/internal/rediscommon"
)

// StreamConsumer Redis Streams 消费者
// 消费者组读取读数流，按公司分发到有序队列处理。
// 同一公司的读数按入队顺序应用（时间戳重排在聚合器窗口内完成）
type StreamConsumer struct {
	config      *config.Config
	redisClient *redis.Client
	dispatcher  *Dispatcher
	pipeline    *TelemetryPipeline
	logger      *zap.Logger
}

// NewStreamConsumer 创建 Streams 消费者
func NewStreamConsumer(
	cfg *config.Config,
	redisClient *redis.Client,
	dispatcher *Dispatcher,
	pipeline *TelemetryPipeline,
	logger *zap.Logger,
) *StreamConsumer {
	return &StreamConsumer{
		config:      cfg,
		redisClient: redisClient,
		dispatcher:  dispatcher,
		pipeline:    pipeline,
		logger:      logger,
	}
}

// Start 启动消费者（阻塞直到上下文取消）
func (c *StreamConsumer) Start(ctx context.Context) error {
	// 创建消费者组
	if err := rediscommon.CreateConsumerGroup(ctx, c.redisClient, c.config.Telemetry.Stream, c.config.Telemetry.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Stream consumer started",
		zap.String("stream", c.config.Telemetry.Stream),
		zap.String("consumer_group", c.config.Telemetry.ConsumerGroup),
		zap.String("consumer_name", c.config.Telemetry.ConsumerName),
	)

	// 消费循环（失败时指数退避）
	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Stream consumer stopped")
			return nil
		default:
			if err := c.consumeOnce(ctx); err != nil {
				c.logger.Error("Failed to consume stream",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				backoffDuration = time.Second
			}
		}
	}
}

// consumeOnce 读取一批消息并分发
func (c *StreamConsumer) consumeOnce(ctx context.Context) error {
	messages, err := rediscommon.ReadFromStream(
		ctx,
		c.redisClient,
		c.config.Telemetry.Stream,
		c.config.Telemetry.ConsumerGroup,
		c.config.Telemetry.ConsumerName,
		int64(c.config.Telemetry.BatchSize),
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}

	for _, msg := range messages {
		companyID, reading, err := parseStreamReading(msg)
		if err != nil {
			// 畸形消息直接确认丢弃，避免毒丸消息阻塞消费
			c.logger.Error("Malformed stream message dropped",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			c.ack(msg.ID)
			continue
		}

		messageID := msg.ID
		c.dispatcher.Dispatch(companyID, func() {
			if err := c.pipeline.Process(ctx, companyID, reading); err != nil {
				if errors.Is(err, models.ErrStoreUnavailable) {
					// 瞬时存储故障：不确认，留在 pending 列表等待重投
					c.logger.Warn("Store unavailable, message left pending for retry",
						zap.String("message_id", messageID),
						zap.String("company_id", companyID),
					)
					return
				}
				c.logger.Error("Failed to process reading",
					zap.String("message_id", messageID),
					zap.String("company_id", companyID),
					zap.Error(err),
				)
			}
			c.ack(messageID)
		})
	}

	return nil
}

// ack 确认消息（独立上下文，关停期间也能完成确认）
func (c *StreamConsumer) ack(messageID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rediscommon.AckMessage(ctx, c.redisClient, c.config.Telemetry.Stream, c.config.Telemetry.ConsumerGroup, messageID); err != nil {
		c.logger.Error("Failed to ack message",
			zap.String("message_id", messageID),
			zap.Error(err),
		)
	}
}

// parseStreamReading 解析流消息中的读数
func parseStreamReading(msg rediscommon.StreamMessage) (string, models.Reading, error) {
	companyID, ok := msg.Values["company_id"].(string)
	if !ok || companyID == "" {
		return "", models.Reading{}, fmt.Errorf("missing company_id in message %s", msg.ID)
	}

	tsStr, ok := msg.Values["timestamp"].(string)
	if !ok {
		return "", models.Reading{}, fmt.Errorf("missing timestamp in message %s", msg.ID)
	}
	tsUnix, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil || tsUnix <= 0 {
		return "", models.Reading{}, fmt.Errorf("invalid timestamp %q in message %s", tsStr, msg.ID)
	}

	valueStr, ok := msg.Values["value"].(string)
	if !ok {
		return "", models.Reading{}, fmt.Errorf("missing value in message %s", msg.ID)
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil || value < 0 {
		return "", models.Reading{}, fmt.Errorf("invalid value %q in message %s", valueStr, msg.ID)
	}

	return companyID, models.Reading{
		CompanyID: companyID,
		Timestamp: time.Unix(tsUnix, 0).UTC(),
		Value:     value,
	}, nil
}
