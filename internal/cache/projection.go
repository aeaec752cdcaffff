package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/models"
)

// ProjectionSink 遥测投影（推送给展示层的只读快照）
// 每次重算后整体覆盖写入 carbon:company:{id}:telemetry
type ProjectionSink struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewProjectionSink 创建遥测投影
func NewProjectionSink(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *ProjectionSink {
	return &ProjectionSink{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// telemetryKey 构建遥测投影键
func (s *ProjectionSink) telemetryKey(companyID string) string {
	return fmt.Sprintf("%s%s%s",
		s.config.Cache.CompanyKeyPrefix,
		companyID,
		s.config.Cache.TelemetrySuffix,
	)
}

// Update 覆盖写入投影（带 TTL）
func (s *ProjectionSink) Update(ctx context.Context, projection *models.TelemetryProjection) error {
	jsonData, err := json.Marshal(projection)
	if err != nil {
		return fmt.Errorf("failed to marshal projection: %w", err)
	}

	ttl := time.Duration(s.config.Cache.TelemetryTTL) * time.Second
	if err := s.redisClient.Set(ctx, s.telemetryKey(projection.CompanyID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to update projection: %w", err)
	}

	return nil
}

// Get 读取某公司的投影
func (s *ProjectionSink) Get(ctx context.Context, companyID string) (*models.TelemetryProjection, error) {
	val, err := s.redisClient.Get(ctx, s.telemetryKey(companyID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get projection: %w", err)
	}

	var projection models.TelemetryProjection
	if err := json.Unmarshal([]byte(val), &projection); err != nil {
		return nil, fmt.Errorf("failed to unmarshal projection: %w", err)
	}

	return &projection, nil
}
