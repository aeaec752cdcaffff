package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/models"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("cache miss")

// companyRecord 公司记录缓存结构（只缓存资格检查需要的字段）
type companyRecord struct {
	Status      models.ApplicationStatus `json:"status"`
	EmissionCap *float64                 `json:"emission_cap,omitempty"`
}

// CompanyCache 公司记录的 Redis 缓存
// 生命周期管理器在每次状态迁移后写入，聚合器的资格检查优先读缓存
type CompanyCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewCompanyCache 创建公司记录缓存
func NewCompanyCache(cfg *config.Config, redisClient *redis.Client, logger *zap.Logger) *CompanyCache {
	return &CompanyCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// recordKey 构建公司记录缓存键
func (c *CompanyCache) recordKey(companyID string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Cache.CompanyKeyPrefix,
		companyID,
		c.config.Cache.RecordSuffix,
	)
}

// SetCompanyRecord 写入公司记录缓存（带 TTL）
func (c *CompanyCache) SetCompanyRecord(ctx context.Context, companyID string, status models.ApplicationStatus, emissionCap *float64) error {
	jsonData, err := json.Marshal(companyRecord{Status: status, EmissionCap: emissionCap})
	if err != nil {
		return fmt.Errorf("failed to marshal company record: %w", err)
	}

	ttl := time.Duration(c.config.Cache.RecordTTL) * time.Second
	if err := c.redisClient.Set(ctx, c.recordKey(companyID), jsonData, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set company record cache: %w", err)
	}

	return nil
}

// GetCompanyRecord 读取公司记录缓存
func (c *CompanyCache) GetCompanyRecord(ctx context.Context, companyID string) (models.ApplicationStatus, *float64, error) {
	val, err := c.redisClient.Get(ctx, c.recordKey(companyID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil, ErrCacheMiss
		}
		return "", nil, fmt.Errorf("failed to get company record cache: %w", err)
	}

	var record companyRecord
	if err := json.Unmarshal([]byte(val), &record); err != nil {
		return "", nil, fmt.Errorf("failed to unmarshal company record: %w", err)
	}

	return record.Status, record.EmissionCap, nil
}
