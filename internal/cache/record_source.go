package cache

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"carbon-monitor/internal/models"
)

// CompanyStore 公司记录的权威存储（PostgreSQL）
type CompanyStore interface {
	GetByID(ctx context.Context, companyID string) (*models.CompanyApplication, error)
}

// CompanyRecordSource 带 PostgreSQL 回源的公司记录读取
// 缓存未命中时回源数据库并回填缓存（回填失败只记日志，不影响结果）
type CompanyRecordSource struct {
	cache     *CompanyCache
	companies CompanyStore
	logger    *zap.Logger
}

// NewCompanyRecordSource 创建公司记录读取器
func NewCompanyRecordSource(companyCache *CompanyCache, companies CompanyStore, logger *zap.Logger) *CompanyRecordSource {
	return &CompanyRecordSource{
		cache:     companyCache,
		companies: companies,
		logger:    logger,
	}
}

// GetCompanyRecord 获取公司状态和排放上限
func (s *CompanyRecordSource) GetCompanyRecord(ctx context.Context, companyID string) (models.ApplicationStatus, *float64, error) {
	status, emissionCap, err := s.cache.GetCompanyRecord(ctx, companyID)
	if err == nil {
		return status, emissionCap, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		// Redis 故障时降级回源，不中断摄入
		s.logger.Warn("Company record cache read failed, falling back to store",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
	}

	company, err := s.companies.GetByID(ctx, companyID)
	if err != nil {
		return "", nil, err
	}

	if err := s.cache.SetCompanyRecord(ctx, companyID, company.Status, company.EmissionCap); err != nil {
		s.logger.Warn("Failed to backfill company record cache",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
	}

	return company.Status, company.EmissionCap, nil
}
