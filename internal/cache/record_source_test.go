package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-monitor/internal/models"
)

type stubCompanyStore struct {
	company *models.CompanyApplication
	calls   int32
}

func (s *stubCompanyStore) GetByID(ctx context.Context, companyID string) (*models.CompanyApplication, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.company == nil || s.company.CompanyID != companyID {
		return nil, models.ErrNotFound
	}
	clone := *s.company
	return &clone, nil
}

func TestRecordSource_CacheMissFallsBackAndBackfills(t *testing.T) {
	_, client, cfg := setupRedis(t)
	companyCache := NewCompanyCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	emissionCap := 5000.0
	store := &stubCompanyStore{company: &models.CompanyApplication{
		CompanyID:   "company-1",
		Status:      models.StatusApproved,
		EmissionCap: &emissionCap,
		CreatedAt:   time.Now(),
	}}

	source := NewCompanyRecordSource(companyCache, store, zap.NewNop())

	status, gotCap, err := source.GetCompanyRecord(ctx, "company-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)
	require.NotNil(t, gotCap)
	assert.Equal(t, 5000.0, *gotCap)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls))

	// 回填后再次读取命中缓存，不再回源
	_, _, err = source.GetCompanyRecord(ctx, "company-1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&store.calls))
}

func TestRecordSource_CacheHitSkipsStore(t *testing.T) {
	_, client, cfg := setupRedis(t)
	companyCache := NewCompanyCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, companyCache.SetCompanyRecord(ctx, "company-1", models.StatusPending, nil))

	store := &stubCompanyStore{}
	source := NewCompanyRecordSource(companyCache, store, zap.NewNop())

	status, gotCap, err := source.GetCompanyRecord(ctx, "company-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)
	assert.Nil(t, gotCap)
	assert.Equal(t, int32(0), atomic.LoadInt32(&store.calls))
}

func TestRecordSource_UnknownCompany(t *testing.T) {
	_, client, cfg := setupRedis(t)
	companyCache := NewCompanyCache(cfg, client, zap.NewNop())

	store := &stubCompanyStore{}
	source := NewCompanyRecordSource(companyCache, store, zap.NewNop())

	_, _, err := source.GetCompanyRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestRecordSource_RedisDownFallsBack(t *testing.T) {
	mr, client, cfg := setupRedis(t)
	companyCache := NewCompanyCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	emissionCap := 3000.0
	store := &stubCompanyStore{company: &models.CompanyApplication{
		CompanyID:   "company-1",
		Status:      models.StatusApproved,
		EmissionCap: &emissionCap,
		CreatedAt:   time.Now(),
	}}

	source := NewCompanyRecordSource(companyCache, store, zap.NewNop())

	// Redis 故障时降级回源，摄入不中断
	mr.Close()

	status, gotCap, err := source.GetCompanyRecord(ctx, "company-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)
	require.NotNil(t, gotCap)
	assert.Equal(t, 3000.0, *gotCap)
}
