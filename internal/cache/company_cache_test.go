package cache

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
	"carbon-monitor/internal/models"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client, *config.Config) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{}
	cfg.Cache.CompanyKeyPrefix = "carbon:company:"
	cfg.Cache.RecordSuffix = ":record"
	cfg.Cache.TelemetrySuffix = ":telemetry"
	cfg.Cache.RecordTTL = 300
	cfg.Cache.TelemetryTTL = 300

	return mr, client, cfg
}

func TestCompanyCache_SetAndGet(t *testing.T) {
	mr, client, cfg := setupRedis(t)
	companyCache := NewCompanyCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	emissionCap := 5000.0
	err := companyCache.SetCompanyRecord(ctx, "company-1", models.StatusApproved, &emissionCap)
	require.NoError(t, err)

	status, gotCap, err := companyCache.GetCompanyRecord(ctx, "company-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)
	require.NotNil(t, gotCap)
	assert.Equal(t, 5000.0, *gotCap)

	// 键带 TTL
	ttl := mr.TTL("carbon:company:company-1:record")
	assert.Equal(t, 300*time.Second, ttl)
}

func TestCompanyCache_PendingWithoutCap(t *testing.T) {
	_, client, cfg := setupRedis(t)
	companyCache := NewCompanyCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	err := companyCache.SetCompanyRecord(ctx, "company-1", models.StatusPending, nil)
	require.NoError(t, err)

	status, gotCap, err := companyCache.GetCompanyRecord(ctx, "company-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status)
	assert.Nil(t, gotCap)
}

func TestCompanyCache_Miss(t *testing.T) {
	_, client, cfg := setupRedis(t)
	companyCache := NewCompanyCache(cfg, client, zap.NewNop())

	_, _, err := companyCache.GetCompanyRecord(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCompanyCache_OverwriteOnTransition(t *testing.T) {
	_, client, cfg := setupRedis(t)
	companyCache := NewCompanyCache(cfg, client, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, companyCache.SetCompanyRecord(ctx, "company-1", models.StatusPending, nil))

	emissionCap := 5000.0
	require.NoError(t, companyCache.SetCompanyRecord(ctx, "company-1", models.StatusApproved, &emissionCap))

	status, gotCap, err := companyCache.GetCompanyRecord(ctx, "company-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)
	require.NotNil(t, gotCap)
	assert.Equal(t, 5000.0, *gotCap)
}
