package aggregator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/locks"
	"carbon-monitor/internal/models"
)

// CompanyRecordSource 公司资格查询（状态 + 排放上限）
// 聚合器只读 status 和 emission_cap，从不写公司记录
type CompanyRecordSource interface {
	GetCompanyRecord(ctx context.Context, companyID string) (models.ApplicationStatus, *float64, error)
}

// ReadingsStore 读数持久化
type ReadingsStore interface {
	Append(ctx context.Context, reading models.Reading) error
	GetRecent(ctx context.Context, companyID string, limit int) ([]models.Reading, error)
}

// TelemetryAggregator 遥测聚合器
// 每个 approved 公司维护一个有界滑动窗口，新读数到达时重算派生快照。
// 窗口和快照由该公司的锁保护（与生命周期迁移共用同一把锁）
type TelemetryAggregator struct {
	config   *config.Config
	locks    *locks.CompanyLocks
	records  CompanyRecordSource
	readings ReadingsStore
	logger   *zap.Logger

	mu      sync.RWMutex
	windows map[string]*companyWindow
}

// companyWindow 单个公司的窗口状态（由公司锁串行访问）
type companyWindow struct {
	window   *Window
	snapshot *models.AggregateSnapshot
}

// NewTelemetryAggregator 创建遥测聚合器
func NewTelemetryAggregator(
	cfg *config.Config,
	companyLocks *locks.CompanyLocks,
	records CompanyRecordSource,
	readings ReadingsStore,
	logger *zap.Logger,
) *TelemetryAggregator {
	return &TelemetryAggregator{
		config:   cfg,
		locks:    companyLocks,
		records:  records,
		readings: readings,
		logger:   logger,
		windows:  make(map[string]*companyWindow),
	}
}

// Ingest 摄入一条读数
// 返回重算后的快照拷贝和公司排放上限（供告警评估使用）。
// 非 approved 公司返回 NotEligibleError，读数被丢弃且窗口不变；
// 存储超时返回 ErrStoreUnavailable，窗口不变，调用方可重试
func (a *TelemetryAggregator) Ingest(ctx context.Context, companyID string, reading models.Reading) (*models.AggregateSnapshot, float64, error) {
	unlock := a.locks.Lock(companyID)
	defer unlock()

	// 1. 资格检查（有界超时：此处持有公司锁，不能被存储无限阻塞）
	eligCtx, cancel := a.storeContext(ctx)
	status, emissionCap, err := a.records.GetCompanyRecord(eligCtx, companyID)
	cancel()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to check eligibility: %w", err)
	}
	if status != models.StatusApproved || emissionCap == nil {
		return nil, 0, &models.NotEligibleError{CompanyID: companyID, Status: status}
	}

	// 2. 获取窗口（首次访问时从持久化读数引导，重启后窗口可恢复）
	cw, err := a.getOrBootstrapWindow(ctx, companyID)
	if err != nil {
		return nil, 0, err
	}

	// 3. 先持久化，失败则窗口保持不变
	storeCtx, cancel := a.storeContext(ctx)
	defer cancel()
	if err := a.readings.Append(storeCtx, reading); err != nil {
		return nil, 0, fmt.Errorf("failed to persist reading: %w", err)
	}

	// 4. 插入窗口并重算快照
	cw.window.Insert(reading.Timestamp, reading.Value)
	cw.snapshot = a.computeSnapshot(cw.window)

	a.logger.Debug("Reading ingested",
		zap.String("company_id", companyID),
		zap.Time("timestamp", reading.Timestamp),
		zap.Float64("value", reading.Value),
		zap.Int("window_len", cw.window.Len()),
	)

	return copySnapshot(cw.snapshot), *emissionCap, nil
}

// Current 获取最新快照
// 尚无任何读数时返回 ErrNoData（占位状态，不是应用故障）
func (a *TelemetryAggregator) Current(ctx context.Context, companyID string) (*models.AggregateSnapshot, error) {
	unlock := a.locks.Lock(companyID)
	defer unlock()

	a.mu.RLock()
	cw, ok := a.windows[companyID]
	a.mu.RUnlock()

	if !ok || cw.snapshot == nil {
		return nil, models.ErrNoData
	}

	return copySnapshot(cw.snapshot), nil
}

// getOrBootstrapWindow 获取公司窗口，首次访问时从最近的持久化读数引导
// 调用方必须已持有公司锁
func (a *TelemetryAggregator) getOrBootstrapWindow(ctx context.Context, companyID string) (*companyWindow, error) {
	a.mu.RLock()
	cw, ok := a.windows[companyID]
	a.mu.RUnlock()
	if ok {
		return cw, nil
	}

	cw = &companyWindow{window: NewWindow(a.config.Telemetry.WindowSize)}

	storeCtx, cancel := a.storeContext(ctx)
	defer cancel()
	recent, err := a.readings.GetRecent(storeCtx, companyID, a.config.Telemetry.WindowSize)
	if err != nil {
		return nil, fmt.Errorf("failed to bootstrap window: %w", err)
	}
	for _, r := range recent {
		cw.window.Insert(r.Timestamp, r.Value)
	}
	if cw.window.Len() > 0 {
		cw.snapshot = a.computeSnapshot(cw.window)
	}

	a.mu.Lock()
	a.windows[companyID] = cw
	a.mu.Unlock()

	a.logger.Info("Telemetry window bootstrapped",
		zap.String("company_id", companyID),
		zap.Int("seeded_readings", cw.window.Len()),
	)

	return cw, nil
}

// computeSnapshot 由窗口内容重算派生快照
func (a *TelemetryAggregator) computeSnapshot(w *Window) *models.AggregateSnapshot {
	latest, _ := w.Latest()
	horizon := time.Duration(a.config.Telemetry.ForecastHorizonSec) * time.Second

	return &models.AggregateSnapshot{
		Current:      latest.Value,
		TrendPct:     w.TrendPct(),
		Forecast:     w.Forecast(horizon),
		WindowSeries: w.Points(),
		UpdatedAt:    time.Now(),
	}
}

// storeContext 外部存储调用的有界超时
func (a *TelemetryAggregator) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(a.config.Store.TimeoutSec)*time.Second)
}

// copySnapshot 返回快照的深拷贝，消费方不得影响聚合器内部状态
func copySnapshot(s *models.AggregateSnapshot) *models.AggregateSnapshot {
	out := *s
	out.WindowSeries = make([]models.ReadingPoint, len(s.WindowSeries))
	copy(out.WindowSeries, s.WindowSeries)
	return &out
}
