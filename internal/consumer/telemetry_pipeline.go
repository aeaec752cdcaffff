package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carbon-monitor/internal/config"
	"carbon-monitor/internal/evaluator"
	"carbon-monitor/internal/models"
)

// SnapshotIngester 遥测聚合器
type SnapshotIngester interface {
	Ingest(ctx context.Context, companyID string, reading models.Reading) (*models.AggregateSnapshot, float64, error)
}

// ProjectionUpdater 遥测投影写入
type ProjectionUpdater interface {
	Update(ctx context.Context, projection *models.TelemetryProjection) error
}

// AlertEventStore 告警事件历史
type AlertEventStore interface {
	Create(ctx context.Context, event *models.AlertEvent) error
	ListByCompany(ctx context.Context, companyID string, limit int) ([]*models.AlertEvent, error)
}

// AlertNotifier 告警外部通知
type AlertNotifier interface {
	NotifyAlertChange(ctx context.Context, projection *models.TelemetryProjection) error
}

// TelemetryPipeline 单条读数的处理管道
// 摄入 → 快照重算 → 合规评估 → 投影刷新，级别变化时落历史并外发通知。
// Process 由分发器按公司串行调用
type TelemetryPipeline struct {
	config     *config.Config
	aggregator SnapshotIngester
	evaluator  *evaluator.ComplianceEvaluator
	alerts     AlertEventStore
	projection ProjectionUpdater
	notifier   AlertNotifier
	logger     *zap.Logger

	mu           sync.Mutex
	lastSeverity map[string]models.AlertSeverity
}

// NewTelemetryPipeline 创建处理管道
func NewTelemetryPipeline(
	cfg *config.Config,
	agg SnapshotIngester,
	eval *evaluator.ComplianceEvaluator,
	alerts AlertEventStore,
	projection ProjectionUpdater,
	notifier AlertNotifier,
	logger *zap.Logger,
) *TelemetryPipeline {
	return &TelemetryPipeline{
		config:       cfg,
		aggregator:   agg,
		evaluator:    eval,
		alerts:       alerts,
		projection:   projection,
		notifier:     notifier,
		logger:       logger,
		lastSeverity: make(map[string]models.AlertSeverity),
	}
}

// Process 处理一条读数
// 非 approved 公司的读数记日志后丢弃（返回 nil，不重放）；
// 存储不可用时返回错误，由调用方决定是否留在流中重投
func (p *TelemetryPipeline) Process(ctx context.Context, companyID string, reading models.Reading) error {
	// 1. 摄入并重算快照
	snapshot, emissionCap, err := p.aggregator.Ingest(ctx, companyID, reading)
	if err != nil {
		var notEligible *models.NotEligibleError
		if errors.As(err, &notEligible) {
			p.logger.Warn("Reading dropped: company not eligible",
				zap.String("company_id", companyID),
				zap.String("status", string(notEligible.Status)),
			)
			return nil
		}
		return fmt.Errorf("failed to ingest reading: %w", err)
	}

	// 2. 合规评估（纯函数，幂等）
	alert := p.evaluator.Evaluate(snapshot.Current, snapshot.Forecast, emissionCap, time.Now())

	// 3. 级别变化时落历史并外发通知
	changed := p.severityChanged(ctx, companyID, alert.Severity)

	projection := &models.TelemetryProjection{
		CompanyID:   companyID,
		Status:      models.StatusApproved,
		EmissionCap: &emissionCap,
		Snapshot:    snapshot,
		Alert:       &alert,
		UpdatedAt:   time.Now(),
	}

	if changed {
		p.logger.Info("Alert severity changed",
			zap.String("company_id", companyID),
			zap.String("severity", string(alert.Severity)),
			zap.String("reason", alert.Reason),
			zap.Float64("current", snapshot.Current),
			zap.Float64("forecast", snapshot.Forecast),
			zap.Float64("emission_cap", emissionCap),
		)

		event := &models.AlertEvent{
			EventID:     uuid.New().String(),
			CompanyID:   companyID,
			Severity:    alert.Severity,
			Reason:      alert.Reason,
			Current:     snapshot.Current,
			Forecast:    snapshot.Forecast,
			EmissionCap: emissionCap,
			TriggeredAt: alert.TriggeredAt,
			CreatedAt:   time.Now(),
		}
		if err := p.alerts.Create(ctx, event); err != nil {
			// 历史落库失败不阻塞投影刷新
			p.logger.Error("Failed to persist alert event",
				zap.String("company_id", companyID),
				zap.Error(err),
			)
		}

		if err := p.notifier.NotifyAlertChange(ctx, projection); err != nil {
			p.logger.Error("Failed to notify alert change",
				zap.String("company_id", companyID),
				zap.Error(err),
			)
		}
	}

	// 4. 刷新投影
	if err := p.projection.Update(ctx, projection); err != nil {
		p.logger.Error("Failed to update telemetry projection",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
	}

	return nil
}

// severityChanged 记录并比较该公司的上一次告警级别
// 进程内未见过的公司先从告警历史引导，重启后不会对未变化的级别重复落历史/外发
func (p *TelemetryPipeline) severityChanged(ctx context.Context, companyID string, severity models.AlertSeverity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	last, ok := p.lastSeverity[companyID]
	if !ok {
		last = p.seedLastSeverity(ctx, companyID)
	}
	p.lastSeverity[companyID] = severity

	return last != severity
}

// seedLastSeverity 从最近一条告警事件引导上一次级别
// 无历史视为 none；查询失败时也按 none 处理（宁可重复告警，不漏告警）
func (p *TelemetryPipeline) seedLastSeverity(ctx context.Context, companyID string) models.AlertSeverity {
	storeCtx, cancel := context.WithTimeout(ctx, time.Duration(p.config.Store.TimeoutSec)*time.Second)
	defer cancel()

	events, err := p.alerts.ListByCompany(storeCtx, companyID, 1)
	if err != nil {
		p.logger.Warn("Failed to seed last alert severity from history",
			zap.String("company_id", companyID),
			zap.Error(err),
		)
		return models.SeverityNone
	}
	if len(events) == 0 {
		return models.SeverityNone
	}
	return events[0].Severity
}
