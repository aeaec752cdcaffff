package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"carbon-monitor/internal/models"
)

// AlertEventsRepository 告警事件仓库（对应 alert_events 表）
// 只记录级别变化的历史，活跃告警状态本身在遥测投影中覆盖维护
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建告警事件仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// Create 写入一条告警级别变化事件
func (r *AlertEventsRepository) Create(ctx context.Context, event *models.AlertEvent) error {
	query := `
		INSERT INTO alert_events (
			event_id, company_id, severity, reason,
			current_value, forecast_value, emission_cap, triggered_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.CompanyID,
		event.Severity,
		event.Reason,
		event.Current,
		event.Forecast,
		event.EmissionCap,
		event.TriggeredAt,
		event.CreatedAt,
	)
	if err != nil {
		return wrapStoreErr("failed to create alert event", err)
	}

	return nil
}

// ListByCompany 查询某公司最近的告警事件（按触发时间倒序）
func (r *AlertEventsRepository) ListByCompany(ctx context.Context, companyID string, limit int) ([]*models.AlertEvent, error) {
	query := `
		SELECT event_id, company_id, severity, reason,
		       current_value, forecast_value, emission_cap, triggered_at, created_at
		  FROM alert_events
		 WHERE company_id = $1
		 ORDER BY triggered_at DESC
		 LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, companyID, limit)
	if err != nil {
		return nil, wrapStoreErr("failed to list alert events", err)
	}
	defer rows.Close()

	var events []*models.AlertEvent
	for rows.Next() {
		var event models.AlertEvent
		err := rows.Scan(
			&event.EventID,
			&event.CompanyID,
			&event.Severity,
			&event.Reason,
			&event.Current,
			&event.Forecast,
			&event.EmissionCap,
			&event.TriggeredAt,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, wrapStoreErr("failed to scan alert event", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("failed to iterate alert events", err)
	}

	return events, nil
}
