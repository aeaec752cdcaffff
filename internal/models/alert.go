package models

import (
	"time"
)

// AlertSeverity 合规告警级别
type AlertSeverity string

const (
	SeverityNone    AlertSeverity = "none"
	SeverityWarning AlertSeverity = "warning"
	SeverityBreach  AlertSeverity = "breach"
)

// ComplianceAlert 合规告警（派生数据，每次评估覆盖上一次，不累积）
// 每个公司同一时刻至多一个活跃告警
type ComplianceAlert struct {
	Severity    AlertSeverity `json:"severity"`
	Reason      string        `json:"reason,omitempty"`
	TriggeredAt time.Time     `json:"triggered_at"`
}

// AlertEvent 告警级别变化事件（对应 alert_events 表，历史记录）
type AlertEvent struct {
	EventID     string        `json:"event_id" db:"event_id"`
	CompanyID   string        `json:"company_id" db:"company_id"`
	Severity    AlertSeverity `json:"severity" db:"severity"`
	Reason      string        `json:"reason" db:"reason"`
	Current     float64       `json:"current" db:"current_value"`
	Forecast    float64       `json:"forecast" db:"forecast_value"`
	EmissionCap float64       `json:"emission_cap" db:"emission_cap"`
	TriggeredAt time.Time     `json:"triggered_at" db:"triggered_at"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// TelemetryProjection 推送给展示层的只读快照
// 每次重算后刷新（carbon:company:{id}:telemetry）
type TelemetryProjection struct {
	CompanyID   string             `json:"company_id"`
	Status      ApplicationStatus  `json:"status"`
	EmissionCap *float64           `json:"emission_cap,omitempty"`
	Snapshot    *AggregateSnapshot `json:"snapshot,omitempty"`
	Alert       *ComplianceAlert   `json:"alert,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}
