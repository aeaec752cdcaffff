package models

import (
	"time"
)

// Reading 单条传感器读数（对应 readings 表，追加写入，存储后不可变）
type Reading struct {
	CompanyID string    `json:"company_id" db:"company_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Value     float64   `json:"value" db:"value"` // 非负排放量
}

// ReadingPoint 窗口中的一个 (时间, 值) 点
type ReadingPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// AggregateSnapshot 聚合快照（派生数据，由窗口重算，不做权威持久化）
// 消费方只读拷贝，不得修改
type AggregateSnapshot struct {
	Current      float64        `json:"current"`
	TrendPct     float64        `json:"trend_pct"`
	Forecast     float64        `json:"forecast"`
	WindowSeries []ReadingPoint `json:"window_series"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
