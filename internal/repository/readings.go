package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"carbon-monitor/internal/models"
)

// ReadingsRepository 传感器读数仓库（对应 readings 表，追加写入）
type ReadingsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewReadingsRepository 创建读数仓库
func NewReadingsRepository(db *sql.DB, logger *zap.Logger) *ReadingsRepository {
	return &ReadingsRepository{
		db:     db,
		logger: logger,
	}
}

// Append 追加一条读数
// 相同 (company_id, timestamp) 的重复读数按后写覆盖（与窗口去重语义一致）
func (r *ReadingsRepository) Append(ctx context.Context, reading models.Reading) error {
	query := `
		INSERT INTO readings (company_id, timestamp, value)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_id, timestamp) DO UPDATE SET value = EXCLUDED.value
	`

	_, err := r.db.ExecContext(ctx, query, reading.CompanyID, reading.Timestamp, reading.Value)
	if err != nil {
		return wrapStoreErr("failed to append reading", err)
	}

	return nil
}

// GetRecent 获取最近 limit 条读数（按时间戳升序返回，用于窗口引导）
func (r *ReadingsRepository) GetRecent(ctx context.Context, companyID string, limit int) ([]models.Reading, error) {
	query := `
		SELECT company_id, timestamp, value
		  FROM readings
		 WHERE company_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, companyID, limit)
	if err != nil {
		return nil, wrapStoreErr("failed to get recent readings", err)
	}
	defer rows.Close()

	var readings []models.Reading
	for rows.Next() {
		var reading models.Reading
		if err := rows.Scan(&reading.CompanyID, &reading.Timestamp, &reading.Value); err != nil {
			return nil, wrapStoreErr("failed to scan reading", err)
		}
		readings = append(readings, reading)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("failed to iterate readings", err)
	}

	// DESC 查询结果反转为升序
	for i, j := 0, len(readings)-1; i < j; i, j = i+1, j-1 {
		readings[i], readings[j] = readings[j], readings[i]
	}

	return readings, nil
}
