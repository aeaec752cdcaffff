package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"carbon-monitor/internal/models"
)

// CompanyRepository 公司申请仓库（对应 companies 表）
type CompanyRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCompanyRepository 创建公司申请仓库
func NewCompanyRepository(db *sql.DB, logger *zap.Logger) *CompanyRepository {
	return &CompanyRepository{
		db:     db,
		logger: logger,
	}
}

const companyColumns = `
	company_id, principal_id, company_name, registration_number, contact_email,
	industry_sector, production_capacity, energy_source, energy_consumption,
	status, emission_cap, created_at, decided_at
`

// Create 创建公司申请记录（注册时调用，status=pending）
func (r *CompanyRepository) Create(ctx context.Context, company *models.CompanyApplication) error {
	query := `
		INSERT INTO companies (
			company_id, principal_id, company_name, registration_number, contact_email,
			industry_sector, production_capacity, energy_source, energy_consumption,
			status, emission_cap, created_at, decided_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.ExecContext(ctx, query,
		company.CompanyID,
		company.PrincipalID,
		company.CompanyName,
		company.RegistrationNumber,
		company.ContactEmail,
		company.IndustrySector,
		company.ProductionCapacity,
		company.EnergySource,
		company.EnergyConsumption,
		company.Status,
		company.EmissionCap,
		company.CreatedAt,
		company.DecidedAt,
	)
	if err != nil {
		return wrapStoreErr("failed to create company", err)
	}

	return nil
}

// GetByID 根据公司ID获取申请记录
func (r *CompanyRepository) GetByID(ctx context.Context, companyID string) (*models.CompanyApplication, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE company_id = $1`

	company, err := scanCompany(r.db.QueryRowContext(ctx, query, companyID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, wrapStoreErr("failed to get company", err)
	}

	return company, nil
}

// ListByStatus 按状态查询公司申请（status 为空串时返回全部）
func (r *CompanyRepository) ListByStatus(ctx context.Context, status models.ApplicationStatus) ([]*models.CompanyApplication, error) {
	query := `SELECT ` + companyColumns + ` FROM companies`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapStoreErr("failed to list companies", err)
	}
	defer rows.Close()

	var companies []*models.CompanyApplication
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, wrapStoreErr("failed to scan company", err)
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStoreErr("failed to iterate companies", err)
	}

	return companies, nil
}

// ApplyDecision 原子条件更新：仅当当前状态为 pending 时应用审批决定
// 返回是否实际更新（false 表示状态已不是 pending，由调用方判定幂等/冲突）
func (r *CompanyRepository) ApplyDecision(ctx context.Context, companyID string, to models.ApplicationStatus, emissionCap *float64, decidedAt time.Time) (bool, error) {
	query := `
		UPDATE companies
		   SET status = $1, emission_cap = $2, decided_at = $3
		 WHERE company_id = $4
		   AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, to, emissionCap, decidedAt, companyID, models.StatusPending)
	if err != nil {
		return false, wrapStoreErr("failed to apply decision", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, wrapStoreErr("failed to get affected rows", err)
	}

	return affected > 0, nil
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCompany(row rowScanner) (*models.CompanyApplication, error) {
	var company models.CompanyApplication
	err := row.Scan(
		&company.CompanyID,
		&company.PrincipalID,
		&company.CompanyName,
		&company.RegistrationNumber,
		&company.ContactEmail,
		&company.IndustrySector,
		&company.ProductionCapacity,
		&company.EnergySource,
		&company.EnergyConsumption,
		&company.Status,
		&company.EmissionCap,
		&company.CreatedAt,
		&company.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	return &company, nil
}
