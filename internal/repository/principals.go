package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"carbon-monitor/internal/models"
)

// PrincipalRepository 身份仓库（对应 principals 表）
// 账号和口令均以 sha256 摘要存储，不落明文
type PrincipalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewPrincipalRepository 创建身份仓库
func NewPrincipalRepository(db *sql.DB, logger *zap.Logger) *PrincipalRepository {
	return &PrincipalRepository{
		db:     db,
		logger: logger,
	}
}

// CreatePrincipal 创建身份，返回 principal_id
// 邮箱重复时返回 ValidationError（对应注册页 "already registered" 提示）
func (r *PrincipalRepository) CreatePrincipal(ctx context.Context, email, password, role string) (string, error) {
	principalID := uuid.New().String()
	accountHash := hashAccount(email)
	passwordHash := hashPassword(password)

	query := `
		INSERT INTO principals (principal_id, email, account_hash, password_hash, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query, principalID, normalizeEmail(email), accountHash, passwordHash, role, time.Now())
	if err != nil {
		// 唯一约束冲突：该邮箱已注册
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return "", &models.ValidationError{Field: "email", Reason: "already registered"}
		}
		return "", wrapStoreErr("failed to create principal", err)
	}

	return principalID, nil
}

// Authenticate 校验邮箱口令，返回身份
func (r *PrincipalRepository) Authenticate(ctx context.Context, email, password string) (*models.Principal, error) {
	accountHash := hashAccount(email)
	passwordHash := hashPassword(password)

	query := `
		SELECT principal_id, email, role
		  FROM principals
		 WHERE account_hash = $1
		   AND password_hash = $2
	`

	var principal models.Principal
	err := r.db.QueryRowContext(ctx, query, accountHash, passwordHash).Scan(
		&principal.PrincipalID,
		&principal.Email,
		&principal.Role,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrAuthFailed
		}
		return nil, wrapStoreErr("failed to authenticate principal", err)
	}

	return &principal, nil
}

// GetPrincipal 根据 principal_id 获取身份
func (r *PrincipalRepository) GetPrincipal(ctx context.Context, principalID string) (*models.Principal, error) {
	query := `SELECT principal_id, email, role FROM principals WHERE principal_id = $1`

	var principal models.Principal
	err := r.db.QueryRowContext(ctx, query, principalID).Scan(
		&principal.PrincipalID,
		&principal.Email,
		&principal.Role,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrNotFound
		}
		return nil, wrapStoreErr("failed to get principal", err)
	}

	return &principal, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashAccount(email string) []byte {
	sum := sha256.Sum256([]byte(normalizeEmail(email)))
	return sum[:]
}

func hashPassword(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}
