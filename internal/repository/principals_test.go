package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-monitor/internal/models"
)

func setupPrincipalsMock(t *testing.T) (sqlmock.Sqlmock, func(), *PrincipalRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewPrincipalRepository(db, zap.NewNop())
	cleanup := func() { db.Close() }

	return mock, cleanup, repo
}

func TestPrincipalRepository_CreatePrincipal(t *testing.T) {
	mock, cleanup, repo := setupPrincipalsMock(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO principals`).
		WithArgs(
			sqlmock.AnyArg(),          // principal_id (uuid)
			"ops@acme-steel.com",      // 规范化后的邮箱
			sqlmock.AnyArg(),          // account_hash
			sqlmock.AnyArg(),          // password_hash
			models.RoleCompany,
			sqlmock.AnyArg(),          // created_at
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	principalID, err := repo.CreatePrincipal(context.Background(), " Ops@Acme-Steel.com ", "secret123", models.RoleCompany)
	require.NoError(t, err)
	assert.NotEmpty(t, principalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_CreatePrincipal_DuplicateEmail(t *testing.T) {
	mock, cleanup, repo := setupPrincipalsMock(t)
	defer cleanup()

	mock.ExpectExec(`INSERT INTO principals`).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.CreatePrincipal(context.Background(), "ops@acme-steel.com", "secret123", models.RoleCompany)

	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "email", verr.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_Authenticate(t *testing.T) {
	mock, cleanup, repo := setupPrincipalsMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"principal_id", "email", "role"}).
		AddRow("principal-1", "ops@acme-steel.com", models.RoleCompany)

	mock.ExpectQuery(`SELECT (.+) FROM principals`).
		WithArgs(hashAccount("ops@acme-steel.com"), hashPassword("secret123")).
		WillReturnRows(rows)

	principal, err := repo.Authenticate(context.Background(), "ops@acme-steel.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "principal-1", principal.PrincipalID)
	assert.Equal(t, models.RoleCompany, principal.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_Authenticate_WrongPassword(t *testing.T) {
	mock, cleanup, repo := setupPrincipalsMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM principals`).
		WillReturnRows(sqlmock.NewRows([]string{"principal_id", "email", "role"}))

	_, err := repo.Authenticate(context.Background(), "ops@acme-steel.com", "wrong")
	assert.ErrorIs(t, err, models.ErrAuthFailed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPrincipalRepository_GetPrincipal_NotFound(t *testing.T) {
	mock, cleanup, repo := setupPrincipalsMock(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT (.+) FROM principals WHERE principal_id`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"principal_id", "email", "role"}))

	_, err := repo.GetPrincipal(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHashAccount_CaseInsensitive(t *testing.T) {
	// 账号摘要对大小写和首尾空白不敏感
	assert.Equal(t, hashAccount("Ops@Acme.com "), hashAccount("ops@acme.com"))
	assert.NotEqual(t, hashAccount("ops@acme.com"), hashAccount("other@acme.com"))
}
