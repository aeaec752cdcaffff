package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"carbon-monitor/internal/models"
)

func setupAlertEventsMock(t *testing.T) (sqlmock.Sqlmock, func(), *AlertEventsRepository) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	repo := NewAlertEventsRepository(db, zap.NewNop())
	cleanup := func() { db.Close() }

	return mock, cleanup, repo
}

func TestAlertEventsRepository_Create(t *testing.T) {
	mock, cleanup, repo := setupAlertEventsMock(t)
	defer cleanup()

	now := time.Now()
	event := &models.AlertEvent{
		EventID:     "event-1",
		CompanyID:   "company-1",
		Severity:    models.SeverityWarning,
		Reason:      "projected to exceed cap within horizon",
		Current:     4600,
		Forecast:    5200,
		EmissionCap: 5000,
		TriggeredAt: now,
		CreatedAt:   now,
	}

	mock.ExpectExec(`INSERT INTO alert_events`).
		WithArgs(
			event.EventID, event.CompanyID, event.Severity, event.Reason,
			event.Current, event.Forecast, event.EmissionCap,
			event.TriggeredAt, event.CreatedAt,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Create(context.Background(), event)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertEventsRepository_ListByCompany(t *testing.T) {
	mock, cleanup, repo := setupAlertEventsMock(t)
	defer cleanup()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"event_id", "company_id", "severity", "reason",
		"current_value", "forecast_value", "emission_cap", "triggered_at", "created_at",
	}).
		AddRow("event-2", "company-1", "breach", "current emissions exceed cap", 5100.0, 5600.0, 5000.0, now, now).
		AddRow("event-1", "company-1", "warning", "projected to exceed cap within horizon", 4600.0, 5200.0, 5000.0, now.Add(-time.Minute), now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT (.+) FROM alert_events`).
		WithArgs("company-1", 10).
		WillReturnRows(rows)

	events, err := repo.ListByCompany(context.Background(), "company-1", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.SeverityBreach, events[0].Severity)
	assert.Equal(t, models.SeverityWarning, events[1].Severity)
	assert.NoError(t, mock.ExpectationsWereMet())
}
