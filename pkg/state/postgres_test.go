package state

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ajitpratap0/nebula-gocardless/pkg/connector/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS connector_state")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s, err := newSQLStore(context.Background(), db, postgresDialect, "")
	require.NoError(t, err)
	return s, mock
}

func TestPostgresStoreLoad(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT state FROM connector_state WHERE stream = $1")).
		WithArgs("payments").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(`{"created_at":"2024-01-01T00:00:00.000Z"}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT state FROM connector_state WHERE stream = $1")).
		WithArgs("refunds").
		WillReturnError(sql.ErrNoRows)

	got, err := s.Load(ctx, "payments")
	require.NoError(t, err)
	assert.Equal(t, core.State{"created_at": "2024-01-01T00:00:00.000Z"}, got)

	got, err = s.Load(ctx, "refunds")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveAndDelete(t *testing.T) {
	s, mock := newMockPostgres(t)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO connector_state (stream, state, updated_at) VALUES ($1, $2, $3)")).
		WithArgs("payments", `{"created_at":"2024-01-01T00:00:00.000Z"}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM connector_state WHERE stream = $1")).
		WithArgs("payments").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectClose()

	require.NoError(t, s.Save(ctx, "payments", core.State{"created_at": "2024-01-01T00:00:00.000Z"}))
	require.NoError(t, s.Delete(ctx, "payments"))
	require.NoError(t, s.Close())

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreSaveError(t *testing.T) {
	s, mock := newMockPostgres(t)

	mock.ExpectExec("INSERT INTO connector_state").WillReturnError(sql.ErrConnDone)

	err := s.Save(context.Background(), "payments", core.State{})
	require.Error(t, err)
	assert.ErrorIs(t, err, sql.ErrConnDone)
}
