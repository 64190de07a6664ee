package timetablecore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGatewayMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func TestFetchPedagogicalConfigReturnsNilWhenRowAbsent(t *testing.T) {
	db, mock, cleanup := newGatewayMock(t)
	defer cleanup()
	gw := NewPostgresGateway(db)
	year := 2026

	mock.ExpectQuery("SELECT rules").
		WithArgs(1, "morning", year, "EF1").
		WillReturnError(sql.ErrNoRows)

	cfg, err := gw.FetchPedagogicalConfig(context.Background(), 1, "morning", &year, "EF1")

	require.NoError(t, err)
	assert.Nil(t, cfg)
}

func TestFetchPedagogicalConfigPropagatesInfrastructureError(t *testing.T) {
	db, mock, cleanup := newGatewayMock(t)
	defer cleanup()
	gw := NewPostgresGateway(db)
	year := 2026

	mock.ExpectQuery("SELECT rules").
		WithArgs(1, "morning", year, "EF1").
		WillReturnError(errors.New("connection reset by peer"))

	cfg, err := gw.FetchPedagogicalConfig(context.Background(), 1, "morning", &year, "EF1")

	assert.Nil(t, cfg)
	require.Error(t, err)
}

func TestFetchPedagogicalConfigMergesStoredRules(t *testing.T) {
	db, mock, cleanup := newGatewayMock(t)
	defer cleanup()
	gw := NewPostgresGateway(db)
	year := 2026

	rows := sqlmock.NewRows([]string{"rules"}).AddRow([]byte(`{"rc01":{"mode":"hard","maxConsecutive":3}}`))
	mock.ExpectQuery("SELECT rules").
		WithArgs(1, "morning", year, "EF1").
		WillReturnRows(rows)

	cfg, err := gw.FetchPedagogicalConfig(context.Background(), 1, "morning", &year, "EF1")

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "hard", cfg.RC01.Mode)
	assert.Equal(t, 3, cfg.RC01.MaxConsecutive)
}

func TestFetchPedagogicalConfigReturnsNilWithoutYearRef(t *testing.T) {
	db, _, cleanup := newGatewayMock(t)
	defer cleanup()
	gw := NewPostgresGateway(db)

	cfg, err := gw.FetchPedagogicalConfig(context.Background(), 1, "morning", nil, "EF1")

	require.NoError(t, err)
	assert.Nil(t, cfg)
}
