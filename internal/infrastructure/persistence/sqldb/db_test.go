package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

// sqlmockDialect routes Open through the sqlmock driver.
type sqlmockDialect struct {
	PostgresDialect
	migrateErr error
	migrated   bool
}

func (d *sqlmockDialect) DriverName() string { return "sqlmock" }

func (d *sqlmockDialect) Migrate(_ context.Context, _ *sql.DB) error {
	d.migrated = true
	return d.migrateErr
}

func (d *sqlmockDialect) UpsertQuote(context.Context, *sql.Tx, domain.CanonicalRecord) error {
	return nil
}

func TestDB_WithTx_Commit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	wrapper := New(db, &PostgresDialect{})

	mock.ExpectBegin()
	mock.ExpectCommit()

	err = wrapper.WithTx(context.Background(), func(tx *sql.Tx) error {
		return nil
	})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_WithTx_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	wrapper := New(db, &PostgresDialect{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	expectedErr := errors.New("constraint failed")
	err = wrapper.WithTx(context.Background(), func(tx *sql.Tx) error {
		return expectedErr
	})

	assert.Equal(t, expectedErr, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDB_WithTx_RollbackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	wrapper := New(db, &PostgresDialect{})

	mock.ExpectBegin()
	mock.ExpectRollback()

	defer func() {
		r := recover()
		assert.Equal(t, "unexpected panic", r)
		assert.NoError(t, mock.ExpectationsWereMet())
	}()

	_ = wrapper.WithTx(context.Background(), func(tx *sql.Tx) error {
		panic("unexpected panic")
	})
}

func TestDB_WithTx_BeginError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	err = New(db, &PostgresDialect{}).WithTx(context.Background(), func(tx *sql.Tx) error {
		t.Fatal("fn must not run without a transaction")
		return nil
	})

	assert.ErrorContains(t, err, "begin transaction")
}

func TestOpen_PingsAndMigrates(t *testing.T) {
	raw, mock, err := sqlmock.NewWithDSN("open-ok", sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() {
		_ = raw.Close()
	}()
	mock.ExpectPing()

	dialect := &sqlmockDialect{}
	db, err := Open(context.Background(), dialect, "open-ok", PoolConfig{MaxOpenConns: 4})

	require.NoError(t, err)
	assert.True(t, dialect.migrated)
	assert.Equal(t, "postgres", db.Dialect.Name())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpen_MigrationFailure(t *testing.T) {
	raw, mock, err := sqlmock.NewWithDSN("open-migrate-fail", sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() {
		_ = raw.Close()
	}()
	mock.ExpectPing()

	dialect := &sqlmockDialect{migrateErr: errors.New("bad migration")}
	_, err = Open(context.Background(), dialect, "open-migrate-fail", PoolConfig{})

	assert.ErrorContains(t, err, "failed to migrate")
}

func TestOpen_PingFailure(t *testing.T) {
	raw, mock, err := sqlmock.NewWithDSN("open-ping-fail", sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() {
		_ = raw.Close()
	}()
	mock.ExpectPing().WillReturnError(errors.New("no route to host"))

	dialect := &sqlmockDialect{}
	_, err = Open(context.Background(), dialect, "open-ping-fail", PoolConfig{})

	assert.ErrorContains(t, err, "failed to ping")
	assert.False(t, dialect.migrated)
}

func TestDialectFor(t *testing.T) {
	pg, ok := DialectFor("postgres")
	require.True(t, ok)
	assert.Equal(t, "pgx", pg.DriverName())

	ora, ok := DialectFor("oracle")
	require.True(t, ok)
	assert.Equal(t, "oracle", ora.DriverName())

	_, ok = DialectFor("sqlite")
	assert.False(t, ok)
}
