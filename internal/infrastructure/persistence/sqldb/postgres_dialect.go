package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/persistence/sqldb/migrations"
)

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string { return "postgres" }

func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.PostgresFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "postgres"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

// UpsertQuote relies on the (symbol, asset_class) unique constraint, so two
// writers racing on the same identity still leave exactly one row.
func (d *PostgresDialect) UpsertQuote(ctx context.Context, tx *sql.Tx, r domain.CanonicalRecord) error {
	query := `
		INSERT INTO quotes (symbol, asset_class, quote_date, open, high, low, close, change, change_percent)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (symbol, asset_class) DO UPDATE SET
			quote_date = EXCLUDED.quote_date,
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			change = EXCLUDED.change,
			change_percent = EXCLUDED.change_percent
	`
	_, err := tx.ExecContext(ctx, query,
		r.Symbol, string(r.AssetClass), r.Date,
		r.Open, r.High, r.Low, r.Close, r.Change, r.ChangePercent,
	)
	return err
}

func (d *PostgresDialect) LimitClause(pos int) string {
	return fmt.Sprintf("LIMIT $%d", pos)
}

// IsConstraintViolation matches SQLSTATE class 23 (integrity constraint violation).
func (d *PostgresDialect) IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23")
	}
	return false
}
