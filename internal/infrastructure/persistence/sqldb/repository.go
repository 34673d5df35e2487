package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

const selectColumns = `symbol, asset_class, quote_date, open, high, low, close, change, change_percent`

// Repository implements domain.QuoteRepository over database/sql.
type Repository struct {
	db        *DB
	precision domain.PrecisionPolicy
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db, precision: domain.DefaultPrecisionPolicy()}
}

// SetPrecision sets the policy used to restore the price scale on read.
// Oracle NUMBER columns drop trailing zeros.
func (r *Repository) SetPrecision(p domain.PrecisionPolicy) {
	r.precision = p
}

// Upsert writes one record in its own transaction.
func (r *Repository) Upsert(ctx context.Context, record domain.CanonicalRecord) error {
	id := record.Identity()
	if !record.IsValid() {
		return &domain.StoreError{Identity: id, Op: "upsert", Err: fmt.Errorf("%w: invalid identity", domain.ErrConflict)}
	}

	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		return r.db.Dialect.UpsertQuote(ctx, tx, record)
	})
	if err != nil {
		slog.Error("Failed to upsert quote", "symbol", id.Symbol, "asset_class", id.AssetClass, "error", err)
		return r.storeError(id, "upsert", err)
	}
	return nil
}

// UpsertBatch upserts every record independently; one failure does not roll
// back the others.
func (r *Repository) UpsertBatch(ctx context.Context, records []domain.CanonicalRecord) []error {
	errs := make([]error, len(records))
	for i, record := range records {
		if err := ctx.Err(); err != nil {
			errs[i] = &domain.StoreError{Identity: record.Identity(), Op: "upsert", Err: err}
			continue
		}
		errs[i] = r.Upsert(ctx, record)
	}
	return errs
}

func (r *Repository) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.CanonicalRecord, error) {
	query := r.rebind(`SELECT ` + selectColumns + ` FROM quotes WHERE symbol = $1 AND asset_class = $2`)

	record, err := scanRecord(r.db.QueryRowContext(ctx, query, id.Symbol, string(id.AssetClass)))
	if errors.Is(err, sql.ErrNoRows) {
		slog.Debug("Quote not found", "symbol", id.Symbol, "asset_class", id.AssetClass)
		return nil, &domain.StoreError{Identity: id, Op: "find", Err: domain.ErrRecordNotFound}
	}
	if err != nil {
		return nil, &domain.StoreError{Identity: id, Op: "find", Err: err}
	}
	if record, err = r.precision.Rescale(record); err != nil {
		return nil, &domain.StoreError{Identity: id, Op: "find", Err: err}
	}
	return &record, nil
}

func (r *Repository) FindAll(ctx context.Context, filter domain.RecordFilter) ([]domain.CanonicalRecord, error) {
	query := `SELECT ` + selectColumns + ` FROM quotes`
	var args []any
	if filter.AssetClass != "" {
		query += ` WHERE asset_class = $1`
		args = append(args, string(filter.AssetClass))
	}
	query += ` ORDER BY asset_class, symbol`

	return r.queryRecords(ctx, r.rebind(query), args...)
}

// Search matches query case-insensitively anywhere in the symbol.
func (r *Repository) Search(ctx context.Context, query string, limit int) ([]domain.CanonicalRecord, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
	stmt := `SELECT ` + selectColumns + ` FROM quotes WHERE LOWER(symbol) LIKE $1 ESCAPE '\' ORDER BY asset_class, symbol`
	args := []any{pattern}
	if limit > 0 {
		stmt += " " + r.db.Dialect.LimitClause(2)
		args = append(args, limit)
	}

	return r.queryRecords(ctx, r.rebind(stmt), args...)
}

func (r *Repository) SumClose(ctx context.Context) (domain.Decimal, error) {
	var sum domain.Decimal
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(close), 0) FROM quotes`).Scan(&sum); err != nil {
		return domain.Zero, fmt.Errorf("summing close: %w", err)
	}
	return sum, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quotes`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting quotes: %w", err)
	}
	return n, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) queryRecords(ctx context.Context, query string, args ...any) ([]domain.CanonicalRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying quotes: %w", err)
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	records := []domain.CanonicalRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if record, err = r.precision.Rescale(record); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (domain.CanonicalRecord, error) {
	var rec domain.CanonicalRecord
	var class string
	err := s.Scan(
		&rec.Symbol, &class, &rec.Date,
		&rec.Open, &rec.High, &rec.Low, &rec.Close, &rec.Change, &rec.ChangePercent,
	)
	rec.AssetClass = domain.AssetClass(class)
	return rec, err
}

func (r *Repository) storeError(id domain.Identity, op string, err error) error {
	if r.db.Dialect.IsConstraintViolation(err) {
		err = fmt.Errorf("%w: %v", domain.ErrConflict, err)
	}
	return &domain.StoreError{Identity: id, Op: op, Err: err}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *Repository) rebind(query string) string {
	if r.db.Dialect.Name() == "oracle" {
		for i := 9; i >= 1; i-- {
			query = strings.ReplaceAll(query, fmt.Sprintf("$%d", i), fmt.Sprintf(":%d", i))
		}
	}
	return query
}

var _ domain.QuoteRepository = (*Repository)(nil)
