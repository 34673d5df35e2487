package sqldb

import (
	"context"
	"database/sql"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

// Dialect isolates the SQL that differs between database engines. Shared
// queries are written with $N placeholders and rebound per dialect.
type Dialect interface {
	Name() string
	DriverName() string
	Migrate(ctx context.Context, db *sql.DB) error
	UpsertQuote(ctx context.Context, tx *sql.Tx, r domain.CanonicalRecord) error
	// LimitClause renders a row limit bound to placeholder position pos.
	LimitClause(pos int) string
	// IsConstraintViolation reports whether err is an integrity constraint failure.
	IsConstraintViolation(err error) bool
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, bool) {
	switch name {
	case "postgres":
		return &PostgresDialect{}, true
	case "oracle":
		return &OracleDialect{}, true
	default:
		return nil, false
	}
}
