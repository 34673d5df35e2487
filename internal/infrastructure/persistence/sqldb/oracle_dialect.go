package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/persistence/sqldb/migrations"
)

type OracleDialect struct{}

func (d *OracleDialect) Name() string { return "oracle" }

func (d *OracleDialect) DriverName() string { return "oracle" }

// Migrate applies the embedded scripts statement by statement. Goose has no
// go-ora dialect, so objects that already exist are skipped instead of tracked.
func (d *OracleDialect) Migrate(ctx context.Context, db *sql.DB) error {
	entries, err := migrations.OracleFS.ReadDir("oracle")
	if err != nil {
		return fmt.Errorf("listing migration files: %w", err)
	}

	for _, entry := range entries {
		content, err := migrations.OracleFS.ReadFile("oracle/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration file: %w", err)
		}

		for _, stmt := range strings.Split(string(content), "\n/") {
			stmt = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), "/"))
			if stmt == "" {
				continue
			}

			if _, err := db.ExecContext(ctx, stmt); err != nil {
				// ORA-00955: name is already used by an existing object
				// ORA-01408: such column list already indexed
				if !strings.Contains(err.Error(), "ORA-00955") && !strings.Contains(err.Error(), "ORA-01408") {
					return fmt.Errorf("migrating %s: %w", entry.Name(), err)
				}
			}
		}
	}
	return nil
}

func (d *OracleDialect) UpsertQuote(ctx context.Context, tx *sql.Tx, r domain.CanonicalRecord) error {
	query := `MERGE INTO quotes q
             USING (SELECT :1 AS symbol_val, :2 AS class_val FROM dual) s
             ON (q.symbol = s.symbol_val AND q.asset_class = s.class_val)
             WHEN MATCHED THEN
               UPDATE SET
                 quote_date = :3,
                 open = :4,
                 high = :5,
                 low = :6,
                 close = :7,
                 change = :8,
                 change_percent = :9
             WHEN NOT MATCHED THEN
               INSERT (symbol, asset_class, quote_date, open, high, low, close, change, change_percent)
               VALUES (:10, :11, :12, :13, :14, :15, :16, :17, :18)`

	class := string(r.AssetClass)
	_, err := tx.ExecContext(ctx, query,
		r.Symbol,        // 1
		class,           // 2
		r.Date,          // 3 (UPDATE)
		r.Open,          // 4
		r.High,          // 5
		r.Low,           // 6
		r.Close,         // 7
		r.Change,        // 8
		r.ChangePercent, // 9
		r.Symbol,        // 10 (INSERT)
		class,           // 11
		r.Date,          // 12
		r.Open,          // 13
		r.High,          // 14
		r.Low,           // 15
		r.Close,         // 16
		r.Change,        // 17
		r.ChangePercent, // 18
	)
	return err
}

func (d *OracleDialect) LimitClause(pos int) string {
	return fmt.Sprintf("FETCH FIRST $%d ROWS ONLY", pos)
}

// IsConstraintViolation matches unique (ORA-00001), not-null (ORA-01400) and
// check (ORA-02290) violations.
func (d *OracleDialect) IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range []string{"ORA-00001", "ORA-01400", "ORA-02290"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
