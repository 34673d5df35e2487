package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

// DefaultSQLitePath is where the SQLite store lives when no DSN is configured.
const DefaultSQLitePath = "data/price.db"

// quoteModel maps to the pricestable layout, so a SQLite file written by
// earlier releases opens unchanged.
type quoteModel struct {
	ID            uint           `gorm:"primaryKey;autoIncrement"`
	Symbol        string         `gorm:"size:64;not null;uniqueIndex:idx_pricestable_identity"`
	AssetClass    string         `gorm:"size:32;not null;uniqueIndex:idx_pricestable_identity"`
	Date          string         `gorm:"column:date;size:10;not null"`
	Open          domain.Decimal `gorm:"type:decimal(20,6);not null"`
	High          domain.Decimal `gorm:"type:decimal(20,6);not null"`
	Low           domain.Decimal `gorm:"type:decimal(20,6);not null"`
	Close         domain.Decimal `gorm:"type:decimal(20,6);not null"`
	Change        domain.Decimal `gorm:"type:decimal(20,6);not null"`
	ChangePercent domain.Decimal `gorm:"type:decimal(20,6);not null"`
}

func (quoteModel) TableName() string { return "pricestable" }

func toModel(r domain.CanonicalRecord) quoteModel {
	return quoteModel{
		Symbol:        r.Symbol,
		AssetClass:    string(r.AssetClass),
		Date:          r.Date,
		Open:          r.Open,
		High:          r.High,
		Low:           r.Low,
		Close:         r.Close,
		Change:        r.Change,
		ChangePercent: r.ChangePercent,
	}
}

func (m quoteModel) toDomain() domain.CanonicalRecord {
	return domain.CanonicalRecord{
		Symbol:        m.Symbol,
		AssetClass:    domain.AssetClass(m.AssetClass),
		Date:          m.Date,
		Open:          m.Open,
		High:          m.High,
		Low:           m.Low,
		Close:         m.Close,
		Change:        m.Change,
		ChangePercent: m.ChangePercent,
	}
}

// updateColumns are replaced when the identity already exists.
var updateColumns = []string{"date", "open", "high", "low", "close", "change", "change_percent"}

// Open connects to SQLite or MySQL and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = DefaultSQLitePath
		}
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		if dsn == "" {
			return nil, errors.New("mysql requires a DSN")
		}
		dialector = mysql.New(mysql.Config{DSN: dsn})
	default:
		return nil, fmt.Errorf("unsupported gorm driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	repo := NewGormRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate %s: %w", driver, err)
	}
	return db, nil
}

func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create sqlite directory %s: %w", dir, err)
	}
	return nil
}

// GormRepository implements domain.QuoteRepository using GORM.
type GormRepository struct {
	db        *gorm.DB
	precision domain.PrecisionPolicy
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db, precision: domain.DefaultPrecisionPolicy()}
}

// SetPrecision sets the policy used to restore the price scale on read.
// SQLite and MySQL decimal columns do not keep the scale a record was written with.
func (r *GormRepository) SetPrecision(p domain.PrecisionPolicy) {
	r.precision = p
}

// AutoMigrate applies schema changes to the database
func (r *GormRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&quoteModel{})
}

func (r *GormRepository) Upsert(ctx context.Context, record domain.CanonicalRecord) error {
	id := record.Identity()
	if !record.IsValid() {
		return &domain.StoreError{Identity: id, Op: "upsert", Err: fmt.Errorf("%w: invalid identity", domain.ErrConflict)}
	}

	m := toModel(record)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "asset_class"}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).Create(&m).Error
	})
	if err != nil {
		slog.Error("Failed to upsert quote", "symbol", id.Symbol, "asset_class", id.AssetClass, "error", err)
		if isConstraintViolation(err) {
			err = fmt.Errorf("%w: %v", domain.ErrConflict, err)
		}
		return &domain.StoreError{Identity: id, Op: "upsert", Err: err}
	}
	return nil
}

func (r *GormRepository) UpsertBatch(ctx context.Context, records []domain.CanonicalRecord) []error {
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

func (r *GormRepository) FindByIdentity(ctx context.Context, id domain.Identity) (*domain.CanonicalRecord, error) {
	var m quoteModel
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND asset_class = ?", id.Symbol, string(id.AssetClass)).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			slog.Debug("Quote not found", "symbol", id.Symbol, "asset_class", id.AssetClass)
			return nil, &domain.StoreError{Identity: id, Op: "find", Err: domain.ErrRecordNotFound}
		}
		return nil, &domain.StoreError{Identity: id, Op: "find", Err: err}
	}
	record, err := r.precision.Rescale(m.toDomain())
	if err != nil {
		return nil, &domain.StoreError{Identity: id, Op: "find", Err: err}
	}
	return &record, nil
}

func (r *GormRepository) FindAll(ctx context.Context, filter domain.RecordFilter) ([]domain.CanonicalRecord, error) {
	query := r.db.WithContext(ctx).Order("asset_class").Order("symbol")
	if filter.AssetClass != "" {
		query = query.Where("asset_class = ?", string(filter.AssetClass))
	}

	var models []quoteModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("querying quotes: %w", err)
	}
	return r.toDomainSlice(models)
}

func (r *GormRepository) Search(ctx context.Context, q string, limit int) ([]domain.CanonicalRecord, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
	query := r.db.WithContext(ctx).
		Where("LOWER(symbol) LIKE ? ESCAPE '!'", pattern).
		Order("asset_class").Order("symbol")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var models []quoteModel
	if err := query.Find(&models).Error; err != nil {
		return nil, fmt.Errorf("searching quotes: %w", err)
	}
	return r.toDomainSlice(models)
}

func (r *GormRepository) SumClose(ctx context.Context) (domain.Decimal, error) {
	var sum domain.Decimal
	err := r.db.WithContext(ctx).Model(&quoteModel{}).
		Select("COALESCE(SUM(close), 0)").
		Row().Scan(&sum)
	if err != nil {
		return domain.Zero, fmt.Errorf("summing close: %w", err)
	}
	return sum, nil
}

func (r *GormRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&quoteModel{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting quotes: %w", err)
	}
	return n, nil
}

func (r *GormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *GormRepository) toDomainSlice(models []quoteModel) ([]domain.CanonicalRecord, error) {
	records := make([]domain.CanonicalRecord, len(models))
	for i, m := range models {
		record, err := r.precision.Rescale(m.toDomain())
		if err != nil {
			return nil, err
		}
		records[i] = record
	}
	return records, nil
}

func isConstraintViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) ||
		errors.Is(err, gorm.ErrForeignKeyViolated)
}

// '!' escapes LIKE wildcards; a backslash would need quoting under MySQL.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

var _ domain.QuoteRepository = (*GormRepository)(nil)
