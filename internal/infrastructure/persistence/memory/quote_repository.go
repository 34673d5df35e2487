package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

// QuoteRepository keeps the latest record per identity in process memory.
type QuoteRepository struct {
	mu      sync.RWMutex
	records map[domain.Identity]domain.CanonicalRecord
	failErr error
}

func NewQuoteRepository() *QuoteRepository {
	return &QuoteRepository{
		records: make(map[domain.Identity]domain.CanonicalRecord),
	}
}

// FailWith makes every write and Ping return err until cleared with nil.
func (r *QuoteRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failErr = err
}

func (r *QuoteRepository) Upsert(ctx context.Context, record domain.CanonicalRecord) error {
	id := record.Identity()
	if err := ctx.Err(); err != nil {
		return &domain.StoreError{Identity: id, Op: "upsert", Err: err}
	}
	if !record.IsValid() {
		return &domain.StoreError{Identity: id, Op: "upsert", Err: fmt.Errorf("%w: invalid identity", domain.ErrConflict)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.failErr != nil {
		return &domain.StoreError{Identity: id, Op: "upsert", Err: r.failErr}
	}
	r.records[id] = record
	return nil
}

func (r *QuoteRepository) UpsertBatch(ctx context.Context, records []domain.CanonicalRecord) []error {
	errs := make([]error, len(records))
	for i, record := range records {
		errs[i] = r.Upsert(ctx, record)
	}
	return errs
}

func (r *QuoteRepository) FindByIdentity(_ context.Context, id domain.Identity) (*domain.CanonicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, &domain.StoreError{Identity: id, Op: "find", Err: domain.ErrRecordNotFound}
	}
	return &record, nil
}

func (r *QuoteRepository) FindAll(_ context.Context, filter domain.RecordFilter) ([]domain.CanonicalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]domain.CanonicalRecord, 0, len(r.records))
	for _, record := range r.records {
		if filter.AssetClass != "" && record.AssetClass != filter.AssetClass {
			continue
		}
		records = append(records, record)
	}
	sortRecords(records)
	return records, nil
}

func (r *QuoteRepository) Search(ctx context.Context, query string, limit int) ([]domain.CanonicalRecord, error) {
	all, err := r.FindAll(ctx, domain.RecordFilter{})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	matches := []domain.CanonicalRecord{}
	for _, record := range all {
		if !strings.Contains(strings.ToLower(record.Symbol), needle) {
			continue
		}
		matches = append(matches, record)
		if limit > 0 && len(matches) == limit {
			break
		}
	}
	return matches, nil
}

func (r *QuoteRepository) SumClose(_ context.Context) (domain.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sum := domain.Zero
	for _, record := range r.records {
		next, err := sum.Add(record.Close)
		if err != nil {
			return domain.Zero, fmt.Errorf("summing close: %w", err)
		}
		sum = next
	}
	return sum, nil
}

func (r *QuoteRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.records)), nil
}

func (r *QuoteRepository) Ping(_ context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.failErr
}

func sortRecords(records []domain.CanonicalRecord) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].AssetClass != records[j].AssetClass {
			return records[i].AssetClass < records[j].AssetClass
		}
		return records[i].Symbol < records[j].Symbol
	})
}

var _ domain.QuoteRepository = (*QuoteRepository)(nil)
