package domain

import "context"

// RecordFilter narrows FindAll. A zero value matches every record.
type RecordFilter struct {
	AssetClass AssetClass
}

// QuoteRepository persists the latest CanonicalRecord per Identity.
// All methods accept context.Context so cancellation reaches the driver.
type QuoteRepository interface {
	// Upsert inserts the record, or replaces every non-identity field of the
	// existing record with the same Identity, atomically.
	Upsert(ctx context.Context, record CanonicalRecord) error
	// UpsertBatch upserts each record independently and returns one result
	// per input record, in order.
	UpsertBatch(ctx context.Context, records []CanonicalRecord) []error
	FindByIdentity(ctx context.Context, id Identity) (*CanonicalRecord, error)
	FindAll(ctx context.Context, filter RecordFilter) ([]CanonicalRecord, error)
	Search(ctx context.Context, query string, limit int) ([]CanonicalRecord, error)
	SumClose(ctx context.Context) (Decimal, error)
	Count(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
}
