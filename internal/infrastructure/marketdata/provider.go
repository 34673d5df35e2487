package marketdata

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

// FetchResult is the outcome of fetching one symbol. Exactly one of Quote
// and Err is set.
type FetchResult struct {
	Spec  domain.SymbolSpec
	Quote *domain.RawQuote
	Err   error
}

// Adapter fetches quotes from one external provider. Fetch returns one result
// per input spec, in input order; a failing symbol never aborts the batch.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, specs []domain.SymbolSpec) []FetchResult
}

// HistoricalProvider is implemented by adapters that can serve a daily series.
type HistoricalProvider interface {
	History(ctx context.Context, symbol, period, interval string) ([]domain.HistoricalBar, error)
}

// DefaultConcurrency bounds per-provider in-flight requests when Limits is zero.
const DefaultConcurrency = 4

// Limits caps the request pressure an adapter puts on its provider.
type Limits struct {
	Concurrency int
	// Limiter is optional; nil means unlimited rate.
	Limiter *rate.Limiter
}

// NewLimits builds Limits from config values. A non-positive ratePerSec
// disables rate limiting.
func NewLimits(concurrency int, ratePerSec float64, burst int) Limits {
	l := Limits{Concurrency: concurrency}
	if ratePerSec > 0 {
		if burst < 1 {
			burst = 1
		}
		l.Limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return l
}

// FetchFunc fetches a single symbol.
type FetchFunc func(ctx context.Context, spec domain.SymbolSpec) (*domain.RawQuote, error)

// FetchEach calls fn for every spec with bounded concurrency and returns the
// results in input order. Once ctx is done no new requests are issued and the
// remaining specs carry the context error.
func FetchEach(ctx context.Context, specs []domain.SymbolSpec, limits Limits, fn FetchFunc) []FetchResult {
	results := make([]FetchResult, len(specs))
	concurrency := limits.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	g := new(errgroup.Group)
	g.SetLimit(concurrency)
	for i, spec := range specs {
		results[i].Spec = spec
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		g.Go(func() error {
			if limits.Limiter != nil {
				if err := limits.Limiter.Wait(ctx); err != nil {
					results[i].Err = err
					return nil
				}
			}
			quote, err := fn(ctx, spec)
			results[i].Quote, results[i].Err = quote, err
			return nil
		})
	}
	_ = g.Wait()
	return results
}
