package marketdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

func specs(names ...string) []domain.SymbolSpec {
	out := make([]domain.SymbolSpec, len(names))
	for i, n := range names {
		out[i] = domain.SymbolSpec{Name: n, AssetClass: domain.AssetClassStock}
	}
	return out
}

func TestFetchEach_PreservesOrderAndIsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	fn := func(_ context.Context, spec domain.SymbolSpec) (*domain.RawQuote, error) {
		if spec.Name == "BAD" {
			return nil, boom
		}
		c := domain.NewDecimalFromInt(int64(len(spec.Name)))
		return &domain.RawQuote{Close: &c}, nil
	}

	results := FetchEach(context.Background(), specs("AAPL", "BAD", "MSFT", "FB"), Limits{Concurrency: 2}, fn)

	require.Len(t, results, 4)
	for i, name := range []string{"AAPL", "BAD", "MSFT", "FB"} {
		assert.Equal(t, name, results[i].Spec.Name)
	}
	assert.ErrorIs(t, results[1].Err, boom)
	assert.Nil(t, results[1].Quote)
	for _, i := range []int{0, 2, 3} {
		assert.NoError(t, results[i].Err)
		require.NotNil(t, results[i].Quote)
	}
}

func TestFetchEach_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	fn := func(_ context.Context, _ domain.SymbolSpec) (*domain.RawQuote, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return &domain.RawQuote{}, nil
	}

	FetchEach(context.Background(), specs("A", "B", "C", "D", "E", "F", "G", "H"), Limits{Concurrency: 3}, fn)

	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestFetchEach_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	fn := func(_ context.Context, _ domain.SymbolSpec) (*domain.RawQuote, error) {
		calls.Add(1)
		return &domain.RawQuote{}, nil
	}

	results := FetchEach(ctx, specs("A", "B"), Limits{}, fn)

	assert.Zero(t, calls.Load())
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
	}
}

func TestNewLimits(t *testing.T) {
	assert.Nil(t, NewLimits(2, 0, 0).Limiter)

	l := NewLimits(2, 5, 0)
	require.NotNil(t, l.Limiter)
	assert.Equal(t, 1, l.Limiter.Burst())
}

func TestDefaultSymbolTable(t *testing.T) {
	table := DefaultSymbolTable()

	assert.Len(t, table.Stocks, 8)
	assert.Len(t, table.Equities, 4)
	assert.Len(t, table.Commodities, 3)
	assert.Len(t, table.Forex, 7)
	assert.Equal(t, "^GSPC", table.Equities[0].RequestSymbol())
	assert.Equal(t, "JPY=X", table.Forex[2].ProviderSymbol)
	for _, s := range table.Forex {
		assert.Equal(t, domain.AssetClassForex, s.AssetClass)
	}
}

func TestLoadSymbolTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	content := `
stocks:
  - name: IBM
equities:
  - name: Nikkei 225
    provider_symbol: ^N225
    asset_class: stock
forex:
  - name: USD/JPY
    provider_symbol: JPY=X
    symbols:
      twelvedata: USD/JPY:FXCM
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := LoadSymbolTable(path)
	require.NoError(t, err)

	require.Len(t, table.Stocks, 1)
	assert.Equal(t, "IBM", table.Stocks[0].RequestSymbol())
	require.Len(t, table.Equities, 1)
	assert.Equal(t, domain.AssetClassEquities, table.Equities[0].AssetClass)
	require.Len(t, table.Forex, 1)
	assert.Equal(t, "USD/JPY:FXCM", table.Forex[0].SymbolFor("twelvedata", table.Forex[0].Name))
	assert.Equal(t, "JPY=X", table.Forex[0].SymbolFor("yfinance", table.Forex[0].RequestSymbol()))
	assert.Len(t, table.Commodities, 3, "sections absent from the file keep defaults")
}

func TestLoadSymbolTable_Errors(t *testing.T) {
	_, err := LoadSymbolTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("stocks:\n  - provider_symbol: X\n"), 0o600))
	_, err = LoadSymbolTable(path)
	assert.Error(t, err)
}
