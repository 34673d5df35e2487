package application

import (
	"context"
	"sync"
	"time"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata"
)

type mockAdapter struct {
	name      string
	mu        sync.Mutex
	calls     int
	fetchFunc func(ctx context.Context, spec domain.SymbolSpec) (*domain.RawQuote, error)
}

func (m *mockAdapter) Name() string { return m.name }

func (m *mockAdapter) Fetch(ctx context.Context, specs []domain.SymbolSpec) []marketdata.FetchResult {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return marketdata.FetchEach(ctx, specs, marketdata.Limits{Concurrency: 2}, m.fetchFunc)
}

func (m *mockAdapter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRecorder struct {
	mu                sync.Mutex
	fetchFailures     map[string]int
	normalizeFailures map[string]int
	stored, failed    int
	cycles            int
	lastTotal         int64
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{fetchFailures: map[string]int{}, normalizeFailures: map[string]int{}}
}

func (m *mockRecorder) ObserveFetchFailure(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchFailures[source]++
}

func (m *mockRecorder) ObserveNormalizeFailure(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.normalizeFailures[source]++
}

func (m *mockRecorder) ObserveStore(stored, failed int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored += stored
	m.failed += failed
}

func (m *mockRecorder) ObserveCycle(total int64, _ time.Duration, _ time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycles++
	m.lastTotal = total
}

type mockRunner struct {
	mu       sync.Mutex
	cycles   int
	runFunc  func(ctx context.Context) CycleReport
	pingFunc func(ctx context.Context) error
}

func (m *mockRunner) RunCycle(ctx context.Context) CycleReport {
	m.mu.Lock()
	m.cycles++
	fn := m.runFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx)
	}
	return CycleReport{Stored: 1}
}

func (m *mockRunner) Ping(ctx context.Context) error {
	if m.pingFunc != nil {
		return m.pingFunc(ctx)
	}
	return nil
}

func (m *mockRunner) CycleCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles
}

type mockHistoryProvider struct {
	calls       int
	historyFunc func(ctx context.Context, symbol, period, interval string) ([]domain.HistoricalBar, error)
}

func (m *mockHistoryProvider) History(ctx context.Context, symbol, period, interval string) ([]domain.HistoricalBar, error) {
	m.calls++
	return m.historyFunc(ctx, symbol, period, interval)
}

func mustDecimal(s string) *domain.Decimal {
	d, err := domain.NewDecimalFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func quote(open, high, low, close string) *domain.RawQuote {
	return &domain.RawQuote{
		Open:  mustDecimal(open),
		High:  mustDecimal(high),
		Low:   mustDecimal(low),
		Close: mustDecimal(close),
	}
}
