package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata"
)

const (
	DefaultHistoryPeriod   = "1mo"
	DefaultHistoryInterval = "1d"
)

// ErrInvalidHistoryRequest marks a period or interval the provider does not accept.
var ErrInvalidHistoryRequest = errors.New("invalid history request")

var (
	validPeriods = map[string]bool{
		"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
		"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
	}
	validIntervals = map[string]bool{
		"1m": true, "2m": true, "5m": true, "15m": true, "30m": true, "60m": true, "90m": true,
		"1h": true, "1d": true, "5d": true, "1wk": true, "1mo": true, "3mo": true,
	}
)

// HistoryCache stores historical series by request key.
type HistoryCache interface {
	Get(ctx context.Context, key string) ([]domain.HistoricalBar, bool, error)
	Set(ctx context.Context, key string, bars []domain.HistoricalBar) error
}

// HistoryService serves daily series straight from the provider. It never
// reads or writes the quote store.
type HistoryService struct {
	provider marketdata.HistoricalProvider
	cache    HistoryCache
}

// NewHistoryService builds the service; cache may be nil.
func NewHistoryService(provider marketdata.HistoricalProvider, cache HistoryCache) *HistoryService {
	return &HistoryService{provider: provider, cache: cache}
}

func (s *HistoryService) History(ctx context.Context, symbol, period, interval string) ([]domain.HistoricalBar, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidHistoryRequest)
	}
	if period == "" {
		period = DefaultHistoryPeriod
	}
	if interval == "" {
		interval = DefaultHistoryInterval
	}
	if !validPeriods[period] {
		return nil, fmt.Errorf("%w: unsupported period %q", ErrInvalidHistoryRequest, period)
	}
	if !validIntervals[interval] {
		return nil, fmt.Errorf("%w: unsupported interval %q", ErrInvalidHistoryRequest, interval)
	}

	key := historyKey(symbol, period, interval)
	if s.cache != nil {
		bars, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.WarnContext(ctx, "History cache read failed", "key", key, "error", err)
		} else if ok {
			slog.DebugContext(ctx, "History cache hit", "key", key)
			return bars, nil
		}
	}

	bars, err := s.provider.History(ctx, symbol, period, interval)
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, domain.NewFetchError("history", symbol, domain.ErrNoData, "empty series")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, bars); err != nil {
			slog.WarnContext(ctx, "History cache write failed", "key", key, "error", err)
		}
	}
	return bars, nil
}

func historyKey(symbol, period, interval string) string {
	return strings.ToUpper(symbol) + "|" + period + "|" + interval
}
