package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// Summary is the aggregate view of the store.
type Summary struct {
	Count    int64          `json:"count"`
	SumClose domain.Decimal `json:"sum_close"`
}

// AssetService is the read side over stored records.
type AssetService struct {
	repo domain.QuoteRepository
}

func NewAssetService(repo domain.QuoteRepository) *AssetService {
	return &AssetService{repo: repo}
}

// List returns every stored record, optionally restricted to one class.
func (s *AssetService) List(ctx context.Context, assetClass string) ([]domain.CanonicalRecord, error) {
	filter := domain.RecordFilter{}
	if strings.TrimSpace(assetClass) != "" {
		class, err := domain.ParseAssetClass(assetClass)
		if err != nil {
			return nil, err
		}
		filter.AssetClass = class
	}

	records, err := s.repo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return records, nil
}

// Search clamps limit to [1, MaxSearchLimit]; zero means DefaultSearchLimit.
func (s *AssetService) Search(ctx context.Context, query string, limit int) ([]domain.CanonicalRecord, error) {
	switch {
	case limit <= 0:
		limit = DefaultSearchLimit
	case limit > MaxSearchLimit:
		limit = MaxSearchLimit
	}

	records, err := s.repo.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search assets: %w", err)
	}
	return records, nil
}

func (s *AssetService) Get(ctx context.Context, symbol, assetClass string) (*domain.CanonicalRecord, error) {
	class, err := domain.ParseAssetClass(assetClass)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByIdentity(ctx, domain.Identity{Symbol: symbol, AssetClass: class})
}

func (s *AssetService) Summary(ctx context.Context) (Summary, error) {
	count, err := s.repo.Count(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to count assets: %w", err)
	}
	sum, err := s.repo.SumClose(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to sum close: %w", err)
	}
	return Summary{Count: count, SumClose: sum}, nil
}
