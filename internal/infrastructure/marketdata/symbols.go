package marketdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
)

// SymbolTable groups the configured symbols by asset class.
type SymbolTable struct {
	Stocks      []domain.SymbolSpec `yaml:"stocks"`
	Equities    []domain.SymbolSpec `yaml:"equities"`
	Commodities []domain.SymbolSpec `yaml:"commodities"`
	Forex       []domain.SymbolSpec `yaml:"forex"`
}

// DefaultSymbolTable returns the built-in symbol set. Forex names double as
// the TwelveData symbol; ProviderSymbol is the Yahoo syntax. A symbols file
// entry may set `symbols: {<provider>: <symbol>}` to override either per provider.
func DefaultSymbolTable() SymbolTable {
	stock := func(s string) domain.SymbolSpec {
		return domain.SymbolSpec{Name: s, ProviderSymbol: s, AssetClass: domain.AssetClassStock}
	}
	spec := func(name, symbol string, class domain.AssetClass) domain.SymbolSpec {
		return domain.SymbolSpec{Name: name, ProviderSymbol: symbol, AssetClass: class}
	}

	return SymbolTable{
		Stocks: []domain.SymbolSpec{
			stock("AAPL"), stock("GOOGL"), stock("AMZN"), stock("MSFT"),
			stock("TSLA"), stock("FB"), stock("NFLX"), stock("NVDA"),
		},
		Equities: []domain.SymbolSpec{
			spec("S&P 500", "^GSPC", domain.AssetClassEquities),
			spec("Nasdaq", "^IXIC", domain.AssetClassEquities),
			spec("FTSE 100", "^FTSE", domain.AssetClassEquities),
			spec("DAX", "^GDAXI", domain.AssetClassEquities),
		},
		Commodities: []domain.SymbolSpec{
			spec("Gold", "GC=F", domain.AssetClassCommodities),
			spec("Crude Oil", "CL=F", domain.AssetClassCommodities),
			spec("Natural Gas", "NG=F", domain.AssetClassCommodities),
		},
		Forex: []domain.SymbolSpec{
			spec("EUR/USD", "EURUSD=X", domain.AssetClassForex),
			spec("GBP/USD", "GBPUSD=X", domain.AssetClassForex),
			spec("USD/JPY", "JPY=X", domain.AssetClassForex),
			spec("AUD/USD", "AUDUSD=X", domain.AssetClassForex),
			spec("USD/CAD", "CAD=X", domain.AssetClassForex),
			spec("USD/CHF", "CHF=X", domain.AssetClassForex),
			spec("NZD/USD", "NZDUSD=X", domain.AssetClassForex),
		},
	}
}

// LoadSymbolTable reads a YAML symbol file. Sections missing from the file
// keep their defaults, and each entry's asset class is set from its section.
func LoadSymbolTable(path string) (SymbolTable, error) {
	table := DefaultSymbolTable()
	if path == "" {
		return table, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return SymbolTable{}, fmt.Errorf("failed to read symbols file: %w", err)
	}

	var file SymbolTable
	if err := yaml.Unmarshal(data, &file); err != nil {
		return SymbolTable{}, fmt.Errorf("failed to parse symbols file %s: %w", path, err)
	}

	sections := []struct {
		from  []domain.SymbolSpec
		into  *[]domain.SymbolSpec
		class domain.AssetClass
	}{
		{file.Stocks, &table.Stocks, domain.AssetClassStock},
		{file.Equities, &table.Equities, domain.AssetClassEquities},
		{file.Commodities, &table.Commodities, domain.AssetClassCommodities},
		{file.Forex, &table.Forex, domain.AssetClassForex},
	}
	for _, s := range sections {
		if s.from == nil {
			continue
		}
		specs := make([]domain.SymbolSpec, 0, len(s.from))
		for _, spec := range s.from {
			if spec.Name == "" {
				return SymbolTable{}, fmt.Errorf("symbols file %s: %s entry without a name", path, s.class)
			}
			spec.AssetClass = s.class
			specs = append(specs, spec)
		}
		*s.into = specs
	}
	return table, nil
}
