package domain

import "time"

// SymbolSpec ties a display symbol to the identifier a provider expects and
// to the asset class the resulting record is stored under.
type SymbolSpec struct {
	Name           string     `json:"name" yaml:"name"`
	ProviderSymbol string     `json:"provider_symbol" yaml:"provider_symbol"`
	AssetClass     AssetClass `json:"asset_class" yaml:"asset_class"`
	// Symbols overrides the request symbol per provider name.
	Symbols map[string]string `json:"symbols,omitempty" yaml:"symbols"`
}

// Identity returns the storage identity a quote for this spec will have.
func (s SymbolSpec) Identity() Identity {
	return Identity{Symbol: s.Name, AssetClass: s.AssetClass}
}

// RequestSymbol is the provider symbol, or the display name when no mapping is configured.
func (s SymbolSpec) RequestSymbol() string {
	if s.ProviderSymbol != "" {
		return s.ProviderSymbol
	}
	return s.Name
}

// SymbolFor returns the symbol configured for provider, or fallback when the
// spec carries no override for it.
func (s SymbolSpec) SymbolFor(provider, fallback string) string {
	if symbol := s.Symbols[provider]; symbol != "" {
		return symbol
	}
	return fallback
}

// RawQuote is a provider payload before normalization. Nil price fields mean
// the provider did not report them.
type RawQuote struct {
	Open      *Decimal
	High      *Decimal
	Low       *Decimal
	Close     *Decimal
	Volume    *Decimal
	Timestamp *time.Time
}

// HistoricalBar is one row of a historical series served by the read endpoint.
type HistoricalBar struct {
	Date   string  `json:"date"`
	Open   Decimal `json:"open"`
	High   Decimal `json:"high"`
	Low    Decimal `json:"low"`
	Close  Decimal `json:"close"`
	Volume Decimal `json:"volume"`
}
