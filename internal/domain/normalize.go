package domain

import (
	"fmt"
	"time"
)

// Normalizer turns provider quotes into canonical records.
type Normalizer struct {
	Precision PrecisionPolicy
}

func NewNormalizer(precision PrecisionPolicy) Normalizer {
	if precision == nil {
		precision = DefaultPrecisionPolicy()
	}
	return Normalizer{Precision: precision}
}

// Normalize rounds the price fields to the class precision and derives change
// and change percent from the rounded open and close. A missing price field
// is an error; it is never defaulted to zero.
func (n Normalizer) Normalize(symbol string, raw RawQuote, class AssetClass, asOf time.Time) (CanonicalRecord, error) {
	if !class.IsValid() {
		return CanonicalRecord{}, &NormalizeError{Symbol: symbol, Err: fmt.Errorf("%w: %q", ErrUnknownAssetClass, class)}
	}

	fields := []struct {
		name  string
		value *Decimal
	}{
		{"open", raw.Open},
		{"high", raw.High},
		{"low", raw.Low},
		{"close", raw.Close},
	}
	places := n.Precision.Places(class)
	rounded := make([]Decimal, len(fields))
	for i, f := range fields {
		if f.value == nil {
			return CanonicalRecord{}, &NormalizeError{Symbol: symbol, Field: f.name, Err: ErrIncompleteQuote}
		}
		v, err := f.value.Round(places)
		if err != nil {
			return CanonicalRecord{}, &NormalizeError{Symbol: symbol, Field: f.name, Err: err}
		}
		rounded[i] = v
	}
	open, high, low, closePrice := rounded[0], rounded[1], rounded[2], rounded[3]

	change, err := closePrice.Sub(open)
	if err != nil {
		return CanonicalRecord{}, &NormalizeError{Symbol: symbol, Err: err}
	}
	if change, err = change.Round(places); err != nil {
		return CanonicalRecord{}, &NormalizeError{Symbol: symbol, Err: err}
	}

	percent, err := change.PercentOf(open)
	if err != nil {
		return CanonicalRecord{}, &NormalizeError{Symbol: symbol, Err: err}
	}
	if percent, err = percent.Round(places); err != nil {
		return CanonicalRecord{}, &NormalizeError{Symbol: symbol, Err: err}
	}

	return CanonicalRecord{
		Symbol:        symbol,
		AssetClass:    class,
		Date:          asOf.Format(DateLayout),
		Open:          open,
		High:          high,
		Low:           low,
		Close:         closePrice,
		Change:        change,
		ChangePercent: percent,
	}, nil
}
