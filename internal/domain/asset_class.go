package domain

import (
	"fmt"
	"strings"
)

type AssetClass string

const (
	AssetClassStock       AssetClass = "stock"
	AssetClassEquities    AssetClass = "equities"
	AssetClassCommodities AssetClass = "commodities"
	AssetClassForex       AssetClass = "forex"
)

// AssetClasses lists the known classes in the order cycles process them.
var AssetClasses = []AssetClass{
	AssetClassStock,
	AssetClassForex,
	AssetClassEquities,
	AssetClassCommodities,
}

// ParseAssetClass accepts any casing and surrounding whitespace.
func ParseAssetClass(s string) (AssetClass, error) {
	class := AssetClass(strings.ToLower(strings.TrimSpace(s)))
	if !class.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAssetClass, s)
	}
	return class, nil
}

func (c AssetClass) IsValid() bool {
	for _, known := range AssetClasses {
		if c == known {
			return true
		}
	}
	return false
}

func (c AssetClass) String() string {
	return string(c)
}

// DefaultPricePlaces is the rounding precision for any class without an override.
const DefaultPricePlaces int32 = 2

// PrecisionPolicy maps an asset class to the number of decimal places its
// prices and derived fields are rounded to.
type PrecisionPolicy map[AssetClass]int32

// DefaultPrecisionPolicy rounds every class to two places. Equities are the
// only class whose precision is expected to be overridden.
func DefaultPrecisionPolicy() PrecisionPolicy {
	return PrecisionPolicy{
		AssetClassStock:       DefaultPricePlaces,
		AssetClassEquities:    DefaultPricePlaces,
		AssetClassCommodities: DefaultPricePlaces,
		AssetClassForex:       DefaultPricePlaces,
	}
}

// Places returns the precision for class, falling back to DefaultPricePlaces.
func (p PrecisionPolicy) Places(class AssetClass) int32 {
	if places, ok := p[class]; ok && places >= 0 {
		return places
	}
	return DefaultPricePlaces
}

// WithPlaces returns a copy of p with class set to places.
func (p PrecisionPolicy) WithPlaces(class AssetClass, places int32) PrecisionPolicy {
	out := make(PrecisionPolicy, len(p)+1)
	for k, v := range p {
		out[k] = v
	}
	out[class] = places
	return out
}

// Rescale rounds every price field of r to its class precision. Stores whose
// numeric columns drop trailing zeros use it on read.
func (p PrecisionPolicy) Rescale(r CanonicalRecord) (CanonicalRecord, error) {
	places := p.Places(r.AssetClass)
	for _, field := range []*Decimal{&r.Open, &r.High, &r.Low, &r.Close, &r.Change, &r.ChangePercent} {
		v, err := field.Round(places)
		if err != nil {
			return CanonicalRecord{}, fmt.Errorf("rescale %s: %w", r.Identity(), err)
		}
		*field = v
	}
	return r, nil
}
