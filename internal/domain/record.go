package domain

import "fmt"

// DateLayout is the format of CanonicalRecord.Date.
const DateLayout = "2006-01-02"

// Identity is the composite key of a stored record.
type Identity struct {
	Symbol     string     `json:"symbol"`
	AssetClass AssetClass `json:"asset_class"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/%s", i.AssetClass, i.Symbol)
}

// CanonicalRecord is the latest known quote for one identity.
type CanonicalRecord struct {
	Symbol        string     `json:"symbol"`
	AssetClass    AssetClass `json:"asset_class"`
	Date          string     `json:"date"`
	Open          Decimal    `json:"open"`
	High          Decimal    `json:"high"`
	Low           Decimal    `json:"low"`
	Close         Decimal    `json:"close"`
	Change        Decimal    `json:"change"`
	ChangePercent Decimal    `json:"change_percent"`
}

func (r CanonicalRecord) Identity() Identity {
	return Identity{Symbol: r.Symbol, AssetClass: r.AssetClass}
}

// IsValid reports whether the identity columns are populated.
func (r CanonicalRecord) IsValid() bool {
	return r.Symbol != "" && r.AssetClass.IsValid()
}
