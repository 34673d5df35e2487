package application

import (
	"time"
	_ "time/tzdata"
)

// MarketHours is the trading window gate, evaluated in Location.
type MarketHours struct {
	Location *time.Location
	// Open and Close are offsets from local midnight.
	Open  time.Duration
	Close time.Duration
	// Disabled makes IsOpen always true.
	Disabled bool
}

// DefaultMarketHours is the NYSE regular session.
func DefaultMarketHours() MarketHours {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return MarketHours{
		Location: loc,
		Open:     9*time.Hour + 30*time.Minute,
		Close:    16 * time.Hour,
	}
}

// IsOpen reports whether t falls on a weekday within [Open, Close].
func (m MarketHours) IsOpen(t time.Time) bool {
	if m.Disabled {
		return true
	}
	loc := m.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	// wall-clock offset, so DST transition days keep the same window
	offset := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second
	return offset >= m.Open && offset <= m.Close
}
