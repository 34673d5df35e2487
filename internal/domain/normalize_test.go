package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asOf = time.Date(2025, 7, 15, 10, 30, 0, 0, time.UTC)

func dec(t *testing.T, s string) *Decimal {
	t.Helper()
	d, err := NewDecimalFromString(s)
	require.NoError(t, err)
	return &d
}

func quote(t *testing.T, open, high, low, closePrice string) RawQuote {
	t.Helper()
	return RawQuote{
		Open:  dec(t, open),
		High:  dec(t, high),
		Low:   dec(t, low),
		Close: dec(t, closePrice),
	}
}

func TestNormalize_ScenarioA_PositiveChange(t *testing.T) {
	n := NewNormalizer(nil)

	rec, err := n.Normalize("AAPL", quote(t, "100.00", "106", "99.5", "105.00"), AssetClassStock, asOf)
	require.NoError(t, err)

	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, AssetClassStock, rec.AssetClass)
	assert.Equal(t, "2025-07-15", rec.Date)
	assert.Equal(t, "5.00", rec.Change.String())
	assert.Equal(t, "5.00", rec.ChangePercent.String())
	assert.Equal(t, "106.00", rec.High.String())
	assert.Equal(t, "99.50", rec.Low.String())
}

func TestNormalize_ScenarioB_ZeroOpen(t *testing.T) {
	n := NewNormalizer(nil)

	rec, err := n.Normalize("ZERO", quote(t, "0", "10", "0", "10"), AssetClassStock, asOf)
	require.NoError(t, err)

	assert.True(t, rec.Change.Equal(NewDecimalFromInt(10)), "change = %s", rec.Change)
	assert.True(t, rec.ChangePercent.IsZero(), "change_percent = %s", rec.ChangePercent)
}

func TestNormalize_RoundsToClassPrecision(t *testing.T) {
	policy := DefaultPrecisionPolicy().WithPlaces(AssetClassEquities, 3)
	n := NewNormalizer(policy)

	equity, err := n.Normalize("S&P 500", quote(t, "5432.12345", "5450.9999", "5400.0004", "5440.5555"), AssetClassEquities, asOf)
	require.NoError(t, err)
	assert.Equal(t, "5432.123", equity.Open.String())
	assert.Equal(t, "5451.000", equity.High.String())
	assert.Equal(t, "5400.000", equity.Low.String())
	assert.Equal(t, "5440.556", equity.Close.String())
	assert.Equal(t, "8.433", equity.Change.String())

	forex, err := n.Normalize("EUR/USD", quote(t, "1.08449", "1.0899", "1.0801", "1.0855"), AssetClassForex, asOf)
	require.NoError(t, err)
	assert.Equal(t, "1.08", forex.Open.String())
	assert.Equal(t, "1.09", forex.Close.String())
}

func TestNormalize_RoundsHalfUp(t *testing.T) {
	n := NewNormalizer(nil)

	rec, err := n.Normalize("Gold", quote(t, "2350.125", "2360.005", "2340.004", "2355.135"), AssetClassCommodities, asOf)
	require.NoError(t, err)

	assert.Equal(t, "2350.13", rec.Open.String())
	assert.Equal(t, "2360.01", rec.High.String())
	assert.Equal(t, "2340.00", rec.Low.String())
	assert.Equal(t, "2355.14", rec.Close.String())
	assert.Equal(t, "5.01", rec.Change.String())
}

func TestNormalize_ChangePercentMatchesDefinition(t *testing.T) {
	n := NewNormalizer(nil)
	cases := []struct {
		open, closePrice string
		expected         string
	}{
		{"100", "105", "5.00"},
		{"200", "150", "-25.00"},
		{"3", "4", "33.33"},
		{"3", "5", "66.67"},
		{"187.35", "189.12", "0.94"},
	}

	for _, tc := range cases {
		t.Run(tc.open+"->"+tc.closePrice, func(t *testing.T) {
			rec, err := n.Normalize("X", quote(t, tc.open, tc.closePrice, tc.open, tc.closePrice), AssetClassStock, asOf)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, rec.ChangePercent.String())
		})
	}
}

func TestNormalize_MissingFieldIsIncompleteQuote(t *testing.T) {
	n := NewNormalizer(nil)
	fields := []string{"open", "high", "low", "close"}

	for _, field := range fields {
		t.Run(field, func(t *testing.T) {
			q := quote(t, "1", "2", "0.5", "1.5")
			switch field {
			case "open":
				q.Open = nil
			case "high":
				q.High = nil
			case "low":
				q.Low = nil
			case "close":
				q.Close = nil
			}

			_, err := n.Normalize("AAPL", q, AssetClassStock, asOf)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIncompleteQuote))

			var nerr *NormalizeError
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, field, nerr.Field)
			assert.Equal(t, "AAPL", nerr.Symbol)
		})
	}
}

func TestNormalize_UnknownAssetClass(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize("BTC", quote(t, "1", "1", "1", "1"), AssetClass("crypto"), asOf)
	assert.ErrorIs(t, err, ErrUnknownAssetClass)
}

func TestNormalize_IsDeterministic(t *testing.T) {
	n := NewNormalizer(nil)
	q := quote(t, "187.3456", "190.01", "186.2", "189.999")

	first, err := n.Normalize("AAPL", q, AssetClassStock, asOf)
	require.NoError(t, err)
	second, err := n.Normalize("AAPL", q, AssetClassStock, asOf)
	require.NoError(t, err)

	assert.Equal(t, first.Close.String(), second.Close.String())
	assert.Equal(t, first.ChangePercent.String(), second.ChangePercent.String())
}
