package domain

import (
	"encoding/json"
	"testing"
)

func mustDecimal(t *testing.T, s string) Decimal {
	t.Helper()
	d, err := NewDecimalFromString(s)
	if err != nil {
		t.Fatalf("NewDecimalFromString(%q): %v", s, err)
	}
	return d
}

func TestNewDecimalFromString(t *testing.T) {
	testCases := []struct {
		name        string
		value       string
		expectError bool
		expected    string
	}{
		{"integer", "100", false, "100"},
		{"fraction", "187.35", false, "187.35"},
		{"negative", "-0.25", false, "-0.25"},
		{"garbage", "n/a", true, ""},
		{"empty", "", true, ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := NewDecimalFromString(tc.value)
			if tc.expectError {
				if err == nil {
					t.Fatalf("expected error for %q", tc.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.String() != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, d)
			}
		})
	}
}

func TestNewDecimalFromFloat_UsesShortestRepresentation(t *testing.T) {
	testCases := []struct {
		value    float64
		expected string
	}{
		{1.0845, "1.0845"},
		{0.1, "0.1"},
		{189.12, "189.12"},
		{150, "150"},
	}

	for _, tc := range testCases {
		d, err := NewDecimalFromFloat(tc.value)
		if err != nil {
			t.Fatalf("NewDecimalFromFloat(%v): %v", tc.value, err)
		}
		if d.String() != tc.expected {
			t.Errorf("expected %s, got %s", tc.expected, d)
		}
	}
}

func TestDecimal_Arithmetic(t *testing.T) {
	a := mustDecimal(t, "105.50")
	b := mustDecimal(t, "100.25")

	sum, err := a.Add(b)
	if err != nil || sum.String() != "205.75" {
		t.Errorf("Add = %s, %v", sum, err)
	}
	diff, err := a.Sub(b)
	if err != nil || diff.String() != "5.25" {
		t.Errorf("Sub = %s, %v", diff, err)
	}
	prod, err := mustDecimal(t, "2.5").Mul(NewDecimalFromInt(4))
	if err != nil || !prod.Equal(NewDecimalFromInt(10)) {
		t.Errorf("Mul = %s, %v", prod, err)
	}
	quo, err := NewDecimalFromInt(100).Div(NewDecimalFromInt(8))
	if err != nil || !quo.Equal(mustDecimal(t, "12.5")) {
		t.Errorf("Div = %s, %v", quo, err)
	}
}

func TestDecimal_Div_ByZero(t *testing.T) {
	if _, err := NewDecimalFromInt(1).Div(Zero); err == nil {
		t.Fatal("expected error when dividing by zero")
	}
}

func TestDecimal_PercentOf(t *testing.T) {
	testCases := []struct {
		name     string
		value    string
		base     string
		expected string
	}{
		{"five percent", "5", "100", "5"},
		{"negative", "-25", "200", "-12.5"},
		{"zero base", "10", "0", "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := mustDecimal(t, tc.value).PercentOf(mustDecimal(t, tc.base))
			if err != nil {
				t.Fatalf("PercentOf: %v", err)
			}
			if !got.Equal(mustDecimal(t, tc.expected)) {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestDecimal_Round(t *testing.T) {
	testCases := []struct {
		value    string
		places   int32
		expected string
	}{
		{"100", 2, "100.00"},
		{"1.005", 2, "1.01"},
		{"1.0049", 2, "1.00"},
		{"-2.345", 2, "-2.35"},
		{"5432.12345", 3, "5432.123"},
		{"187.5", 0, "188"},
	}

	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			got, err := mustDecimal(t, tc.value).Round(tc.places)
			if err != nil {
				t.Fatalf("Round: %v", err)
			}
			if got.String() != tc.expected {
				t.Errorf("expected %s, got %s", tc.expected, got)
			}
		})
	}
}

func TestDecimal_Compare(t *testing.T) {
	if !mustDecimal(t, "5.00").Equal(NewDecimalFromInt(5)) {
		t.Error("expected 5.00 == 5")
	}
	if NewDecimalFromInt(50).Equal(NewDecimalFromInt(100)) {
		t.Error("expected 50 != 100")
	}
	if !mustDecimal(t, "0.00").IsZero() {
		t.Error("expected 0.00 to be zero")
	}
}

func TestDecimal_JSON(t *testing.T) {
	type payload struct {
		Close Decimal `json:"close"`
	}

	data, err := json.Marshal(payload{Close: mustDecimal(t, "189.10")})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"close":189.10}` {
		t.Errorf("unexpected JSON %s", data)
	}

	for _, in := range []string{`{"close":189.10}`, `{"close":"189.10"}`} {
		var p payload
		if err := json.Unmarshal([]byte(in), &p); err != nil {
			t.Fatalf("Unmarshal(%s): %v", in, err)
		}
		if p.Close.String() != "189.10" {
			t.Errorf("expected 189.10, got %s", p.Close)
		}
	}
}

func TestDecimal_ScanAndValue(t *testing.T) {
	testCases := []struct {
		name        string
		input       any
		expected    string
		expectError bool
	}{
		{"nil", nil, "0", false},
		{"bytes", []byte("123.45"), "123.45", false},
		{"string", "678.90", "678.90", false},
		{"int64", int64(100), "100", false},
		{"float64", 1.0845, "1.0845", false},
		{"bool", true, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var d Decimal
			err := d.Scan(tc.input)
			if tc.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			v, err := d.Value()
			if err != nil {
				t.Fatalf("Value: %v", err)
			}
			if v != tc.expected {
				t.Errorf("expected %s, got %v", tc.expected, v)
			}
		})
	}
}
