package domain

import (
	"errors"
	"fmt"
)

// Fetch failure kinds.
var (
	ErrNoData    = errors.New("no data returned")
	ErrProvider  = errors.New("provider error")
	ErrTransport = errors.New("transport error")
)

// Normalization failure kinds.
var (
	ErrIncompleteQuote   = errors.New("incomplete quote")
	ErrUnknownAssetClass = errors.New("unknown asset class")
)

// Store failure kinds.
var (
	ErrConflict       = errors.New("constraint violation")
	ErrRecordNotFound = errors.New("record not found")
)

// FetchError reports a failed fetch of a single symbol from a provider.
type FetchError struct {
	Source string
	Symbol string
	Err    error
}

func NewFetchError(source, symbol string, kind error, format string, args ...any) *FetchError {
	return &FetchError{
		Source: source,
		Symbol: symbol,
		Err:    fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)),
	}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s from %s: %v", e.Symbol, e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NormalizeError reports a quote that could not become a CanonicalRecord.
type NormalizeError struct {
	Symbol string
	Field  string
	Err    error
}

func (e *NormalizeError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("normalize %s: %v: missing %s", e.Symbol, e.Err, e.Field)
	}
	return fmt.Sprintf("normalize %s: %v", e.Symbol, e.Err)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// StoreError reports a persistence failure for one record.
type StoreError struct {
	Identity Identity
	Op       string
	Err      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Identity, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
