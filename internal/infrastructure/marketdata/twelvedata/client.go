package twelvedata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata"
)

const (
	sourceName     = "twelvedata"
	defaultBaseURL = "https://api.twelvedata.com"
	quotePath      = "/quote"
)

// Client fetches forex quotes from Twelve Data. Symbols use the slash syntax
// (EUR/USD), so the display name is sent when no provider symbol is set.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limits     marketdata.Limits
}

func NewClient(apiKey string, limits marketdata.Limits) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limits: limits,
	}
}

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

type quoteResponse struct {
	Symbol    string `json:"symbol"`
	Datetime  string `json:"datetime"`
	Timestamp int64  `json:"timestamp"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Code      int    `json:"code"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (c *Client) Name() string { return sourceName }

func (c *Client) Fetch(ctx context.Context, specs []domain.SymbolSpec) []marketdata.FetchResult {
	return marketdata.FetchEach(ctx, specs, c.limits, c.fetchOne)
}

func (c *Client) fetchOne(ctx context.Context, spec domain.SymbolSpec) (*domain.RawQuote, error) {
	// Twelve Data wants EUR/USD, not the Yahoo-style provider symbol.
	symbol := spec.SymbolFor(sourceName, spec.Name)

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("apikey", c.apiKey)

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, quotePath, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to create request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "source", sourceName)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "API returned status %d: %s", resp.StatusCode, string(body))
	}

	var quoteResp quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&quoteResp); err != nil {
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to decode response: %v", err)
	}

	// Errors arrive with HTTP 200 and a code in the body.
	if quoteResp.Status == "error" || quoteResp.Code != 0 {
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrProvider, "code %d: %s", quoteResp.Code, quoteResp.Message)
	}

	if quoteResp.Open == "" && quoteResp.High == "" && quoteResp.Low == "" && quoteResp.Close == "" {
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrNoData, "quote returned no price data")
	}

	quote := &domain.RawQuote{}
	fields := []struct {
		name string
		in   string
		out  **domain.Decimal
	}{
		{"open", quoteResp.Open, &quote.Open},
		{"high", quoteResp.High, &quote.High},
		{"low", quoteResp.Low, &quote.Low},
		{"close", quoteResp.Close, &quote.Close},
		{"volume", quoteResp.Volume, &quote.Volume},
	}
	for _, f := range fields {
		if f.in == "" {
			continue
		}
		d, err := domain.NewDecimalFromString(f.in)
		if err != nil {
			return nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to parse %s: %v", f.name, err)
		}
		*f.out = &d
	}
	if quoteResp.Timestamp > 0 {
		ts := time.Unix(quoteResp.Timestamp, 0).UTC()
		quote.Timestamp = &ts
	}

	return quote, nil
}

var _ marketdata.Adapter = (*Client)(nil)
