package finnhub

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
	sourceName     = "finnhub"
	defaultBaseURL = "https://finnhub.io/api/v1"
	quotePath      = "/quote"
)

// Client implements marketdata.Adapter for stock quotes using the Finnhub API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limits     marketdata.Limits
}

// NewClient creates a new Finnhub API client.
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

// SetBaseURL sets the base URL for the API (useful for testing).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// quoteResponse represents the Finnhub quote response. Pointers distinguish
// an absent field from a zero price.
type quoteResponse struct {
	Current       *float64 `json:"c"`
	High          *float64 `json:"h"`
	Low           *float64 `json:"l"`
	Open          *float64 `json:"o"`
	PreviousClose *float64 `json:"pc"`
	Timestamp     int64    `json:"t"`
	Error         string   `json:"error"`
}

func (c *Client) Name() string { return sourceName }

// Fetch retrieves the current quote for every spec.
func (c *Client) Fetch(ctx context.Context, specs []domain.SymbolSpec) []marketdata.FetchResult {
	return marketdata.FetchEach(ctx, specs, c.limits, c.fetchOne)
}

func (c *Client) fetchOne(ctx context.Context, spec domain.SymbolSpec) (*domain.RawQuote, error) {
	symbol := spec.SymbolFor(sourceName, spec.RequestSymbol())

	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("token", c.apiKey)

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

	if quoteResp.Error != "" {
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrProvider, "%s", quoteResp.Error)
	}

	// Finnhub answers unknown symbols with zeroes instead of an error.
	if isZero(quoteResp.Current) && isZero(quoteResp.PreviousClose) && quoteResp.Timestamp == 0 {
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrNoData, "no quote data found")
	}

	quote := &domain.RawQuote{}
	fields := []struct {
		in  *float64
		out **domain.Decimal
	}{
		{quoteResp.Open, &quote.Open},
		{quoteResp.High, &quote.High},
		{quoteResp.Low, &quote.Low},
		{quoteResp.Current, &quote.Close},
	}
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		d, err := domain.NewDecimalFromFloat(*f.in)
		if err != nil {
			return nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to parse price: %v", err)
		}
		*f.out = &d
	}
	if quoteResp.Timestamp > 0 {
		ts := time.Unix(quoteResp.Timestamp, 0).UTC()
		quote.Timestamp = &ts
	}

	return quote, nil
}

func isZero(v *float64) bool {
	return v == nil || *v == 0
}

var _ marketdata.Adapter = (*Client)(nil)
