package yfinance

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
	sourceName     = "yfinance"
	defaultBaseURL = "https://query1.finance.yahoo.com"
	chartPath      = "/v8/finance/chart"
	userAgent      = "Mozilla/5.0 (compatible; quote-ingestor/1.0)"
)

// Client reads the Yahoo Finance chart API. It serves equities, commodities
// and forex quotes, and the daily series behind the historical endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limits     marketdata.Limits
}

// NewClient creates a client against the public Yahoo endpoint.
func NewClient(limits marketdata.Limits) *Client {
	return NewClientWithBaseURL(defaultBaseURL, limits)
}

// NewClientWithBaseURL creates a client with a custom base URL (useful behind a proxy).
func NewClientWithBaseURL(baseURL string, limits marketdata.Limits) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
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

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta struct {
		Symbol               string `json:"symbol"`
		ExchangeTimezoneName string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// row is one timestamped OHLCV entry; nil fields were null in the payload.
type row struct {
	ts                             int64
	open, high, low, close, volume *float64
}

func (r row) empty() bool {
	return r.open == nil && r.high == nil && r.low == nil && r.close == nil
}

func (r row) complete() bool {
	return r.open != nil && r.high != nil && r.low != nil && r.close != nil
}

func (c *Client) Name() string { return sourceName }

// Fetch returns the latest daily row for every spec.
func (c *Client) Fetch(ctx context.Context, specs []domain.SymbolSpec) []marketdata.FetchResult {
	return marketdata.FetchEach(ctx, specs, c.limits, c.fetchOne)
}

func (c *Client) fetchOne(ctx context.Context, spec domain.SymbolSpec) (*domain.RawQuote, error) {
	symbol := spec.SymbolFor(sourceName, spec.RequestSymbol())
	rows, _, err := c.chart(ctx, symbol, "1d", "1d")
	if err != nil {
		return nil, err
	}

	for i := len(rows) - 1; i >= 0; i-- {
		if rows[i].empty() {
			continue
		}
		return toRawQuote(symbol, rows[i])
	}
	return nil, domain.NewFetchError(sourceName, symbol, domain.ErrNoData, "chart has no rows")
}

// History returns the daily series for symbol. period and interval use the
// Yahoo range and interval syntax (1mo, 1d, ...). An empty series is ErrNoData.
func (c *Client) History(ctx context.Context, symbol, period, interval string) ([]domain.HistoricalBar, error) {
	rows, loc, err := c.chart(ctx, symbol, period, interval)
	if err != nil {
		return nil, err
	}

	bars := make([]domain.HistoricalBar, 0, len(rows))
	for _, r := range rows {
		if !r.complete() {
			continue
		}
		bar, err := toBar(r, loc)
		if err != nil {
			return nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to parse bar: %v", err)
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, domain.NewFetchError(sourceName, symbol, domain.ErrNoData, "no bars for range %s", period)
	}
	return bars, nil
}

func (c *Client) chart(ctx context.Context, symbol, period, interval string) ([]row, *time.Location, error) {
	params := url.Values{}
	params.Add("range", period)
	params.Add("interval", interval)

	reqURL := fmt.Sprintf("%s%s/%s?%s", c.baseURL, chartPath, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to execute request: %v", err)
	}

	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "source", sourceName)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to read response: %v", err)
	}

	var chartResp chartResponse
	decodeErr := json.Unmarshal(body, &chartResp)

	// Yahoo reports unknown symbols as a 404 carrying a chart error body.
	if decodeErr == nil && chartResp.Chart.Error != nil {
		kind := domain.ErrProvider
		if chartResp.Chart.Error.Code == "Not Found" {
			kind = domain.ErrNoData
		}
		return nil, nil, domain.NewFetchError(sourceName, symbol, kind, "%s: %s", chartResp.Chart.Error.Code, chartResp.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "API returned status %d: %s", resp.StatusCode, string(body))
	}
	if decodeErr != nil {
		return nil, nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to decode response: %v", decodeErr)
	}

	if len(chartResp.Chart.Result) == 0 {
		return nil, nil, domain.NewFetchError(sourceName, symbol, domain.ErrNoData, "chart has no result")
	}
	result := chartResp.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil, domain.NewFetchError(sourceName, symbol, domain.ErrNoData, "chart has no rows")
	}

	loc := time.UTC
	if tz := result.Meta.ExchangeTimezoneName; tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	q := result.Indicators.Quote[0]
	rows := make([]row, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		rows[i] = row{
			ts:     ts,
			open:   at(q.Open, i),
			high:   at(q.High, i),
			low:    at(q.Low, i),
			close:  at(q.Close, i),
			volume: at(q.Volume, i),
		}
	}
	return rows, loc, nil
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}

func decimalPtr(v *float64) (*domain.Decimal, error) {
	if v == nil {
		return nil, nil
	}
	d, err := domain.NewDecimalFromFloat(*v)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func toRawQuote(symbol string, r row) (*domain.RawQuote, error) {
	quote := &domain.RawQuote{}
	fields := []struct {
		in  *float64
		out **domain.Decimal
	}{
		{r.open, &quote.Open},
		{r.high, &quote.High},
		{r.low, &quote.Low},
		{r.close, &quote.Close},
		{r.volume, &quote.Volume},
	}
	for _, f := range fields {
		d, err := decimalPtr(f.in)
		if err != nil {
			return nil, domain.NewFetchError(sourceName, symbol, domain.ErrTransport, "failed to parse price: %v", err)
		}
		*f.out = d
	}
	ts := time.Unix(r.ts, 0).UTC()
	quote.Timestamp = &ts
	return quote, nil
}

func toBar(r row, loc *time.Location) (domain.HistoricalBar, error) {
	bar := domain.HistoricalBar{
		Date:   time.Unix(r.ts, 0).In(loc).Format(domain.DateLayout),
		Volume: domain.Zero,
	}
	fields := []struct {
		in  *float64
		out *domain.Decimal
	}{
		{r.open, &bar.Open},
		{r.high, &bar.High},
		{r.low, &bar.Low},
		{r.close, &bar.Close},
		{r.volume, &bar.Volume},
	}
	for _, f := range fields {
		d, err := decimalPtr(f.in)
		if err != nil {
			return bar, err
		}
		if d != nil {
			*f.out = *d
		}
	}
	return bar, nil
}

var (
	_ marketdata.Adapter            = (*Client)(nil)
	_ marketdata.HistoricalProvider = (*Client)(nil)
)
