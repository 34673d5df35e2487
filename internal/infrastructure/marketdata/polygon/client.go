package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata"
)

const (
	sourceName     = "polygon"
	defaultBaseURL = "https://api.polygon.io"
)

// Client fetches the previous-day aggregate bar for stocks from Polygon.
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

// barRaw is one aggregate bar; t is Unix milliseconds.
type barRaw struct {
	Ticker    string   `json:"T"`
	Timestamp int64    `json:"t"`
	Open      *float64 `json:"o"`
	High      *float64 `json:"h"`
	Low       *float64 `json:"l"`
	Close     *float64 `json:"c"`
	Volume    *float64 `json:"v"`
}

type aggregatesResponse struct {
	Ticker       string   `json:"ticker"`
	ResultsCount int      `json:"resultsCount"`
	Results      []barRaw `json:"results"`
	Status       string   `json:"status"`
	Error        string   `json:"error"`
	Message      string   `json:"message"`
}

func (c *Client) Name() string { return sourceName }

func (c *Client) Fetch(ctx context.Context, specs []domain.SymbolSpec) []marketdata.FetchResult {
	return marketdata.FetchEach(ctx, specs, c.limits, c.fetchOne)
}

func (c *Client) fetchOne(ctx context.Context, spec domain.SymbolSpec) (*domain.RawQuote, error) {
	ticker := strings.ToUpper(spec.SymbolFor(sourceName, spec.RequestSymbol()))

	params := url.Values{}
	params.Set("adjusted", "true")
	params.Set("apiKey", c.apiKey)

	reqURL := fmt.Sprintf("%s/v2/aggs/ticker/%s/prev?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.NewFetchError(sourceName, ticker, domain.ErrTransport, "failed to create request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.NewFetchError(sourceName, ticker, domain.ErrTransport, "failed to execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "source", sourceName)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewFetchError(sourceName, ticker, domain.ErrTransport, "failed to read response: %v", err)
	}

	var result aggregatesResponse
	decodeErr := json.Unmarshal(body, &result)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.NewFetchError(sourceName, ticker, domain.ErrProvider, "%s", providerMessage(result, body))
	case resp.StatusCode != http.StatusOK:
		return nil, domain.NewFetchError(sourceName, ticker, domain.ErrTransport, "API status %d: %s", resp.StatusCode, string(body))
	case decodeErr != nil:
		return nil, domain.NewFetchError(sourceName, ticker, domain.ErrTransport, "failed to decode response: %v", decodeErr)
	case result.Status == "ERROR" || result.Status == "NOT_AUTHORIZED":
		return nil, domain.NewFetchError(sourceName, ticker, domain.ErrProvider, "%s", providerMessage(result, body))
	case result.ResultsCount == 0 || len(result.Results) == 0:
		return nil, domain.NewFetchError(sourceName, ticker, domain.ErrNoData, "no previous-day aggregate")
	}

	bar := result.Results[len(result.Results)-1]
	quote := &domain.RawQuote{}
	fields := []struct {
		in  *float64
		out **domain.Decimal
	}{
		{bar.Open, &quote.Open},
		{bar.High, &quote.High},
		{bar.Low, &quote.Low},
		{bar.Close, &quote.Close},
		{bar.Volume, &quote.Volume},
	}
	for _, f := range fields {
		if f.in == nil {
			continue
		}
		d, err := domain.NewDecimalFromFloat(*f.in)
		if err != nil {
			return nil, domain.NewFetchError(sourceName, ticker, domain.ErrTransport, "failed to parse price: %v", err)
		}
		*f.out = &d
	}
	if bar.Timestamp > 0 {
		ts := time.UnixMilli(bar.Timestamp).UTC()
		quote.Timestamp = &ts
	}
	return quote, nil
}

func providerMessage(r aggregatesResponse, body []byte) string {
	switch {
	case r.Error != "":
		return r.Error
	case r.Message != "":
		return r.Message
	default:
		return string(body)
	}
}

var _ marketdata.Adapter = (*Client)(nil)
