package twelvedata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmanzanog/quote-ingestor/internal/domain"
	"github.com/jmanzanog/quote-ingestor/internal/infrastructure/marketdata"
)

var eurusd = domain.SymbolSpec{Name: "EUR/USD", ProviderSymbol: "EURUSD=X", AssetClass: domain.AssetClassForex}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient("test-key", marketdata.Limits{})
	client.SetBaseURL(server.URL)
	return client
}

func TestClient_Fetch_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "EUR/USD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))

		_, _ = w.Write([]byte(`{
			"symbol": "EUR/USD",
			"datetime": "2025-07-15",
			"timestamp": 1752537600,
			"open": "1.16790",
			"high": "1.17020",
			"low": "1.16450",
			"close": "1.16880"
		}`))
	})

	results := client.Fetch(context.Background(), []domain.SymbolSpec{eurusd})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	q := results[0].Quote
	assert.Equal(t, "1.16790", q.Open.String())
	assert.Equal(t, "1.17020", q.High.String())
	assert.Equal(t, "1.16450", q.Low.String())
	assert.Equal(t, "1.16880", q.Close.String())
	assert.Nil(t, q.Volume)
	require.NotNil(t, q.Timestamp)
}

func TestClient_Fetch_ProviderSymbolOverride(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "USD/JPY:FXCM", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"USD/JPY","datetime":"2025-07-15","open":"147.10","high":"147.90","low":"146.80","close":"147.65"}`))
	})
	usdjpy := domain.SymbolSpec{
		Name:           "USD/JPY",
		ProviderSymbol: "JPY=X",
		AssetClass:     domain.AssetClassForex,
		Symbols:        map[string]string{"twelvedata": "USD/JPY:FXCM"},
	}

	results := client.Fetch(context.Background(), []domain.SymbolSpec{usdjpy})

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "USD/JPY", results[0].Spec.Name)
	assert.Equal(t, "147.65", results[0].Quote.Close.String())
}

func TestClient_Fetch_ProviderError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"code":429,"message":"You have run out of API credits","status":"error"}`))
	})

	results := client.Fetch(context.Background(), []domain.SymbolSpec{eurusd})

	assert.ErrorIs(t, results[0].Err, domain.ErrProvider)
	assert.Contains(t, results[0].Err.Error(), "API credits")
}

func TestClient_Fetch_NoData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"symbol":"EUR/USD"}`))
	})

	results := client.Fetch(context.Background(), []domain.SymbolSpec{eurusd})

	assert.ErrorIs(t, results[0].Err, domain.ErrNoData)
}

func TestClient_Fetch_MissingFieldStaysNil(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"open":"1.1","high":"1.2","close":"1.15"}`))
	})

	results := client.Fetch(context.Background(), []domain.SymbolSpec{eurusd})

	require.NoError(t, results[0].Err)
	assert.Nil(t, results[0].Quote.Low)
}

func TestClient_Fetch_TransportErrors(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
	}{
		{"bad gateway", http.StatusBadGateway, "upstream"},
		{"malformed json", http.StatusOK, "{"},
		{"unparseable price", http.StatusOK, `{"open":"abc","high":"1","low":"1","close":"1"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			results := client.Fetch(context.Background(), []domain.SymbolSpec{eurusd})
			assert.ErrorIs(t, results[0].Err, domain.ErrTransport)
		})
	}
}
