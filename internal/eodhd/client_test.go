package eodhd

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(100)), srv
}

func TestClient_GetEOD(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/eod/AAPL.US", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_token"))
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		assert.Equal(t, "2026-01-01", r.URL.Query().Get("from"))
		w.Write([]byte(`[{"date":"2026-01-02","open":1,"high":2,"low":0.5,"close":1.5,"adjusted_close":1.5,"volume":1000}]`))
	})

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err := client.GetEOD(context.Background(), "AAPL.US", WithDateRange(from, from.AddDate(0, 1, 0)))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2026, got[0].Date.Year())
	assert.Equal(t, int64(1000), got[0].Volume)
}

func TestClient_APIError(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Ticker Not Found", http.StatusNotFound)
	})

	_, err := client.GetFundamentals(context.Background(), "NOPE.US")
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/fundamentals/NOPE.US", apiErr.Endpoint)
	assert.True(t, IsNotFound(err))
}

func TestClient_BreakerOpensOnServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(100), WithBreaker(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.GetRealTimeQuote(ctx, "SPY.US")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	_, err := client.GetRealTimeQuote(ctx, "SPY.US")
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(100), WithBreaker(1, time.Minute))

	for i := 0; i < 3; i++ {
		_, err := client.GetFundamentals(context.Background(), "X.US")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateClosed, client.BreakerState())
}

func TestClient_InsiderAndTechnicals(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/insider-transactions":
			assert.Equal(t, "NVDA.US", r.URL.Query().Get("code"))
			w.Write([]byte(`[
				{"code":"NVDA","date":"2026-02-10","ownerName":"Jane Doe","ownerTitle":"CFO","transactionDate":"2026-02-09","transactionCode":"P","transactionAmount":"1000","transactionPrice":120.5},
				{"code":"NVDA","date":"2026-02-01","ownerName":"John Roe","ownerTitle":"Director","transactionDate":"2026-01-30","transactionCode":"A","transactionAmount":500,"transactionPrice":null}
			]`))
		case "/technical/NVDA.US":
			switch r.URL.Query().Get("function") {
			case "rsi":
				assert.Equal(t, "14", r.URL.Query().Get("period"))
				w.Write([]byte(`[{"date":"2026-02-09","rsi":61.2},{"date":"2026-02-10","rsi":"NA"}]`))
			case "macd":
				w.Write([]byte(`[{"date":"2026-02-10","macd":1.2,"signal":0.8,"divergence":0.4}]`))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	insider, err := client.GetInsiderTransactions(ctx, "NVDA.US")
	require.NoError(t, err)
	require.Len(t, insider, 2)
	assert.Equal(t, 1000.0, insider[0].TransactionAmount.Value)
	assert.Equal(t, 9, insider[0].TransactionDate.Day())
	assert.False(t, insider[1].TransactionPrice.Valid)

	rsi, err := client.GetRSI(ctx, "NVDA.US", 14)
	require.NoError(t, err)
	require.Len(t, rsi, 2)
	assert.True(t, rsi[0].RSI.Valid)
	assert.False(t, rsi[1].RSI.Valid)

	macd, err := client.GetMACD(ctx, "NVDA.US")
	require.NoError(t, err)
	require.Len(t, macd, 1)
	assert.InDelta(t, 0.4, macd[0].Divergence.Value, 1e-9)
}

func TestExchangeDetails_ToleratesEmptyHolidays(t *testing.T) {
	client, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Code":"US","Timezone":"America/New_York","TradingHours":{"Open":"09:30:00","Close":"16:00:00"},"ExchangeHolidays":[]}`))
	})

	got, err := client.GetExchangeDetails(context.Background(), "US")
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", got.Timezone)
	assert.Equal(t, "16:00:00", got.TradingHours.Close)
	assert.Empty(t, got.Holidays)
}
