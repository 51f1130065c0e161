package coingecko

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"CoinRadar/internal/service/ratelimit"
	"CoinRadar/internal/services/discovery"
	xhttp "CoinRadar/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(
		WithBaseURL(srv.URL),
		WithRetry(3, time.Millisecond),
		WithLimiter(ratelimit.New(0, 1)),
		WithAPIKey("secret", ""),
	)
	return c, srv
}

func TestMarketsDecodesRowsAndQuery(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "usd", q.Get("vs_currency"))
		assert.Equal(t, "volume_desc", q.Get("order"))
		assert.Equal(t, "250", q.Get("per_page"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "24h,7d", q.Get("price_change_percentage"))
		assert.Equal(t, "secret", r.Header.Get(DefaultKeyHeader))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"pepe","symbol":"pepe","name":"Pepe","current_price":0.0000012,"market_cap":40000000,
			 "total_volume":15000000,"price_change_percentage_24h":12.5,"price_change_percentage_7d_in_currency":30},
			{"id":"ghost","symbol":"gst","name":"Ghost","current_price":1.2,"market_cap":null,"total_volume":10}
		]`))
	})

	recs, err := c.Markets(context.Background(), discovery.MarketsQuery{Order: "volume_desc", PerPage: 250, Page: 2})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "pepe", recs[0].ID)
	require.NotNil(t, recs[0].PriceChange7d)
	assert.InDelta(t, 30, *recs[0].PriceChange7d, 1e-9)
	assert.Nil(t, recs[1].MarketCap)
	assert.Nil(t, recs[1].PriceChange24h)
}

func TestMarketsSendsIDs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "a,b", r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`[]`))
	})
	recs, err := c.Markets(context.Background(), discovery.MarketsQuery{IDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestTrendingIDs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/trending", r.URL.Path)
		_, _ = w.Write([]byte(`{"coins":[{"item":{"id":"foo","symbol":"FOO"}},{"item":{"id":""}},{"item":{"id":"bar"}}]}`))
	})
	ids, err := c.TrendingIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "bar"}, ids)
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"coins":[]}`))
	})
	_, err := c.TrendingIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	_, err := c.TrendingIDs(context.Background())
	require.Error(t, err)

	var se *xhttp.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.TrendingIDs(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())

	_, err = c.TrendingIDs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker is open")
	assert.Equal(t, int32(3), calls.Load())
}
