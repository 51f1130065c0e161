package coingecko

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"CoinRadar/internal/domain/models"
	"CoinRadar/internal/service/ratelimit"
	"CoinRadar/internal/services/discovery"
	xhttp "CoinRadar/pkg/http"
	applogger "CoinRadar/pkg/logger"

	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL   = "https://api.coingecko.com/api/v3"
	DefaultKeyHeader = "x-cg-demo-api-key"
)

// Client reads market listings and trending coins from the CoinGecko REST API.
type Client struct {
	baseURL    string
	host       string
	apiKey     string
	keyHeader  string
	vsCurrency string
	attempts   int
	backoff    time.Duration

	http    *xhttp.Client
	limiter *ratelimit.Limiter
	breaker *gobreaker.CircuitBreaker
	log     *applogger.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") } }

// WithAPIKey sets the key and, when header is non-empty, the header it is sent in.
func WithAPIKey(key, header string) Option {
	return func(c *Client) {
		c.apiKey = key
		if header != "" {
			c.keyHeader = header
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = xhttp.NewClient(xhttp.WithTimeout(d)) }
}

// WithRetry sets the attempt count and the base backoff (grows linearly per attempt).
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		if attempts > 0 {
			c.attempts = attempts
		}
		c.backoff = backoff
	}
}

func WithLimiter(l *ratelimit.Limiter) Option { return func(c *Client) { c.limiter = l } }

func WithLogger(l *applogger.Logger) Option { return func(c *Client) { c.log = l } }

func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		keyHeader:  DefaultKeyHeader,
		vsCurrency: "usd",
		attempts:   3,
		backoff:    2 * time.Second,
		http:       xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		limiter:    ratelimit.New(0.5, 5),
		log:        applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if u, err := url.Parse(c.baseURL); err == nil {
		c.host = u.Host
	}
	c.breaker = newBreaker("coingecko", c.log)
	return c
}

func newBreaker(name string, l *applogger.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     name,
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.ConsecutiveFailures >= 3 {
				return true
			}
			return c.Requests >= 20 && float64(c.TotalFailures)/float64(c.Requests) > 0.05
		},
		// client errors other than 429 say nothing about upstream health
		IsSuccessful: func(err error) bool {
			var se *xhttp.StatusError
			if errors.As(err, &se) {
				return !se.Retryable()
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("circuit breaker state change",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()),
			)
		},
	})
}

type marketRow struct {
	ID             string   `json:"id"`
	Symbol         string   `json:"symbol"`
	Name           string   `json:"name"`
	CurrentPrice   *float64 `json:"current_price"`
	MarketCap      *float64 `json:"market_cap"`
	TotalVolume    *float64 `json:"total_volume"`
	PriceChange24h *float64 `json:"price_change_percentage_24h"`
	PriceChange7d  *float64 `json:"price_change_percentage_7d_in_currency"`
}

func (r marketRow) record() models.MarketRecord {
	return models.MarketRecord{
		ID:             r.ID,
		Symbol:         r.Symbol,
		Name:           r.Name,
		Price:          r.CurrentPrice,
		MarketCap:      r.MarketCap,
		Volume24h:      r.TotalVolume,
		PriceChange24h: r.PriceChange24h,
		PriceChange7d:  r.PriceChange7d,
	}
}

type trendingResponse struct {
	Coins []struct {
		Item struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
		} `json:"item"`
	} `json:"coins"`
}

// Markets implements discovery.MarketSource.
func (c *Client) Markets(ctx context.Context, q discovery.MarketsQuery) ([]models.MarketRecord, error) {
	params := map[string][]string{
		"vs_currency":             {c.vsCurrency},
		"sparkline":               {"false"},
		"price_change_percentage": {"24h,7d"},
	}
	if q.Order != "" {
		params["order"] = []string{q.Order}
	}
	if q.PerPage > 0 {
		params["per_page"] = []string{strconv.Itoa(q.PerPage)}
	}
	if q.Page > 0 {
		params["page"] = []string{strconv.Itoa(q.Page)}
	}
	if len(q.IDs) > 0 {
		params["ids"] = []string{strings.Join(q.IDs, ",")}
	}

	var rows []marketRow
	if err := c.get(ctx, "/coins/markets", params, &rows); err != nil {
		return nil, err
	}
	out := make([]models.MarketRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// TrendingIDs implements discovery.MarketSource.
func (c *Client) TrendingIDs(ctx context.Context) ([]string, error) {
	var resp trendingResponse
	if err := c.get(ctx, "/search/trending", nil, &resp); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(resp.Coins))
	for _, coin := range resp.Coins {
		if coin.Item.ID != "" {
			ids = append(ids, coin.Item.ID)
		}
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	opts := &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}
	if c.apiKey != "" {
		opts.Headers = map[string]string{c.keyHeader: c.apiKey}
	}

	var err error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err = c.limiter.Wait(ctx, c.host); err != nil {
			return fmt.Errorf("coingecko %s: %w", path, err)
		}
		_, err = c.breaker.Execute(func() (interface{}, error) {
			return nil, c.http.SendAndParse(ctx, opts, dest)
		})
		if err == nil {
			return nil
		}
		if !retryable(ctx, err) || attempt == c.attempts {
			break
		}
		c.log.Warn("coingecko request failed, retrying",
			applogger.String("path", path),
			applogger.Int("attempt", attempt),
			applogger.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("coingecko %s: %w", path, ctx.Err())
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("coingecko %s: %w", path, err)
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, xhttp.ErrDecode) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

var _ discovery.MarketSource = (*Client)(nil)
