package tickerstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"CoinRadar/internal/domain/models"
	drepo "CoinRadar/internal/domain/repository"
	applogger "CoinRadar/pkg/logger"
	"CoinRadar/pkg/util"

	"github.com/gorilla/websocket"
)

const DefaultURL = "wss://stream.binance.com:9443/ws/!miniTicker@arr"

var errNotConnected = errors.New("ticker stream not connected")

// Client implements a MarketStream over an exchange all-market mini-ticker feed.
// Pairs are mapped to base symbols by stripping the quote asset suffix.
type Client struct {
	url            string
	quote          string
	symbols        map[string]struct{}
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

type Option func(*Client)

func WithURL(u string) Option { return func(c *Client) { c.url = u } }

// WithQuote sets the quote asset whose pairs are kept, e.g. USDT.
func WithQuote(q string) Option { return func(c *Client) { c.quote = strings.ToUpper(q) } }

// WithSymbols restricts the stream to the given base symbols. Empty keeps every pair.
func WithSymbols(symbols ...string) Option {
	return func(c *Client) {
		for _, s := range symbols {
			if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
				c.symbols[s] = struct{}{}
			}
		}
	}
}

func WithReconnectDelay(d time.Duration) Option { return func(c *Client) { c.reconnectDelay = d } }

func WithPingInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pingInterval = d
		}
	}
}

func WithLogger(l *applogger.Logger) Option { return func(c *Client) { c.log = l } }

// New creates a mini-ticker MarketStream.
func New(opts ...Option) *Client {
	c := &Client{
		url:            DefaultURL,
		quote:          "USDT",
		symbols:        make(map[string]struct{}),
		reconnectDelay: 5 * time.Second,
		pingInterval:   30 * time.Second,
		log:            applogger.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("ticker stream connect: %w", err)
	}
	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.log.Info("ticker stream connected", applogger.String("url", c.url))
	return nil
}

type miniTicker struct {
	Event       string `json:"e"`
	EventTime   int64  `json:"E"`
	Pair        string `json:"s"`
	Close       string `json:"c"`
	QuoteVolume string `json:"q"`
}

// Read streams price points until the connection fails or ctx ends.
// A read failure is delivered once on the error channel, after which both channels close.
func (c *Client) Read(ctx context.Context) (<-chan models.PricePoint, <-chan error) {
	points := make(chan models.PricePoint, 1024)
	errs := make(chan error, 1)

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		errs <- errNotConnected
		close(errs)
		close(points)
		return points, errs
	}

	done := make(chan struct{})
	go c.pingLoop(ctx, conn, done)

	go func() {
		defer close(done)
		defer close(points)
		defer close(errs)
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("ticker stream read: %w", err)
				}
				return
			}
			for _, p := range c.parse(b) {
				select {
				case points <- p:
				default:
					// drop on backpressure
				}
			}
		}
	}()
	return points, errs
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// unblock ReadMessage
			_ = conn.Close()
			return
		case <-done:
			return
		case <-ticker.C:
			c.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			c.mu.Unlock()
			if err != nil {
				c.log.Debug("ticker stream ping failed", applogger.Error(err))
			}
		}
	}
}

// parse decodes one mini-ticker array frame. Non-array frames and malformed rows are skipped.
func (c *Client) parse(b []byte) []models.PricePoint {
	var rows []miniTicker
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil
	}
	out := make([]models.PricePoint, 0, len(rows))
	for _, r := range rows {
		sym, ok := c.baseSymbol(r.Pair)
		if !ok {
			continue
		}
		price, ok := util.ParseFloat(r.Close)
		if !ok || price <= 0 {
			continue
		}
		vol, _ := util.ParseFloat(r.QuoteVolume)
		out = append(out, models.PricePoint{
			Symbol:     sym,
			Price:      price,
			Volume:     vol,
			CapturedAt: time.UnixMilli(r.EventTime).UTC(),
		})
	}
	return out
}

func (c *Client) baseSymbol(pair string) (string, bool) {
	pair = strings.ToUpper(pair)
	if !strings.HasSuffix(pair, c.quote) || len(pair) == len(c.quote) {
		return "", false
	}
	sym := strings.TrimSuffix(pair, c.quote)
	if len(c.symbols) > 0 {
		if _, ok := c.symbols[sym]; !ok {
			return "", false
		}
	}
	return sym, true
}

// Reconnect closes and reconnects after the configured delay.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.reconnectDelay):
	}
	return c.Connect(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

var _ drepo.MarketStream = (*Client)(nil)
