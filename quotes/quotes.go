// Package quotes looks up live prices from Alpha Vantage, with an
// optional Redis cache in front so repeated lookups inside the cache
// TTL never hit the provider.
package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"

	"paper-trader/ledger"
	"paper-trader/models"
)

const (
	defaultBaseURL  = "https://www.alphavantage.co"
	defaultTimeout  = 5 * time.Second
	defaultCacheTTL = 5 * time.Minute
)

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
	// rate-limit responses come back 200 with one of these set
	Note        string `json:"Note"`
	Information string `json:"Information"`
}

// Client implements ledger.QuoteProvider against the Alpha Vantage
// GLOBAL_QUOTE endpoint.
type Client struct {
	http     *http.Client
	baseURL  string
	apiKey   string
	cache    *redis.Client
	cacheTTL time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the provider endpoint (used by tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithTimeout bounds how long a single lookup may take.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// WithCache adds a Redis read-through cache with the given TTL.
func WithCache(rdb *redis.Client, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = rdb
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// NewClient creates a quote client for the given API key.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		baseURL:  defaultBaseURL,
		apiKey:   apiKey,
		cacheTTL: defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup fetches a quote for symbol. An unknown ticker yields
// ErrQuoteNotFound; any transport, decode or provider failure yields
// ErrQuoteUnavailable so the caller sees a typed error instead of a
// raw HTTP failure.
func (c *Client) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	if symbol == "" {
		return models.Quote{}, ledger.ErrQuoteNotFound
	}

	if quote, ok := c.cached(ctx, symbol); ok {
		return quote, nil
	}

	reqURL := fmt.Sprintf("%s/query?function=GLOBAL_QUOTE&symbol=%s&apikey=%s",
		c.baseURL, url.QueryEscape(symbol), c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: %v", ledger.ErrQuoteUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: %v", ledger.ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.Quote{}, fmt.Errorf("%w: provider returned %d", ledger.ErrQuoteUnavailable, resp.StatusCode)
	}

	var decoded globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return models.Quote{}, fmt.Errorf("%w: %v", ledger.ErrQuoteUnavailable, err)
	}

	if decoded.Note != "" || decoded.Information != "" {
		return models.Quote{}, fmt.Errorf("%w: provider throttled the request", ledger.ErrQuoteUnavailable)
	}
	if decoded.GlobalQuote.Price == "" {
		return models.Quote{}, ledger.ErrQuoteNotFound
	}
	price, err := decimal.NewFromString(decoded.GlobalQuote.Price)
	if err != nil {
		return models.Quote{}, fmt.Errorf("%w: bad price %q", ledger.ErrQuoteUnavailable, decoded.GlobalQuote.Price)
	}

	quote := models.Quote{
		Symbol: symbol,
		// GLOBAL_QUOTE carries no company name; fall back to the ticker
		Name:  symbol,
		Price: price,
	}
	if decoded.GlobalQuote.Symbol != "" {
		quote.Symbol = decoded.GlobalQuote.Symbol
		quote.Name = decoded.GlobalQuote.Symbol
	}

	c.store(ctx, symbol, quote)
	return quote, nil
}

func (c *Client) cached(ctx context.Context, symbol string) (models.Quote, bool) {
	if c.cache == nil {
		return models.Quote{}, false
	}
	raw, err := c.cache.Get(ctx, cacheKey(symbol)).Result()
	if err != nil {
		return models.Quote{}, false
	}
	var quote models.Quote
	if err := json.Unmarshal([]byte(raw), &quote); err != nil {
		return models.Quote{}, false
	}
	return quote, true
}

func (c *Client) store(ctx context.Context, symbol string, quote models.Quote) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(quote)
	if err != nil {
		return
	}
	// a cache write failure only costs a future provider round trip
	c.cache.Set(ctx, cacheKey(symbol), raw, c.cacheTTL)
}

func cacheKey(symbol string) string {
	return fmt.Sprintf("stock:%s:quote", symbol)
}
