package quotes

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"paper-trader/ledger"
)

func TestLookup_ParsesQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("symbol param = %q, want AAPL", got)
		}
		if got := r.URL.Query().Get("function"); got != "GLOBAL_QUOTE" {
			t.Errorf("function param = %q, want GLOBAL_QUOTE", got)
		}
		w.Write([]byte(`{"Global Quote": {"01. symbol": "AAPL", "05. price": "189.4100"}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	quote, err := c.Lookup(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if quote.Symbol != "AAPL" {
		t.Fatalf("symbol = %q, want AAPL", quote.Symbol)
	}
	if quote.Price.String() != "189.41" {
		t.Fatalf("price = %s, want 189.41", quote.Price)
	}
}

func TestLookup_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Alpha Vantage returns an empty Global Quote for unknown tickers
		w.Write([]byte(`{"Global Quote": {}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), "NOPE")
	if !errors.Is(err, ledger.ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got %v", err)
	}
}

func TestLookup_EmptySymbol(t *testing.T) {
	c := NewClient("test-key")
	_, err := c.Lookup(context.Background(), "")
	if !errors.Is(err, ledger.ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound, got %v", err)
	}
}

func TestLookup_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ledger.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestLookup_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ledger.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestLookup_BadPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Global Quote": {"01. symbol": "AAPL", "05. price": "not-a-number"}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ledger.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestLookup_RateLimited(t *testing.T) {
	// throttled requests come back 200 with a Note instead of a quote
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Note": "Thank you for using Alpha Vantage! Our standard API rate limit is 25 requests per day."}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ledger.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestLookup_PremiumEndpointNotice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Information": "This is a premium endpoint."}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ledger.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestLookup_TimeoutIsBounded(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"Global Quote": {"05. price": "1.00"}}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := c.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ledger.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("lookup was not bounded by the timeout: %s", elapsed)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected exactly one provider call, got %d", hits.Load())
	}
}

func TestLookup_ContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	_, err := c.Lookup(ctx, "AAPL")
	if !errors.Is(err, ledger.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}
