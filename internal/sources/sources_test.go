package sources_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Talex210/chart-prices-bitcoin/internal/sources"
)

func testServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// ---------- CoinGecko ----------

func TestCoinGeckoCurrentPrice(t *testing.T) {
	srv := testServer(t, http.StatusOK,
		`[{"id":"bitcoin","current_price":65432.1,"last_updated":"2025-06-01T12:34:56Z"}]`)

	src := sources.NewCoinGeckoSource("test-key")
	src.BaseURL = srv.URL

	p, err := src.GetCurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if p.Price != 65432.1 {
		t.Fatalf("price mismatch: got %f", p.Price)
	}
	if p.Source != "coingecko" || p.CoinID != "bitcoin" || p.Currency != "usd" {
		t.Fatalf("identity fields wrong: %+v", p)
	}
	want := time.Date(2025, 6, 1, 12, 34, 56, 0, time.UTC).UnixMilli()
	if p.Timestamp != want {
		t.Fatalf("timestamp mismatch: got %d want %d", p.Timestamp, want)
	}
}

func TestCoinGeckoCurrentPrice_EmptyArray(t *testing.T) {
	srv := testServer(t, http.StatusOK, `[]`)

	src := sources.NewCoinGeckoSource("")
	src.BaseURL = srv.URL

	_, err := src.GetCurrentPrice(context.Background())
	if !errors.Is(err, sources.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestCoinGeckoHistoricalRange(t *testing.T) {
	srv := testServer(t, http.StatusOK,
		`{"prices":[[1700000000000,36000.5],[1700003600000,36100.25]]}`)

	src := sources.NewCoinGeckoSource("")
	src.BaseURL = srv.URL

	pairs, err := src.GetHistoricalRange(context.Background(), 1700000000000, 1700007200000)
	if err != nil {
		t.Fatalf("GetHistoricalRange: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Timestamp != 1700000000000 || pairs[0].Price != 36000.5 {
		t.Fatalf("first pair mismatch: %+v", pairs[0])
	}
}

func TestCoinGeckoRateLimited(t *testing.T) {
	srv := testServer(t, http.StatusTooManyRequests, `{"status":{"error_code":429}}`)

	src := sources.NewCoinGeckoSource("")
	src.BaseURL = srv.URL

	_, err := src.GetHistoricalRange(context.Background(), 0, 1000)
	if !errors.Is(err, sources.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCoinGeckoServerError(t *testing.T) {
	srv := testServer(t, http.StatusBadGateway, `upstream down`)

	src := sources.NewCoinGeckoSource("")
	src.BaseURL = srv.URL

	_, err := src.GetCurrentPrice(context.Background())
	if !errors.Is(err, sources.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestCoinGeckoUnreachable(t *testing.T) {
	src := sources.NewCoinGeckoSource("")
	src.BaseURL = "http://127.0.0.1:1" // nothing listens here

	_, err := src.GetCurrentPrice(context.Background())
	if !errors.Is(err, sources.ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

// ---------- AlphaVantage ----------

func TestAlphaVantageCurrentPrice(t *testing.T) {
	srv := testServer(t, http.StatusOK,
		`{"Realtime Currency Exchange Rate":{"5. Exchange Rate":"64123.45670000"}}`)

	src := sources.NewAlphaVantageSource("test-key")
	src.BaseURL = srv.URL

	before := time.Now().UnixMilli()
	p, err := src.GetCurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if p.Price != 64123.4567 {
		t.Fatalf("price mismatch: got %f", p.Price)
	}
	if p.Source != "alphavantage" {
		t.Fatalf("source mismatch: %s", p.Source)
	}
	if p.Timestamp < before || p.Timestamp > time.Now().UnixMilli() {
		t.Fatalf("timestamp not stamped at receipt time: %d", p.Timestamp)
	}
}

func TestAlphaVantageMissingRateField(t *testing.T) {
	// The free tier answers 200 with a note object when the key is spent.
	srv := testServer(t, http.StatusOK, `{"Note":"API call frequency exceeded"}`)

	src := sources.NewAlphaVantageSource("test-key")
	src.BaseURL = srv.URL

	_, err := src.GetCurrentPrice(context.Background())
	if !errors.Is(err, sources.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestAlphaVantageHistoryUnsupported(t *testing.T) {
	src := sources.NewAlphaVantageSource("test-key")
	_, err := src.GetHistoricalRange(context.Background(), 0, 1000)
	if !errors.Is(err, sources.ErrHistoryUnsupported) {
		t.Fatalf("expected ErrHistoryUnsupported, got %v", err)
	}
}

// ---------- CoinDesk ----------

func TestCoinDeskCurrentPrice(t *testing.T) {
	srv := testServer(t, http.StatusOK,
		`{"Data":{"BTC-USD":{"VALUE":66000.77,"VALUE_LAST_UPDATE_TS":1717245296}}}`)

	src := sources.NewCoinDeskSource("")
	src.BaseURL = srv.URL

	p, err := src.GetCurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("GetCurrentPrice: %v", err)
	}
	if p.Price != 66000.77 {
		t.Fatalf("price mismatch: got %f", p.Price)
	}
	if p.Timestamp != 1717245296000 {
		t.Fatalf("timestamp mismatch: got %d", p.Timestamp)
	}
	if p.Source != "coindesk" {
		t.Fatalf("source mismatch: %s", p.Source)
	}
}

func TestCoinDeskMissingInstrument(t *testing.T) {
	srv := testServer(t, http.StatusOK, `{"Data":{}}`)

	src := sources.NewCoinDeskSource("")
	src.BaseURL = srv.URL

	_, err := src.GetCurrentPrice(context.Background())
	if !errors.Is(err, sources.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestCoinDeskHistoryUnsupported(t *testing.T) {
	src := sources.NewCoinDeskSource("")
	_, err := src.GetHistoricalRange(context.Background(), 0, 1000)
	if !errors.Is(err, sources.ErrHistoryUnsupported) {
		t.Fatalf("expected ErrHistoryUnsupported, got %v", err)
	}
}
