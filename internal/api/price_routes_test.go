package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Talex210/chart-prices-bitcoin/internal/models"
	"github.com/Talex210/chart-prices-bitcoin/internal/testutil"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	pool := testutil.SetupPool(t)
	return NewServer(pool, nil, 0, "*")
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.httpServer.Handler.ServeHTTP(rr, req)
	return rr
}

func TestSavePriceThenGetPrices(t *testing.T) {
	s := setupServer(t)

	// String price exercises the coercion path.
	body := `{"timestamp":1000,"price":"50500.25","currency":"usd","coinId":"bitcoin","source":"api-test"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/prices", strings.NewReader(body))
	rr := do(s, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST /v1/prices: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var saveResp map[string]bool
	if err := json.Unmarshal(rr.Body.Bytes(), &saveResp); err != nil {
		t.Fatalf("decode save response: %v", err)
	}
	if !saveResp["success"] {
		t.Fatal("expected success=true")
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/prices?startTime=0&endTime=2000&source=api-test", nil)
	rr = do(s, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("GET /v1/prices: expected 200, got %d (%s)", rr.Code, rr.Body.String())
	}

	var prices []models.PricePoint
	if err := json.Unmarshal(rr.Body.Bytes(), &prices); err != nil {
		t.Fatalf("decode prices: %v", err)
	}
	if len(prices) != 1 {
		t.Fatalf("expected 1 price, got %d", len(prices))
	}
	if prices[0].Price != 50500.25 || prices[0].Timestamp != 1000 {
		t.Fatalf("unexpected record: %+v", prices[0])
	}
}

func TestSavePrice_RejectsBadPayload(t *testing.T) {
	s := setupServer(t)

	cases := []string{
		`{"timestamp":1000,"price":"not-a-number","coinId":"bitcoin","source":"x"}`,
		`{"timestamp":1000,"coinId":"bitcoin","source":"x"}`,
		`{"timestamp":0,"price":1,"coinId":"bitcoin","source":"x"}`,
		`{"timestamp":1000,"price":1,"source":"x"}`,
		`not json`,
	}
	for _, body := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/prices", strings.NewReader(body))
		rr := do(s, req)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("payload %q: expected 400, got %d", body, rr.Code)
		}
	}
}

func TestGetPrices_InvalidWindow(t *testing.T) {
	s := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/prices?startTime=abc&endTime=2000", nil)
	rr := do(s, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestGetPrices_EmptyWindowReturnsEmptyArray(t *testing.T) {
	s := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/prices?startTime=1&endTime=2&source=no-such-source", nil)
	rr := do(s, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Fatalf("expected empty JSON array, got %q", got)
	}
}

func TestBackfill_UnavailableWithoutCoinGecko(t *testing.T) {
	s := setupServer(t) // nil backfiller

	req := httptest.NewRequest(http.MethodPost, "/v1/backfill", nil)
	rr := do(s, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := corsMiddleware(inner, "https://example.com")

	req := httptest.NewRequest(http.MethodOptions, "/v1/prices", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("preflight: expected 200, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://example.com" {
		t.Fatalf("origin header: got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/prices", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusTeapot {
		t.Fatal("non-preflight request did not reach inner handler")
	}
}

func TestCoercePrice(t *testing.T) {
	cases := []struct {
		in      any
		want    float64
		wantErr bool
	}{
		{float64(42.5), 42.5, false},
		{"42.5", 42.5, false},
		{"", 0, true},
		{nil, 0, true},
		{true, 0, true},
	}
	for _, tc := range cases {
		got, err := coercePrice(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("coercePrice(%v): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("coercePrice(%v): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("coercePrice(%v) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestHealth(t *testing.T) {
	s := setupServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := do(s, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" || resp.Services.Database != "connected" {
		t.Fatalf("unexpected health response: %+v", resp)
	}
}
