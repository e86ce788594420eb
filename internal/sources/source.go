package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Talex210/chart-prices-bitcoin/internal/httputil"
	"github.com/Talex210/chart-prices-bitcoin/internal/models"
)

const (
	coinID   = "bitcoin"
	currency = "usd"
)

// Failure taxonomy shared by all adapters. Callers branch on these with
// errors.Is to choose retry-vs-abort policy; adapters themselves never
// retry.
var (
	// ErrSourceUnavailable means the provider could not be reached or
	// answered with a non-success status.
	ErrSourceUnavailable = errors.New("price source unavailable")

	// ErrMalformedResponse means the provider answered but an expected
	// field was absent or unparsable.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrRateLimited means the provider answered HTTP 429.
	ErrRateLimited = errors.New("provider rate limit exceeded")

	// ErrHistoryUnsupported is returned by GetHistoricalRange on providers
	// that only expose a latest quote.
	ErrHistoryUnsupported = errors.New("historical range not supported")
)

// PricePair is one (timestamp ms, price) sample from a historical range.
type PricePair struct {
	Timestamp int64
	Price     float64
}

// PriceSource is an external price provider. Implementations are stateless
// apart from held credentials and perform no side effects beyond the
// outbound HTTP call.
type PriceSource interface {
	Name() string
	GetCurrentPrice(ctx context.Context) (models.PricePoint, error)
	GetHistoricalRange(ctx context.Context, startMs, endMs int64) ([]PricePair, error)
}

// getJSON fetches url and decodes it into out, mapping transport and
// status failures onto the taxonomy above.
func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	body, err := httputil.Get(ctx, client, url)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) {
			if se.Status == http.StatusTooManyRequests {
				return fmt.Errorf("%w: %s", ErrRateLimited, se.Body)
			}
			return fmt.Errorf("%w: HTTP %d", ErrSourceUnavailable, se.Status)
		}
		return fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode: %v", ErrMalformedResponse, err)
	}
	return nil
}
