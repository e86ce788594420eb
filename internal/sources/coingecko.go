package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Talex210/chart-prices-bitcoin/internal/httputil"
	"github.com/Talex210/chart-prices-bitcoin/internal/models"
)

const coinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoSource is the only provider in the set with historical range
// support, so it also backs the backfill paths.
type CoinGeckoSource struct {
	BaseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewCoinGeckoSource(apiKey string) *CoinGeckoSource {
	return &CoinGeckoSource{
		BaseURL:    coinGeckoBaseURL,
		apiKey:     apiKey,
		httpClient: httputil.NewClient(10 * time.Second),
	}
}

func (s *CoinGeckoSource) Name() string { return "coingecko" }

type coinGeckoMarket struct {
	ID           string  `json:"id"`
	CurrentPrice float64 `json:"current_price"`
	LastUpdated  string  `json:"last_updated"`
}

func (s *CoinGeckoSource) GetCurrentPrice(ctx context.Context) (models.PricePoint, error) {
	reqURL := fmt.Sprintf("%s/coins/markets?vs_currency=%s&ids=%s&x_cg_demo_api_key=%s",
		s.BaseURL, currency, coinID, url.QueryEscape(s.apiKey))

	var markets []coinGeckoMarket
	if err := getJSON(ctx, s.httpClient, reqURL, &markets); err != nil {
		return models.PricePoint{}, fmt.Errorf("coingecko current price: %w", err)
	}

	if len(markets) == 0 {
		return models.PricePoint{}, fmt.Errorf("coingecko current price: %w: empty markets array", ErrMalformedResponse)
	}
	m := markets[0]
	if m.CurrentPrice <= 0 {
		return models.PricePoint{}, fmt.Errorf("coingecko current price: %w: current_price %f", ErrMalformedResponse, m.CurrentPrice)
	}
	updated, err := time.Parse(time.RFC3339, m.LastUpdated)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("coingecko current price: %w: last_updated %q", ErrMalformedResponse, m.LastUpdated)
	}

	return models.PricePoint{
		Timestamp: updated.UnixMilli(),
		Price:     m.CurrentPrice,
		Currency:  currency,
		CoinID:    coinID,
		Source:    s.Name(),
	}, nil
}

func (s *CoinGeckoSource) GetHistoricalRange(ctx context.Context, startMs, endMs int64) ([]PricePair, error) {
	// The range endpoint takes Unix seconds.
	reqURL := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=%s&from=%d&to=%d&x_cg_demo_api_key=%s",
		s.BaseURL, coinID, currency, startMs/1000, endMs/1000, url.QueryEscape(s.apiKey))

	var chart struct {
		Prices [][2]float64 `json:"prices"`
	}
	if err := getJSON(ctx, s.httpClient, reqURL, &chart); err != nil {
		return nil, fmt.Errorf("coingecko historical range: %w", err)
	}

	pairs := make([]PricePair, len(chart.Prices))
	for i, p := range chart.Prices {
		pairs[i] = PricePair{Timestamp: int64(p[0]), Price: p[1]}
	}
	return pairs, nil
}
