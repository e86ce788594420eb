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

const (
	coinDeskBaseURL    = "https://data-api.coindesk.com/index/cc/v1"
	coinDeskInstrument = "BTC-USD"
)

// CoinDeskSource queries the CoinDesk index tick endpoint. The API key is
// optional; the public endpoint answers without one.
type CoinDeskSource struct {
	BaseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewCoinDeskSource(apiKey string) *CoinDeskSource {
	return &CoinDeskSource{
		BaseURL:    coinDeskBaseURL,
		apiKey:     apiKey,
		httpClient: httputil.NewClient(10 * time.Second),
	}
}

func (s *CoinDeskSource) Name() string { return "coindesk" }

type coinDeskTick struct {
	Value        float64 `json:"VALUE"`
	LastUpdateTS int64   `json:"VALUE_LAST_UPDATE_TS"`
}

func (s *CoinDeskSource) GetCurrentPrice(ctx context.Context) (models.PricePoint, error) {
	reqURL := fmt.Sprintf("%s/latest/tick?market=ccix&instruments=%s", s.BaseURL, coinDeskInstrument)
	if s.apiKey != "" {
		reqURL += "&api_key=" + url.QueryEscape(s.apiKey)
	}

	var data struct {
		Data map[string]coinDeskTick `json:"Data"`
	}
	if err := getJSON(ctx, s.httpClient, reqURL, &data); err != nil {
		return models.PricePoint{}, fmt.Errorf("coindesk current price: %w", err)
	}

	tick, ok := data.Data[coinDeskInstrument]
	if !ok {
		return models.PricePoint{}, fmt.Errorf("coindesk current price: %w: instrument %s not in response", ErrMalformedResponse, coinDeskInstrument)
	}
	if tick.Value <= 0 || tick.LastUpdateTS <= 0 {
		return models.PricePoint{}, fmt.Errorf("coindesk current price: %w: value=%f ts=%d", ErrMalformedResponse, tick.Value, tick.LastUpdateTS)
	}

	return models.PricePoint{
		Timestamp: tick.LastUpdateTS * 1000,
		Price:     tick.Value,
		Currency:  currency,
		CoinID:    coinID,
		Source:    s.Name(),
	}, nil
}

func (s *CoinDeskSource) GetHistoricalRange(ctx context.Context, startMs, endMs int64) ([]PricePair, error) {
	return nil, fmt.Errorf("coindesk: %w", ErrHistoryUnsupported)
}
