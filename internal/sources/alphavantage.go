package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/Talex210/chart-prices-bitcoin/internal/httputil"
	"github.com/Talex210/chart-prices-bitcoin/internal/models"
)

const alphaVantageBaseURL = "https://www.alphavantage.co"

type AlphaVantageSource struct {
	BaseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewAlphaVantageSource(apiKey string) *AlphaVantageSource {
	return &AlphaVantageSource{
		BaseURL:    alphaVantageBaseURL,
		apiKey:     apiKey,
		httpClient: httputil.NewClient(10 * time.Second),
	}
}

func (s *AlphaVantageSource) Name() string { return "alphavantage" }

func (s *AlphaVantageSource) GetCurrentPrice(ctx context.Context) (models.PricePoint, error) {
	reqURL := fmt.Sprintf("%s/query?function=CURRENCY_EXCHANGE_RATE&from_currency=BTC&to_currency=USD&apikey=%s",
		s.BaseURL, url.QueryEscape(s.apiKey))

	var data struct {
		Rate struct {
			ExchangeRate string `json:"5. Exchange Rate"`
		} `json:"Realtime Currency Exchange Rate"`
	}
	if err := getJSON(ctx, s.httpClient, reqURL, &data); err != nil {
		return models.PricePoint{}, fmt.Errorf("alphavantage current price: %w", err)
	}

	if data.Rate.ExchangeRate == "" {
		return models.PricePoint{}, fmt.Errorf("alphavantage current price: %w: missing exchange rate field", ErrMalformedResponse)
	}
	price, err := strconv.ParseFloat(data.Rate.ExchangeRate, 64)
	if err != nil {
		return models.PricePoint{}, fmt.Errorf("alphavantage current price: %w: exchange rate %q", ErrMalformedResponse, data.Rate.ExchangeRate)
	}

	// AlphaVantage does not timestamp the quote; stamp receipt time.
	return models.PricePoint{
		Timestamp: time.Now().UnixMilli(),
		Price:     price,
		Currency:  currency,
		CoinID:    coinID,
		Source:    s.Name(),
	}, nil
}

func (s *AlphaVantageSource) GetHistoricalRange(ctx context.Context, startMs, endMs int64) ([]PricePair, error) {
	return nil, fmt.Errorf("alphavantage: %w", ErrHistoryUnsupported)
}
