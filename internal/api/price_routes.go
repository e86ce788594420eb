package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Talex210/chart-prices-bitcoin/internal/models"
	"github.com/Talex210/chart-prices-bitcoin/internal/repository"
)

// handleGetPrices serves the downsampled range query. With explicit
// startTime/endTime the window is taken verbatim; otherwise it is derived
// from the period label, ending now.
func (s *Server) handleGetPrices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	period := q.Get("period")
	if period == "" {
		period = repository.PeriodDay
	}
	source := q.Get("source")

	var startMs, endMs int64
	if q.Get("startTime") != "" || q.Get("endTime") != "" {
		var err error
		startMs, err = strconv.ParseInt(q.Get("startTime"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startTime")
			return
		}
		endMs, err = strconv.ParseInt(q.Get("endTime"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endTime")
			return
		}
	} else {
		endMs = time.Now().UnixMilli()
		startMs = endMs - repository.PeriodWindowMillis(period)
	}

	prices, err := s.priceRepo.QueryRange(r.Context(), startMs, endMs, period, source)
	if err != nil {
		s.log.WithError(err).Error("query price range failed")
		writeError(w, http.StatusInternalServerError, "failed to fetch price data from database")
		return
	}
	if prices == nil {
		prices = []models.PricePoint{}
	}
	writeJSON(w, http.StatusOK, prices)
}

type savePriceRequest struct {
	Timestamp int64  `json:"timestamp"`
	Price     any    `json:"price"`
	Currency  string `json:"currency"`
	CoinID    string `json:"coinId"`
	Source    string `json:"source"`
}

func (s *Server) handleSavePrice(w http.ResponseWriter, r *http.Request) {
	var body savePriceRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	price, err := coercePrice(body.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Timestamp <= 0 || body.CoinID == "" || body.Source == "" {
		writeError(w, http.StatusBadRequest, "timestamp, coinId and source are required")
		return
	}
	if body.Currency == "" {
		body.Currency = "usd"
	}

	saved, err := s.priceRepo.UpsertOne(r.Context(), models.PricePoint{
		Timestamp: body.Timestamp,
		Price:     price,
		Currency:  body.Currency,
		CoinID:    body.CoinID,
		Source:    body.Source,
	})
	if err != nil {
		s.log.WithError(err).Error("save price failed")
		writeError(w, http.StatusInternalServerError, "failed to save price data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": saved})
}

// coercePrice accepts a JSON number or a numeric string, matching what
// clients of the original endpoint send.
func coercePrice(v any) (float64, error) {
	switch p := v.(type) {
	case float64:
		return p, nil
	case string:
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("price %q is not a number", p)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("price is required and must be a number")
	}
}

type backfillResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// handleBackfill triggers the long-range historical backfill against the
// one source with range support. It runs synchronously, like the endpoint
// it replaces; expect it to take minutes.
func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	if s.backfiller == nil {
		writeError(w, http.StatusServiceUnavailable, "backfill unavailable: coingecko source not configured")
		return
	}

	res, err := s.backfiller.BackfillYears(r.Context(), "coingecko")
	if err != nil {
		s.log.WithError(err).Error("backfill failed")
		writeError(w, http.StatusInternalServerError, "backfill failed")
		return
	}

	resp := backfillResponse{Success: res.Success(), Message: res.Message()}
	if res.RateLimited {
		resp.Error = "Too Many Requests"
	}
	writeJSON(w, http.StatusOK, resp)
}
