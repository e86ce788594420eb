package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/Talex210/chart-prices-bitcoin/internal/backfill"
	"github.com/Talex210/chart-prices-bitcoin/internal/repository"
)

type Server struct {
	pool       *pgxpool.Pool
	priceRepo  *repository.PriceRepo
	backfiller *backfill.Backfiller
	httpServer *http.Server
	log        *logrus.Entry
}

func NewServer(pool *pgxpool.Pool, backfiller *backfill.Backfiller, port int, corsOrigin string) *Server {
	s := &Server{
		pool:       pool,
		priceRepo:  repository.NewPriceRepo(pool),
		backfiller: backfiller,
		log:        logrus.WithField("component", "api"),
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/prices", s.handleGetPrices)
	mux.HandleFunc("POST /v1/prices", s.handleSavePrice)
	mux.HandleFunc("POST /v1/backfill", s.handleBackfill)
	mux.HandleFunc("GET /health", s.handleHealth)

	handler := corsMiddleware(mux, corsOrigin)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", port),
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: the backfill endpoint legitimately runs for
		// minutes with its inter-year pauses.
	}

	return s
}

func (s *Server) Start() error {
	s.log.WithField("addr", s.httpServer.Addr).Info("REST API server started")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// --- middleware ---

func corsMiddleware(next http.Handler, allowOrigin string) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
