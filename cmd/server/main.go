package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Talex210/chart-prices-bitcoin/internal/api"
	"github.com/Talex210/chart-prices-bitcoin/internal/backfill"
	"github.com/Talex210/chart-prices-bitcoin/internal/config"
	"github.com/Talex210/chart-prices-bitcoin/internal/db"
	"github.com/Talex210/chart-prices-bitcoin/internal/logging"
	"github.com/Talex210/chart-prices-bitcoin/internal/repository"
	"github.com/Talex210/chart-prices-bitcoin/internal/scheduler"
	"github.com/Talex210/chart-prices-bitcoin/internal/sources"
)

const banner = `
╔══════════════════════════════════════╗
║     Bitcoin Price Tracker v0.2       ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel, cfg.LogFile)
	cfg.Print()

	// Database
	logrus.WithFields(logrus.Fields{"host": cfg.DBHost, "db": cfg.DBName}).Info("connecting to database")
	pool, err := db.Connect(cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("database connection failed")
	}
	defer func() {
		pool.Close()
		logrus.Info("database pool closed")
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx, pool); err != nil {
		logrus.WithError(err).Fatal("schema migration failed")
	}

	priceRepo := repository.NewPriceRepo(pool)

	// Source registry: a source without its required API key simply does
	// not get a scheduler entry.
	srcs := map[string]sources.PriceSource{}
	if cfg.CoinGeckoAPIKey != "" {
		srcs["coingecko"] = sources.NewCoinGeckoSource(cfg.CoinGeckoAPIKey)
	}
	if cfg.AlphaVantageAPIKey != "" {
		srcs["alphavantage"] = sources.NewAlphaVantageSource(cfg.AlphaVantageAPIKey)
	}
	srcs["coindesk"] = sources.NewCoinDeskSource(cfg.CoinDeskAPIKey)

	var backfiller *backfill.Backfiller
	if _, ok := srcs["coingecko"]; ok {
		backfiller = backfill.New(priceRepo, srcs, backfill.Config{StartYear: cfg.BackfillStartYear})
	} else {
		logrus.Warn("backfill disabled: no coingecko source")
	}

	// 1. API server
	srv := api.NewServer(pool, backfiller, cfg.APIPort, cfg.CORSAllowOrigin)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("API server error")
			stop()
		}
	}()

	// 2. Per-source fetch scheduler
	sched := scheduler.New(srcs, priceRepo, backfiller, cfg.FetchInterval)
	sched.Start()

	logrus.Info("all services started")

	<-ctx.Done()
	logrus.Info("shutting down gracefully")

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("API shutdown error")
	}
	logrus.Info("shutdown complete")
}
