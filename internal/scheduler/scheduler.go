package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Talex210/chart-prices-bitcoin/internal/backfill"
	"github.com/Talex210/chart-prices-bitcoin/internal/repository"
	"github.com/Talex210/chart-prices-bitcoin/internal/sources"
)

const (
	defaultInterval = 1 * time.Hour
	tickTimeout     = 30 * time.Second
	backfillTimeout = 90 * time.Second
)

// Scheduler drives fetch-and-save per source: a startup gap check, one
// immediate fetch, then a fixed-interval recurring fetch. Sources run in
// independent goroutines so one source's failure never blocks another's
// schedule. Within a source the loop is sequential, so a slow tick cannot
// overlap the next write for the same source.
type Scheduler struct {
	srcs       map[string]sources.PriceSource
	repo       *repository.PriceRepo
	backfiller *backfill.Backfiller
	interval   time.Duration
	log        *logrus.Entry

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func New(srcs map[string]sources.PriceSource, repo *repository.PriceRepo, backfiller *backfill.Backfiller, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Scheduler{
		srcs:       srcs,
		repo:       repo,
		backfiller: backfiller,
		interval:   interval,
		log:        logrus.WithField("component", "scheduler"),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	for name, src := range s.srcs {
		s.wg.Add(1)
		go s.run(name, src)
	}

	s.log.WithFields(logrus.Fields{"sources": len(s.srcs), "interval": s.interval.String()}).
		Info("scheduler started")
}

// Stop cancels the recurring timers and waits for the per-source loops to
// exit. In-flight requests finish on their own timeouts.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(name string, src sources.PriceSource) {
	defer s.wg.Done()

	s.ensureHistory(name)
	s.fetchAndSave(name, src)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.fetchAndSave(name, src)
		}
	}
}

// ensureHistory runs the trailing-24h gap check before the recurring loop
// starts. Failures are logged and swallowed: a missed backfill only means
// a sparse chart until the ticks fill it in.
func (s *Scheduler) ensureHistory(name string) {
	if s.backfiller == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), backfillTimeout)
	defer cancel()

	err := s.backfiller.EnsureRecentHistory(ctx, name)
	switch {
	case err == nil:
	case errors.Is(err, sources.ErrHistoryUnsupported):
		s.log.WithField("source", name).Debug("source has no historical range, skipping gap check")
	default:
		s.log.WithField("source", name).WithError(err).Error("recent history check failed")
	}
}

// fetchAndSave is one tick of work for one source. Errors are logged with
// the source identifier and never propagated; the next tick is the retry.
func (s *Scheduler) fetchAndSave(name string, src sources.PriceSource) {
	ctx, cancel := context.WithTimeout(context.Background(), tickTimeout)
	defer cancel()

	p, err := src.GetCurrentPrice(ctx)
	if err != nil {
		s.log.WithField("source", name).WithError(err).Error("fetch current price failed")
		return
	}

	if _, err := s.repo.UpsertOne(ctx, p); err != nil {
		s.log.WithField("source", name).WithError(err).Error("save current price failed")
		return
	}

	s.log.WithFields(logrus.Fields{
		"source": name,
		"price":  p.Price,
		"at":     time.UnixMilli(p.Timestamp).UTC().Format(time.RFC3339),
	}).Info("price updated")
}
