package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/Talex210/chart-prices-bitcoin/internal/models"
	"github.com/Talex210/chart-prices-bitcoin/internal/repository"
	"github.com/Talex210/chart-prices-bitcoin/internal/sources"
)

const (
	// recentWindow is the trailing window EnsureRecentHistory inspects,
	// and wantHourlyPoints the count below which it backfills. This is a
	// count heuristic: it does not detect gaps in the middle of the
	// window, only an insufficient total.
	recentWindow     = 24 * time.Hour
	wantHourlyPoints = 24

	// defaultPause spaces year-range requests to stay under free-tier
	// provider rate limits.
	defaultPause = 2500 * time.Millisecond

	defaultStartYear = 2020
)

// Config tunes the backfiller; zero values take the defaults above.
type Config struct {
	Pause     time.Duration
	StartYear int
}

// Result summarizes a long-range backfill run. An empty FailedYears means
// full success. RateLimited marks a run that aborted early; years after
// the rate-limited one were never attempted.
type Result struct {
	TotalSaved  int64
	FailedYears []int
	RateLimited bool
}

// Message renders the run summary in the shape the backfill endpoint
// returns to its caller.
func (r *Result) Message() string {
	if r.RateLimited {
		return fmt.Sprintf("Backfill stopped due to API rate limiting. Total points saved: %d. Failed years: %v",
			r.TotalSaved, r.FailedYears)
	}
	if len(r.FailedYears) > 0 {
		return fmt.Sprintf("Saved %d historical price points, but failed to fetch data for years: %v",
			r.TotalSaved, r.FailedYears)
	}
	return fmt.Sprintf("Successfully saved a total of %d historical price points for all years", r.TotalSaved)
}

func (r *Result) Success() bool {
	return !r.RateLimited && len(r.FailedYears) == 0
}

type Backfiller struct {
	repo  *repository.PriceRepo
	srcs  map[string]sources.PriceSource
	pause time.Duration
	start int
	log   *logrus.Entry
}

func New(repo *repository.PriceRepo, srcs map[string]sources.PriceSource, cfg Config) *Backfiller {
	if cfg.Pause <= 0 {
		cfg.Pause = defaultPause
	}
	if cfg.StartYear <= 0 {
		cfg.StartYear = defaultStartYear
	}
	return &Backfiller{
		repo:  repo,
		srcs:  srcs,
		pause: cfg.Pause,
		start: cfg.StartYear,
		log:   logrus.WithField("component", "backfill"),
	}
}

// StartYear is the first year BackfillYears covers by default.
func (b *Backfiller) StartYear() int { return b.start }

// EnsureRecentHistory checks whether the store already holds enough hourly
// points for the source in the trailing 24 hours and, if not, fetches the
// window from the source and bulk-upserts it. Sources without historical
// support surface ErrHistoryUnsupported to the caller.
func (b *Backfiller) EnsureRecentHistory(ctx context.Context, sourceName string) error {
	src, ok := b.srcs[sourceName]
	if !ok {
		return fmt.Errorf("unknown source %q", sourceName)
	}

	endMs := time.Now().UnixMilli()
	startMs := endMs - recentWindow.Milliseconds()

	existing, err := b.repo.QueryRange(ctx, startMs, endMs, repository.PeriodDay, sourceName)
	if err != nil {
		return fmt.Errorf("check recent history: %w", err)
	}
	if len(existing) >= wantHourlyPoints {
		return nil
	}

	b.log.WithFields(logrus.Fields{"source": sourceName, "existing": len(existing)}).
		Info("recent history incomplete, fetching trailing 24h")

	pairs, err := src.GetHistoricalRange(ctx, startMs, endMs)
	if err != nil {
		return fmt.Errorf("fetch recent history: %w", err)
	}

	saved, err := b.repo.UpsertBulk(ctx, pairsToRecords(pairs, sourceName))
	if err != nil {
		return fmt.Errorf("save recent history: %w", err)
	}

	b.log.WithFields(logrus.Fields{"source": sourceName, "saved": saved}).
		Info("recent history backfilled")
	return nil
}

// BackfillYears fetches and stores historical data year by year from the
// configured start year through the current year. A rate-limit failure
// aborts the remaining years (provider limits are global, continuing would
// compound the problem); any other per-year failure is recorded and the
// loop moves on.
func (b *Backfiller) BackfillYears(ctx context.Context, sourceName string) (*Result, error) {
	src, ok := b.srcs[sourceName]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", sourceName)
	}

	limiter := rate.NewLimiter(rate.Every(b.pause), 1)
	now := time.Now().UTC()
	currentYear := now.Year()
	res := &Result{}

	b.log.WithFields(logrus.Fields{"source": sourceName, "from": b.start, "to": currentYear}).
		Info("starting historical backfill")

	for year := b.start; year <= currentYear; year++ {
		if err := limiter.Wait(ctx); err != nil {
			return res, err
		}

		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(year, time.December, 31, 23, 59, 59, 0, time.UTC)
		if year == currentYear {
			to = now
		}
		if from.After(now) {
			continue
		}

		yearLog := b.log.WithFields(logrus.Fields{"source": sourceName, "year": year})
		yearLog.Info("fetching year range")

		pairs, err := src.GetHistoricalRange(ctx, from.UnixMilli(), to.UnixMilli())
		if err != nil {
			res.FailedYears = append(res.FailedYears, year)
			if errors.Is(err, sources.ErrRateLimited) {
				res.RateLimited = true
				yearLog.WithError(err).Error("rate limit hit, stopping backfill")
				return res, nil
			}
			yearLog.WithError(err).Error("year fetch failed, continuing")
			continue
		}
		if len(pairs) == 0 {
			yearLog.Info("no historical data for year")
			continue
		}

		saved, err := b.repo.UpsertBulk(ctx, pairsToRecords(pairs, sourceName))
		if err != nil {
			res.FailedYears = append(res.FailedYears, year)
			yearLog.WithError(err).Error("year save failed, continuing")
			continue
		}

		res.TotalSaved += saved
		yearLog.WithField("saved", saved).Info("year saved")
	}

	b.log.WithFields(logrus.Fields{
		"source":       sourceName,
		"total_saved":  res.TotalSaved,
		"failed_years": res.FailedYears,
	}).Info("historical backfill finished")
	return res, nil
}

func pairsToRecords(pairs []sources.PricePair, sourceName string) []models.PricePoint {
	records := make([]models.PricePoint, len(pairs))
	for i, p := range pairs {
		records[i] = models.PricePoint{
			Timestamp: p.Timestamp,
			Price:     p.Price,
			Currency:  "usd",
			CoinID:    "bitcoin",
			Source:    sourceName,
		}
	}
	return records
}
