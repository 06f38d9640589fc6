package cache

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// BatchFetcher prefetches reports for a set of stations. Satisfied by the
// METAR client; fetching through it populates the shared report cache.
type BatchFetcher interface {
	FetchRawBatch(ctx context.Context, stationIDs []string) map[string]*string
}

// Warmer periodically refetches reports for a fixed station list so busy
// stations are served from cache even right after the TTL lapses. The
// interval should sit just under the report TTL.
type Warmer struct {
	scheduler *gocron.Scheduler
	fetcher   BatchFetcher
	stations  []string
	interval  time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// NewWarmer creates a Warmer over the given fetcher and station list.
func NewWarmer(fetcher BatchFetcher, stations []string, interval time.Duration, logger *zap.Logger) *Warmer {
	return &Warmer{
		scheduler: gocron.NewScheduler(time.UTC),
		fetcher:   fetcher,
		stations:  stations,
		interval:  interval,
		timeout:   30 * time.Second,
		logger:    logger,
	}
}

// Start schedules the periodic prefetch and starts the underlying
// scheduler. A nil or empty station list schedules nothing.
func (w *Warmer) Start() error {
	if len(w.stations) == 0 {
		w.logger.Info("cache warming disabled: no stations configured")
		return nil
	}

	interval := w.interval
	if interval <= 0 {
		interval = 4 * time.Minute
	}

	_, err := w.scheduler.Every(interval).StartImmediately().Do(w.runOnce)
	if err != nil {
		return err
	}

	w.scheduler.StartAsync()
	w.logger.Info("cache warming started",
		zap.Int("stations", len(w.stations)),
		zap.Duration("interval", interval))
	return nil
}

// Stop stops the scheduler and cancels any future runs.
func (w *Warmer) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
}

// runOnce prefetches the full station list in one batch call. Stations
// the upstream has no data for are logged and skipped; the batch itself
// never fails.
func (w *Warmer) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	results := w.fetcher.FetchRawBatch(ctx, w.stations)

	warmed := 0
	for _, raw := range results {
		if raw != nil {
			warmed++
		}
	}
	w.logger.Debug("cache warming cycle complete",
		zap.Int("requested", len(w.stations)),
		zap.Int("warmed", warmed),
		zap.Duration("elapsed", time.Since(start)))
}
