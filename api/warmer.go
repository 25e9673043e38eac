/*
warmer.go - Background salary cache warmer

PURPOSE:
  Periodically computes the current calendar month for every teacher of
  every tenant so the first dashboard read of the day is a cache hit.

DESIGN:
  - Runs a background goroutine with configurable interval
  - Goes through Service.CalculateAllSalaries, the normal read-through
    path: cached entries are returned as they are, never recomputed
  - Never clears the cache; retroactive edits still need DELETE /api/cache
  - Per-teacher failures are logged and left uncached

CONFIGURATION:
  - Interval: How often to warm (default: 1 hour)
  - Enabled: Whether the warmer runs (config: warmer.enabled)

USAGE:
  warmer := NewCacheWarmer(service, loc, logger)
  warmer.Start()
  // ... later
  warmer.Stop()
*/
package api

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/warp/payroll-engine/generic"
	"github.com/warp/payroll-engine/payroll"
)

// WarmStats summarizes one warming pass.
type WarmStats struct {
	Tenants  int
	Teachers int
	Failed   int
}

// CacheWarmer keeps the current month's salaries in cache.
type CacheWarmer struct {
	Service  *payroll.Service
	Location *time.Location
	Interval time.Duration
	Enabled  bool
	Now      func() time.Time

	logger *zap.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewCacheWarmer creates a warmer with a one hour interval.
func NewCacheWarmer(service *payroll.Service, loc *time.Location, logger *zap.Logger) *CacheWarmer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheWarmer{
		Service:  service,
		Location: loc,
		Interval: time.Hour,
		Enabled:  true,
		Now:      time.Now,
		logger:   logger.Named("warmer"),
	}
}

// Start begins warming in the background.
func (cw *CacheWarmer) Start() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if !cw.Enabled {
		cw.logger.Info("disabled, not starting")
		return
	}
	if cw.ticker != nil {
		return
	}

	cw.ticker = time.NewTicker(cw.Interval)
	cw.stop = make(chan struct{})
	cw.wg.Add(1)

	go cw.run(cw.ticker, cw.stop)

	cw.logger.Info("started", zap.Duration("interval", cw.Interval))
}

// Stop stops the warmer and waits for an in-flight pass.
func (cw *CacheWarmer) Stop() {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	if cw.ticker != nil {
		cw.ticker.Stop()
		close(cw.stop)
		cw.wg.Wait()
		cw.ticker = nil
		cw.logger.Info("stopped")
	}
}

func (cw *CacheWarmer) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cw.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	// Run immediately on start
	cw.WarmOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cw.WarmOnce(ctx)
		case <-stop:
			return
		}
	}
}

// WarmOnce runs one pass over every tenant for the current month.
func (cw *CacheWarmer) WarmOnce(ctx context.Context) WarmStats {
	var stats WarmStats
	period := generic.MonthPeriod(generic.DateOf(cw.Now(), cw.Location))

	tenants, err := cw.Service.Directory().ListTenants(ctx)
	if err != nil {
		cw.logger.Error("listing tenants failed", zap.Error(err))
		return stats
	}

	for _, t := range tenants {
		if ctx.Err() != nil {
			return stats
		}
		batch, err := cw.Service.CalculateAllSalaries(ctx, t.ID, period)
		if err != nil {
			cw.logger.Warn("tenant warm failed", zap.String("tenant_id", string(t.ID)), zap.Error(err))
			continue
		}
		stats.Tenants++
		stats.Teachers += batch.Statistics.Teachers
		stats.Failed += batch.Statistics.Failed
	}

	cw.logger.Info("pass completed",
		zap.String("period", period.String()),
		zap.Int("tenants", stats.Tenants),
		zap.Int("teachers", stats.Teachers),
		zap.Int("failed", stats.Failed))
	return stats
}
