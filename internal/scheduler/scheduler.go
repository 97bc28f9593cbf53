// Package scheduler turns single-stock crawls into continuous harvest
// rounds over the whole universe.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/crawl"
	"github.com/fincrawl/guba-harvester/internal/harvest"
)

// Crawler runs one full pass over a stock.
type Crawler interface {
	CrawlStock(ctx context.Context, stockCode string) (crawl.PassStats, error)
}

// PoolMaintainer is the slice of the proxy pool the scheduler needs
// for health keeping.
type PoolMaintainer interface {
	Len() int
	Refill(ctx context.Context) error
}

// Config tunes the round loop.
type Config struct {
	// StockDelay spaces consecutive stocks so the site never sees a
	// firehose from one run.
	StockDelay time.Duration
	// RoundPause separates two full rounds.
	RoundPause time.Duration
	// PoolCheckEvery re-checks pool health after this many stocks.
	PoolCheckEvery int
	// PoolMin is the size below which a health check refills.
	PoolMin int
	// DaemonInterval paces the background pool daemon.
	DaemonInterval time.Duration
	// Once stops after a single round.
	Once bool
}

func (c *Config) applyDefaults() {
	if c.StockDelay < 0 {
		c.StockDelay = 0
	}
	if c.RoundPause <= 0 {
		c.RoundPause = time.Minute
	}
	if c.PoolCheckEvery <= 0 {
		c.PoolCheckEvery = 10
	}
	if c.PoolMin <= 0 {
		c.PoolMin = 5
	}
	if c.DaemonInterval <= 0 {
		c.DaemonInterval = 5 * time.Minute
	}
}

// Scheduler walks the stock universe round after round.
type Scheduler struct {
	cfg     Config
	crawler Crawler
	source  harvest.StockSource
	pool    PoolMaintainer
	logger  *zap.Logger
}

// New builds a Scheduler.
func New(cfg Config, crawler Crawler, source harvest.StockSource, pool PoolMaintainer, logger *zap.Logger) *Scheduler {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:     cfg,
		crawler: crawler,
		source:  source,
		pool:    pool,
		logger:  logger.Named("scheduler"),
	}
}

// Run loops rounds until the context ends, or returns after one round
// in once mode. A failed stock never stops the round.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := s.runRound(ctx); err != nil {
			return err
		}
		if s.cfg.Once {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.cfg.RoundPause):
		}
	}
}

func (s *Scheduler) runRound(ctx context.Context) error {
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID))

	stockCodes, err := s.source.Stocks(ctx)
	if err != nil {
		return err
	}
	logger.Info("round started", zap.Int("stocks", len(stockCodes)))

	start := time.Now()
	var round crawl.PassStats
	failed := 0
	for i, stockCode := range stockCodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i%s.cfg.PoolCheckEvery == 0 {
			s.ensurePool(ctx, logger)
		}

		stats, err := s.crawler.CrawlStock(ctx, stockCode)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			logger.Warn("stock crawl failed", zap.String("stock", stockCode), zap.Error(err))
		}
		round.Pages += stats.Pages
		round.Fetched += stats.Fetched
		round.Skipped += stats.Skipped
		round.Inserted += stats.Inserted

		if s.cfg.StockDelay > 0 && i < len(stockCodes)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.cfg.StockDelay):
			}
		}
	}

	logger.Info("round finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("stocks", len(stockCodes)),
		zap.Int("failed", failed),
		zap.Int("pages", round.Pages),
		zap.Int("inserted", round.Inserted),
	)
	return nil
}

// RunPoolDaemon keeps the pool healthy independently of crawl
// progress. Meant to run as its own goroutine next to Run.
func (s *Scheduler) RunPoolDaemon(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.DaemonInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ensurePool(ctx, s.logger)
		}
	}
}

func (s *Scheduler) ensurePool(ctx context.Context, logger *zap.Logger) {
	size := s.pool.Len()
	if size >= s.cfg.PoolMin {
		return
	}
	logger.Info("pool below minimum, refilling", zap.Int("size", size), zap.Int("min", s.cfg.PoolMin))
	if err := s.pool.Refill(ctx); err != nil {
		logger.Warn("pool refill failed", zap.Error(err))
	}
}
