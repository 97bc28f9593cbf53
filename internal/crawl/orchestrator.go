// Package crawl runs full feed passes: probe the page span, fetch the
// pages concurrently, and commit every page's records in strictly
// ascending page order.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/harvest"
	"github.com/fincrawl/guba-harvester/internal/metrics"
)

// Prober resolves one feed to a page span before a pass starts.
type Prober interface {
	Pages(ctx context.Context, stockCode string, contentType harvest.ContentType) (pages, total int)
}

// Config tunes one Orchestrator.
type Config struct {
	BaseURL string
	// Workers bounds concurrent page fetches within one pass.
	Workers int
	// CountTolerance is how far a page's embedded total may drift from
	// the probe's total before the page is treated as spoofed.
	CountTolerance int
	// DuplicateThreshold is the number of consecutive zero-insert pages
	// that ends a pass early.
	DuplicateThreshold int
	// LastPageRetries is how often an empty final page is refetched
	// before the emptiness is believed.
	LastPageRetries int
	// Source tags every record with its origin system.
	Source string
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = harvest.DefaultBaseURL
	}
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.CountTolerance <= 0 {
		c.CountTolerance = 100
	}
	if c.DuplicateThreshold <= 0 {
		c.DuplicateThreshold = 2
	}
	if c.LastPageRetries <= 0 {
		c.LastPageRetries = 2
	}
	if c.Source == "" {
		c.Source = "guba"
	}
}

// PassStats summarizes one feed pass.
type PassStats struct {
	Pages      int
	Fetched    int
	Skipped    int
	Inserted   int
	Terminated bool
}

func (s *PassStats) add(other PassStats) {
	s.Pages += other.Pages
	s.Fetched += other.Fetched
	s.Skipped += other.Skipped
	s.Inserted += other.Inserted
	s.Terminated = s.Terminated || other.Terminated
}

// Orchestrator drives feed passes. Page fetches run concurrently, but
// results are committed one page at a time in ascending order, so the
// store always sees page N's records before page N+1's.
type Orchestrator struct {
	cfg     Config
	fetcher harvest.Fetcher
	prober  Prober
	store   harvest.RecordStore
	clock   harvest.Clock
	backoff harvest.BackoffSchedule
	logger  *zap.Logger
}

// New builds an Orchestrator.
func New(cfg Config, fetcher harvest.Fetcher, prober Prober, store harvest.RecordStore, logger *zap.Logger) *Orchestrator {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		prober:  prober,
		store:   store,
		clock:   harvest.SystemClock{},
		backoff: harvest.PageBackoff(),
		logger:  logger.Named("crawl"),
	}
}

// CrawlStock runs one pass over every feed of one stock.
func (o *Orchestrator) CrawlStock(ctx context.Context, stockCode string) (PassStats, error) {
	var stats PassStats
	for _, contentType := range harvest.AllContentTypes {
		passStats, err := o.CrawlFeed(ctx, stockCode, contentType)
		stats.add(passStats)
		if err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// pageResult is one page's outcome handed from a fetch goroutine to the
// ordered consumer.
type pageResult struct {
	page    int
	records []harvest.Record
	err     error
}

// CrawlFeed runs one pass over a single (stock, feed) pair.
//
// Pages are fetched by a bounded worker set, each delivering into its
// own single-slot channel; the consumer walks those channels in page
// order. Two consecutive pages adding zero new records mean the pass
// has caught up with already-harvested history, which cancels all
// not-yet-started fetches.
func (o *Orchestrator) CrawlFeed(ctx context.Context, stockCode string, contentType harvest.ContentType) (PassStats, error) {
	var stats PassStats

	pages, total := o.prober.Pages(ctx, stockCode, contentType)
	if pages == 0 {
		o.logger.Debug("feed empty, skipping pass",
			zap.String("stock", stockCode),
			zap.String("content_type", string(contentType)),
		)
		return stats, nil
	}
	stats.Pages = pages

	passCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, o.cfg.Workers)
	futures := make([]chan pageResult, pages)
	for page := 1; page <= pages; page++ {
		future := make(chan pageResult, 1)
		futures[page-1] = future
		go func(page int) {
			select {
			case sem <- struct{}{}:
			case <-passCtx.Done():
				future <- pageResult{page: page, err: passCtx.Err()}
				return
			}
			defer func() { <-sem }()
			future <- o.fetchPage(passCtx, stockCode, contentType, page, pages, total)
		}(page)
	}

	duplicateStreak := 0
	for page := 1; page <= pages; page++ {
		result := <-futures[page-1]

		if result.err != nil {
			if passCtx.Err() != nil {
				break
			}
			stats.Skipped++
			metrics.PageFetched(string(contentType), "failed")
			o.logger.Warn("page failed, skipping",
				zap.String("stock", stockCode),
				zap.String("content_type", string(contentType)),
				zap.Int("page", page),
				zap.Error(result.err),
			)
			// A failed page proves nothing about history; it must not
			// feed the duplicate streak.
			continue
		}

		stats.Fetched++
		metrics.PageFetched(string(contentType), "ok")

		inserted, err := o.store.Insert(ctx, result.records)
		if err != nil {
			stats.Skipped++
			o.logger.Warn("store insert failed",
				zap.String("stock", stockCode),
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}
		stats.Inserted += inserted
		metrics.RecordsInserted(string(contentType), inserted)

		if inserted == 0 {
			duplicateStreak++
			if duplicateStreak >= o.cfg.DuplicateThreshold {
				stats.Terminated = true
				o.logger.Info("caught up with harvested history, ending pass",
					zap.String("stock", stockCode),
					zap.String("content_type", string(contentType)),
					zap.Int("page", page),
				)
				cancel()
				break
			}
		} else {
			duplicateStreak = 0
		}
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}
	return stats, nil
}

// fetchPage retrieves one page with retries and maps its items into
// records. The span's final page is allowed to come back empty, but
// only after the emptiness has been confirmed on refetch.
func (o *Orchestrator) fetchPage(ctx context.Context, stockCode string, contentType harvest.ContentType, page, pages, total int) pageResult {
	url := harvest.ListURL(o.cfg.BaseURL, stockCode, contentType, page)
	lastPage := page == pages

	var (
		records      []harvest.Record
		emptyRetries int
	)
	err := harvest.Retry(ctx, o.backoff, retryable, func(ctx context.Context) error {
		result, err := o.fetcher.FetchList(ctx, url)
		if err != nil {
			return err
		}

		if result.NoData() {
			if !lastPage {
				return fmt.Errorf("%w: page %d/%d reported no data", harvest.ErrContentMismatch, page, pages)
			}
			if emptyRetries < o.cfg.LastPageRetries {
				emptyRetries++
				return fmt.Errorf("%w: final page %d", harvest.ErrNoData, page)
			}
			records = nil
			return nil
		}

		if total > 0 && absDiff(result.Payload.Count, total) > o.cfg.CountTolerance {
			return fmt.Errorf("%w: page %d reports %d items, probe saw %d",
				harvest.ErrContentMismatch, page, result.Payload.Count, total)
		}

		var malformed int
		records, malformed = o.buildRecords(stockCode, contentType, result.Payload.Items)
		if malformed > 0 {
			o.logger.Warn("dropped malformed items",
				zap.String("stock", stockCode),
				zap.Int("page", page),
				zap.Int("malformed", malformed),
			)
		}
		return nil
	})
	return pageResult{page: page, records: records, err: err}
}

func (o *Orchestrator) buildRecords(stockCode string, contentType harvest.ContentType, items []harvest.ArticleItem) ([]harvest.Record, int) {
	now := o.clock.Now()
	records := make([]harvest.Record, 0, len(items))
	malformed := 0
	for _, item := range items {
		record, ok := o.parseItem(stockCode, contentType, item, now)
		if !ok {
			malformed++
			continue
		}
		records = append(records, record)
	}
	return records, malformed
}

// parseItem normalizes one feed item. ok is false for items with no
// usable identity; callers count those instead of dropping them
// silently.
func (o *Orchestrator) parseItem(stockCode string, contentType harvest.ContentType, item harvest.ArticleItem, now time.Time) (harvest.Record, bool) {
	id := string(item.PostID)
	if id == "" {
		return harvest.Record{}, false
	}
	url := item.ArtURL
	if url == "" {
		url = harvest.PostURL(o.cfg.BaseURL, stockCode, id)
	}
	return harvest.Record{
		StockCode:    stockCode,
		ContentType:  contentType,
		Title:        item.PostTitle,
		URL:          url,
		URLID:        id,
		ReadCount:    item.ClickCount,
		CommentCount: item.CommentCount,
		PublishTime:  item.PublishTime,
		Author:       item.UserNickname,
		Grade:        item.GradeType,
		Institution:  item.Institution,
		NoticeType:   item.NoticeType,
		Source:       o.cfg.Source,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, true
}

// retryable admits every harvest-level failure; context cancellation
// ends the schedule immediately.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}
