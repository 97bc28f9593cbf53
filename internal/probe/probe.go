// Package probe determines how many list pages a feed currently has by
// reading the total count off the first page.
package probe

import (
	"context"

	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/harvest"
)

// Prober resolves (stock, feed) to a page span before a crawl starts.
type Prober struct {
	fetcher harvest.Fetcher
	baseURL string
	backoff harvest.BackoffSchedule
	logger  *zap.Logger
}

// New builds a Prober over a fetcher.
func New(fetcher harvest.Fetcher, baseURL string, logger *zap.Logger) *Prober {
	if baseURL == "" {
		baseURL = harvest.DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{
		fetcher: fetcher,
		baseURL: baseURL,
		backoff: harvest.ProbeBackoff(),
		logger:  logger.Named("probe"),
	}
}

// Pages returns the page span and total item count for one feed.
//
// An unknown feed kind or an honestly empty feed yields (0, 0), which
// callers treat as "nothing to crawl". When every probe attempt fails
// the result degrades to (1, 0): crawl the first page, skip any
// count cross-checks.
func (p *Prober) Pages(ctx context.Context, stockCode string, contentType harvest.ContentType) (pages, total int) {
	if !contentType.Valid() {
		p.logger.Warn("unknown feed kind", zap.String("content_type", string(contentType)))
		return 0, 0
	}

	url := harvest.ListURL(p.baseURL, stockCode, contentType, 1)

	var result harvest.FetchResult
	err := harvest.Retry(ctx, p.backoff, nil, func(ctx context.Context) error {
		var fetchErr error
		result, fetchErr = p.fetcher.FetchList(ctx, url)
		return fetchErr
	})
	if err != nil {
		p.logger.Warn("probe failed, degrading to single page",
			zap.String("stock", stockCode),
			zap.String("content_type", string(contentType)),
			zap.Error(err),
		)
		return 1, 0
	}

	if result.NoData() {
		return 0, 0
	}

	total = result.Payload.Count
	pages = PageSpan(total)
	p.logger.Debug("probe resolved feed",
		zap.String("stock", stockCode),
		zap.String("content_type", string(contentType)),
		zap.Int("total", total),
		zap.Int("pages", pages),
	)
	return pages, total
}

// PageSpan is ceil(total / page size) with 0 for an empty feed.
func PageSpan(total int) int {
	if total <= 0 {
		return 0
	}
	return (total + harvest.PageSize - 1) / harvest.PageSize
}
