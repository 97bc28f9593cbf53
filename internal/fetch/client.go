// Package fetch retrieves article listings through the proxy pool,
// rotating endpoint and browser fingerprint on every attempt.
package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/content"
	"github.com/fincrawl/guba-harvester/internal/harvest"
	"github.com/fincrawl/guba-harvester/internal/metrics"
)

// DefaultAttempts is how many proxy+fingerprint combinations one
// FetchList call burns through before giving up.
const DefaultAttempts = 3

// DefaultTimeout bounds a single attempt.
const DefaultTimeout = 10 * time.Second

// Config controls client behavior.
type Config struct {
	Attempts int
	Timeout  time.Duration
}

func (c *Config) applyDefaults() {
	if c.Attempts <= 0 {
		c.Attempts = DefaultAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
}

// Client implements harvest.Fetcher. Every attempt runs on a freshly
// cloned collector carrying its own proxy transport and user agent, so
// nothing from a flagged attempt leaks into the next one.
type Client struct {
	cfg           Config
	pool          harvest.ProxyPool
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Client on top of a proxy pool.
func New(cfg Config, pool harvest.ProxyPool, logger *zap.Logger) *Client {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	// Synchronous is colly's default; the Async(false) option cannot be
	// used here because colly v2.1.0's Async option ignores its argument
	// and always enables async mode.
	c := colly.NewCollector()
	c.IgnoreRobotsTxt = true
	// Retries revisit the same list URL, and clones share the visit
	// store with the base collector.
	c.AllowURLRevisit = true
	return &Client{
		cfg:           cfg,
		pool:          pool,
		baseCollector: c,
		logger:        logger.Named("fetch"),
	}
}

// FetchList implements harvest.Fetcher. It tries up to cfg.Attempts
// proxies; a valid listing returns immediately, a no-data page is
// remembered and returned as an empty result if no attempt does
// better, and exhausting every attempt on transport or anti-bot
// failures reports harvest.ErrNetworkUnavailable.
func (c *Client) FetchList(ctx context.Context, listURL string) (harvest.FetchResult, error) {
	var (
		sawNoData   bool
		noDataProxy string
		lastErr     error
	)

	for attempt := 1; attempt <= c.cfg.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return harvest.FetchResult{}, err
		}

		endpoint, err := c.pool.Acquire(ctx)
		if err != nil {
			return harvest.FetchResult{}, fmt.Errorf("acquire proxy: %w", err)
		}

		result, err := c.attempt(ctx, listURL, endpoint)
		if err != nil {
			lastErr = err
			c.pool.ReleaseBad(endpoint)
			c.logger.Debug("attempt failed",
				zap.String("url", listURL),
				zap.String("proxy", endpoint),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			continue
		}

		switch result.Verdict {
		case content.VerdictValid:
			c.pool.UpdateScore(endpoint, true)
			return harvest.FetchResult{Payload: result.Payload, Proxy: endpoint}, nil
		case content.VerdictNoData:
			// The site answered honestly; the proxy is fine. Keep
			// trying in case a different exit sees fresher data.
			sawNoData = true
			noDataProxy = endpoint
			c.pool.UpdateScore(endpoint, true)
		case content.VerdictAntiBot:
			metrics.AntiBotDetected()
			c.pool.UpdateScore(endpoint, false)
			lastErr = fmt.Errorf("%w: proxy %s served decoy content", harvest.ErrAntiBot, endpoint)
			c.logger.Debug("decoy content detected",
				zap.String("url", listURL),
				zap.String("proxy", endpoint),
				zap.Int("attempt", attempt),
			)
		}
	}

	if sawNoData {
		return harvest.FetchResult{Proxy: noDataProxy}, nil
	}
	if lastErr == nil {
		lastErr = harvest.ErrTransport
	}
	return harvest.FetchResult{}, fmt.Errorf("%w: %d attempts failed for %s: %v",
		harvest.ErrNetworkUnavailable, c.cfg.Attempts, listURL, lastErr)
}

// attempt performs one GET through one proxy and classifies the body.
func (c *Client) attempt(ctx context.Context, listURL, endpoint string) (content.Result, error) {
	proxyURL, err := url.Parse(endpoint)
	if err != nil {
		return content.Result{}, fmt.Errorf("%w: bad proxy endpoint %q: %v", harvest.ErrTransport, endpoint, err)
	}

	collector := c.baseCollector.Clone()
	collector.UserAgent = RandomUserAgent()
	collector.SetRequestTimeout(c.cfg.Timeout)
	// No session state may carry over between attempts.
	collector.DisableCookies()
	collector.WithTransport(&http.Transport{
		Proxy:             http.ProxyURL(proxyURL),
		DisableKeepAlives: true,
	})

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml")
		r.Headers.Set("Accept-Language", "zh-CN,zh;q=0.9")
	})
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	start := time.Now()
	visitErr := c.visit(ctx, collector, listURL)
	metrics.ObserveFetchDuration(time.Since(start))

	if visitErr != nil {
		return content.Result{}, visitErr
	}
	if fetchErr != nil {
		return content.Result{}, fmt.Errorf("%w: %v", harvest.ErrTransport, fetchErr)
	}
	if statusCode != http.StatusOK {
		return content.Result{}, fmt.Errorf("%w: status %d", harvest.ErrTransport, statusCode)
	}
	return content.Inspect(body), nil
}

func (c *Client) visit(ctx context.Context, collector *colly.Collector, listURL string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(listURL)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %v", harvest.ErrTransport, err)
		}
		return nil
	}
}
