package harvest

import "errors"

// Failure taxonomy for the fetch/probe/orchestrate chain. Callers
// classify with errors.Is; none of these is ever process-fatal.
var (
	// ErrTransport covers timeouts, refused connections and non-2xx
	// statuses. Proxy-fatal: the endpoint is evicted.
	ErrTransport = errors.New("transport failure")

	// ErrAntiBot marks a structurally wrong or spoofed response body.
	// Score-penalizing for the proxy, not always evicting.
	ErrAntiBot = errors.New("anti-bot content suspected")

	// ErrNoData is the site's legitimate empty-feed response. Neutral:
	// the proxy is not penalized.
	ErrNoData = errors.New("no data for feed")

	// ErrContentMismatch means a page's embedded count deviates too far
	// from the probe's count. Page-level retryable.
	ErrContentMismatch = errors.New("page content mismatch")

	// ErrPoolExhausted means no proxy was available even after a refill
	// attempt. Treated as a page or probe failure, never fatal.
	ErrPoolExhausted = errors.New("proxy pool exhausted")

	// ErrNetworkUnavailable is raised after a Fetcher burns all its
	// attempts without a valid response.
	ErrNetworkUnavailable = errors.New("network unavailable")
)
