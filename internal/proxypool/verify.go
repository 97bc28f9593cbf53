package proxypool

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/content"
)

// VerifyTimeout keeps candidate checks tight; a free proxy slower than
// this is useless against the target site anyway.
const VerifyTimeout = 3 * time.Second

// Verifier vets one candidate endpoint. Implementations decide both
// admission and the initial score.
type Verifier interface {
	Verify(ctx context.Context, endpoint string) (score int, ok bool)
}

// SiteVerifier admits a candidate only if the actual target list URL
// fetched through it passes content validation. An HTTP 200 alone
// proves nothing: the site's anti-bot layer answers flagged clients
// with a healthy-looking decoy page.
type SiteVerifier struct {
	targetURL string
	timeout   time.Duration
	logger    *zap.Logger
}

// NewSiteVerifier builds a verifier for the given target list URL.
func NewSiteVerifier(targetURL string, logger *zap.Logger) *SiteVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SiteVerifier{
		targetURL: targetURL,
		timeout:   VerifyTimeout,
		logger:    logger,
	}
}

// Verify implements Verifier. The initial score is derived from
// response latency: max(100 - 20*latencySeconds, 50).
func (v *SiteVerifier) Verify(ctx context.Context, endpoint string) (int, bool) {
	proxyURL, err := url.Parse(endpoint)
	if err != nil {
		return 0, false
	}

	client := &http.Client{
		Timeout: v.timeout,
		Transport: &http.Transport{
			Proxy:             http.ProxyURL(proxyURL),
			DisableKeepAlives: true,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.targetURL, nil)
	if err != nil {
		return 0, false
	}
	req.Header.Set("User-Agent", providerUserAgent)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, false
	}

	res := content.Inspect(body)
	if res.Verdict == content.VerdictAntiBot {
		v.logger.Debug("candidate served decoy content", zap.String("endpoint", endpoint))
		return 0, false
	}

	latency := time.Since(start)
	return LatencyScore(latency), true
}

// LatencyScore maps a verification round trip to an initial score,
// floored at 50 so a slow-but-working proxy still enters the pool.
func LatencyScore(latency time.Duration) int {
	score := 100 - int(latency.Seconds()*20)
	if score < 50 {
		return 50
	}
	if score > 100 {
		return 100
	}
	return score
}
