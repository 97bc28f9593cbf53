package proxypool

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// SignedProviderConfig configures a paid quota API source. The vendor
// rejects unsigned requests and throttles callers that poll faster than
// MinInterval.
type SignedProviderConfig struct {
	Name        string
	URL         string
	AppID       string
	AppSecret   string
	MinInterval time.Duration
}

// SignedProvider pulls candidates from a paid quota API that requires
// an HMAC signature over the canonicalized query string. The signing
// scheme stays isolated here; the pool only sees host:port strings.
type SignedProvider struct {
	cfg     SignedProviderConfig
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

type signedResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ProxyList []struct {
			IP   string      `json:"ip"`
			Port json.Number `json:"port"`
		} `json:"proxy_list"`
	} `json:"data"`
}

// signedSuccessCode is the vendor's "quota granted" response code.
const signedSuccessCode = "10001"

// NewSignedProvider builds a paid provider. The rate limiter admits one
// call per MinInterval with no burst, matching the vendor's quota rule.
func NewSignedProvider(cfg SignedProviderConfig) *SignedProvider {
	interval := cfg.MinInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &SignedProvider{
		cfg:     cfg,
		client:  newProviderClient(),
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		now:     time.Now,
	}
}

// Name implements Provider.
func (p *SignedProvider) Name() string { return p.cfg.Name }

// Fetch implements Provider.
func (p *SignedProvider) Fetch(ctx context.Context, count int) ([]string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: quota wait: %w", p.cfg.Name, err)
	}

	params := url.Values{}
	params.Set("app_id", p.cfg.AppID)
	params.Set("count", strconv.Itoa(count))
	params.Set("timestamp", strconv.FormatInt(p.now().Unix(), 10))
	params.Set("signature", p.sign(params))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.cfg.Name, err)
	}
	req.Header.Set("User-Agent", providerUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: call quota api: %w", p.cfg.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: quota api returned status %d", p.cfg.Name, resp.StatusCode)
	}

	var payload signedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: decode quota response: %w", p.cfg.Name, err)
	}
	if payload.Code != signedSuccessCode {
		return nil, fmt.Errorf("%s: quota api rejected request: code=%s msg=%s", p.cfg.Name, payload.Code, payload.Msg)
	}

	candidates := make([]string, 0, len(payload.Data.ProxyList))
	for _, entry := range payload.Data.ProxyList {
		if entry.IP == "" || entry.Port.String() == "" {
			continue
		}
		candidates = append(candidates, entry.IP+":"+entry.Port.String())
	}
	return candidates, nil
}

// sign computes the HMAC-SHA256 of the canonicalized query string:
// keys sorted, joined as k=v with '&', signature key excluded.
func (p *SignedProvider) sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "signature" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+params.Get(key))
	}

	mac := hmac.New(sha256.New, []byte(p.cfg.AppSecret))
	mac.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(mac.Sum(nil))
}
