package proxypool

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// Provider pulls raw proxy candidates from one source. Implementations
// only fetch and parse; verification belongs to the pool's refill.
type Provider interface {
	// Name identifies the source in logs.
	Name() string

	// Fetch returns up to count raw "host:port" candidates. Returning
	// zero candidates is not an error.
	Fetch(ctx context.Context, count int) ([]string, error)
}

// hostPortPattern matches IP:port pairs in free-source listings. The
// fullwidth colon shows up in some Chinese listings.
var hostPortPattern = regexp.MustCompile(`\d+\.\d+\.\d+\.\d+[:：]\d+`)

// NormalizeEndpoint turns a raw candidate into the canonical pool key
// form "http://host:port".
func NormalizeEndpoint(raw string) string {
	endpoint := strings.ReplaceAll(strings.TrimSpace(raw), "：", ":")
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "http://" + endpoint
	}
	return endpoint
}

func newProviderClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}

const providerUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
