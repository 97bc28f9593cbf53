package proxypool

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// TextProvider scrapes a free source that serves a plain-text listing
// of IP:port pairs, one per line or embedded in markup.
type TextProvider struct {
	name   string
	url    string
	client *http.Client
}

// NewTextProvider builds a provider for one text-listing URL.
func NewTextProvider(name, url string) *TextProvider {
	return &TextProvider{
		name:   name,
		url:    url,
		client: newProviderClient(),
	}
}

// Name implements Provider.
func (p *TextProvider) Name() string { return p.name }

// Fetch implements Provider.
func (p *TextProvider) Fetch(ctx context.Context, count int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("User-Agent", providerUserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch listing: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: listing returned status %d", p.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%s: read listing: %w", p.name, err)
	}

	found := hostPortPattern.FindAllString(string(body), -1)
	if count > 0 && len(found) > count {
		found = found[:count]
	}
	return found, nil
}
