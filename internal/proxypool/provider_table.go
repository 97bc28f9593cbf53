package proxypool

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TableProvider scrapes a free source that publishes proxies in an HTML
// table with IP and port in the first two cells of each row.
type TableProvider struct {
	name     string
	url      string
	selector string
	client   *http.Client
}

// NewTableProvider builds a provider for one table-style listing. An
// empty selector falls back to scanning every table row.
func NewTableProvider(name, url, selector string) *TableProvider {
	if selector == "" {
		selector = "table tbody tr"
	}
	return &TableProvider{
		name:     name,
		url:      url,
		selector: selector,
		client:   newProviderClient(),
	}
}

// Name implements Provider.
func (p *TableProvider) Name() string { return p.name }

// Fetch implements Provider.
func (p *TableProvider) Fetch(ctx context.Context, count int) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", p.name, err)
	}
	req.Header.Set("User-Agent", providerUserAgent)
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: fetch listing: %w", p.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: listing returned status %d", p.name, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: parse listing: %w", p.name, err)
	}

	var candidates []string
	doc.Find(p.selector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		host := strings.TrimSpace(row.Find("td").Eq(0).Text())
		port := strings.TrimSpace(row.Find("td").Eq(1).Text())
		if host == "" || port == "" {
			return true
		}
		candidate := host + ":" + port
		if !hostPortPattern.MatchString(candidate) {
			return true
		}
		candidates = append(candidates, candidate)
		return count <= 0 || len(candidates) < count
	})
	return candidates, nil
}
