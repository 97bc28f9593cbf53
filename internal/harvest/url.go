package harvest

import "fmt"

// DefaultBaseURL is the target site's root. Overridable through config
// so tests can point the crawler at a local server.
const DefaultBaseURL = "https://guba.eastmoney.com"

// ListURL builds the list-page URL for (stock, feed, page). Page 1 has
// no page suffix; the site 404s on a "_1" variant.
func ListURL(base, stockCode string, contentType ContentType, page int) string {
	if page <= 1 {
		return fmt.Sprintf("%s/list,%s,%s.html", base, stockCode, contentType.TypeCode())
	}
	return fmt.Sprintf("%s/list,%s,%s_%d.html", base, stockCode, contentType.TypeCode(), page)
}

// PostURL builds the canonical post URL used when an item carries no
// explicit article URL.
func PostURL(base, stockCode, postID string) string {
	return fmt.Sprintf("%s/news,%s,%s.html", base, stockCode, postID)
}
