// Package harvest defines core types shared across subsystems.
package harvest

import (
	"strings"
	"time"
)

// PageSize is the fixed number of feed items the site serves per list page.
const PageSize = 80

// ContentType identifies one of the site's three paginated feeds per stock.
type ContentType string

// Content-type feeds recognized by the orchestrator.
const (
	ContentNews   ContentType = "news"
	ContentReport ContentType = "report"
	ContentNotice ContentType = "notice"
)

// AllContentTypes is the fixed crawl order for a stock pass.
var AllContentTypes = []ContentType{ContentNews, ContentReport, ContentNotice}

// TypeCode returns the site's URL code for the feed, or "" if the
// content type is unknown.
func (c ContentType) TypeCode() string {
	switch c {
	case ContentNews:
		return "1,f"
	case ContentReport:
		return "2,f"
	case ContentNotice:
		return "3,f"
	default:
		return ""
	}
}

// Valid reports whether c is one of the recognized feeds.
func (c ContentType) Valid() bool {
	return c.TypeCode() != ""
}

// CrawlTask identifies one page fetch within a content-type pass.
// Tasks are ephemeral: created per dispatch, discarded once consumed.
type CrawlTask struct {
	StockCode   string
	ContentType ContentType
	Page        int
}

// Record is the normalized output unit handed to the record store.
// The natural key is (StockCode, ContentType, URLID); a record is never
// mutated after it has been handed to the store.
type Record struct {
	StockCode    string      `bson:"stock_code" json:"stock_code"`
	ContentType  ContentType `bson:"content_type" json:"content_type"`
	Title        string      `bson:"title" json:"title"`
	URL          string      `bson:"url" json:"url"`
	URLID        string      `bson:"url_id" json:"url_id"`
	ReadCount    int64       `bson:"read_count" json:"read_count"`
	CommentCount int64       `bson:"comment_count" json:"comment_count"`
	PublishTime  string      `bson:"publish_time" json:"publish_time"`
	Author       string      `bson:"author,omitempty" json:"author,omitempty"`
	Grade        string      `bson:"grade,omitempty" json:"grade,omitempty"`
	Institution  string      `bson:"institution,omitempty" json:"institution,omitempty"`
	NoticeType   string      `bson:"notice_type,omitempty" json:"notice_type,omitempty"`
	Summary      string      `bson:"summary,omitempty" json:"summary,omitempty"`
	Source       string      `bson:"source" json:"source"`
	CreatedAt    time.Time   `bson:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `bson:"updated_at" json:"updated_at"`
}

// Key returns the record's natural deduplication key.
func (r Record) Key() RecordKey {
	return RecordKey{StockCode: r.StockCode, ContentType: r.ContentType, URLID: r.URLID}
}

// RecordKey is the natural key the store deduplicates on.
type RecordKey struct {
	StockCode   string
	ContentType ContentType
	URLID       string
}

// ProxyRecord is one scored egress endpoint as reported by the pool.
type ProxyRecord struct {
	Endpoint string `json:"endpoint"`
	Score    int    `json:"score"`
}

// FlexID decodes the feed's post_id field, which the site serves both
// as a bare number and as a quoted string depending on the feed.
type FlexID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (f *FlexID) UnmarshalJSON(b []byte) error {
	*f = FlexID(strings.Trim(string(b), `"`))
	return nil
}

// ArticleItem is one entry of the feed's embedded item array.
type ArticleItem struct {
	PostID       FlexID `json:"post_id"`
	PostTitle    string `json:"post_title"`
	ArtURL       string `json:"Art_Url"`
	ClickCount   int64  `json:"post_click_count"`
	CommentCount int64  `json:"post_comment_count"`
	PublishTime  string `json:"post_publish_time"`
	UserNickname string `json:"user_nickname"`
	GradeType    string `json:"grade_type"`
	Institution  string `json:"institution"`
	NoticeType   string `json:"notice_type"`
}

// ArticleList is the JSON payload embedded in a list page.
type ArticleList struct {
	Count int           `json:"count"`
	Items []ArticleItem `json:"re"`
}

// FetchResult is what a Fetcher hands back for one successful list fetch.
// Payload is nil when the site legitimately reported an empty feed.
type FetchResult struct {
	Payload *ArticleList
	Proxy   string
}

// NoData reports whether the fetch hit the site's "no data" response.
func (r FetchResult) NoData() bool {
	return r.Payload == nil
}
