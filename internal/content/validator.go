// Package content inspects fetched list-page bodies against the target
// site's known-good structure. The site answers suspected bots with a
// real-looking page carrying spoofed data, so validation is content
// level, not HTTP level.
package content

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/fincrawl/guba-harvester/internal/harvest"
)

// AuthorSuffix is the site quirk used to detect redirection to spoofed
// content: every genuine feed item's author nickname ends with it.
const AuthorSuffix = "资讯"

const (
	dataBlockMarker = "var article_list"
	noDataMarker    = "没有相关数据"
	captchaMarker   = "验证"
)

// Verdict classifies one response body.
type Verdict int

// Possible verdicts, in decreasing order of trust.
const (
	// VerdictValid means the body carries a structurally sound payload.
	VerdictValid Verdict = iota
	// VerdictNoData means the site legitimately reported an empty feed.
	VerdictNoData
	// VerdictAntiBot means the body looks like decoy content served to
	// a flagged client.
	VerdictAntiBot
)

// String implements fmt.Stringer for log fields.
func (v Verdict) String() string {
	switch v {
	case VerdictValid:
		return "valid"
	case VerdictNoData:
		return "no_data"
	case VerdictAntiBot:
		return "anti_bot"
	default:
		return "unknown"
	}
}

// Result is the outcome of inspecting one body. Payload is non-nil only
// for VerdictValid.
type Result struct {
	Verdict Verdict
	Payload *harvest.ArticleList
}

// rawArticleList mirrors the embedded JSON with a pointer count so a
// missing count field is distinguishable from count: 0.
type rawArticleList struct {
	Count *int                  `json:"count"`
	Items []harvest.ArticleItem `json:"re"`
}

// Inspect is a pure function over one fetched body. It locates the
// embedded data block, decodes exactly one JSON object from it, and
// checks the count field plus the author-suffix invariant.
func Inspect(body []byte) Result {
	payload, found := extractPayload(body)
	if !found {
		if bytes.Contains(body, []byte(noDataMarker)) {
			return Result{Verdict: VerdictNoData}
		}
		// Captcha interstitials and full redirects both land here.
		return Result{Verdict: VerdictAntiBot}
	}

	if payload.Count == nil {
		return Result{Verdict: VerdictAntiBot}
	}
	for _, item := range payload.Items {
		if !strings.HasSuffix(item.UserNickname, AuthorSuffix) {
			return Result{Verdict: VerdictAntiBot}
		}
	}

	return Result{
		Verdict: VerdictValid,
		Payload: &harvest.ArticleList{
			Count: *payload.Count,
			Items: payload.Items,
		},
	}
}

// extractPayload finds the data-block assignment and decodes the first
// complete JSON object after it. The script tag holds trailing
// statements after the object, so a plain Unmarshal of the remainder
// would fail on extra data; a streaming decode of one value does not.
func extractPayload(body []byte) (rawArticleList, bool) {
	var raw rawArticleList

	idx := bytes.Index(body, []byte(dataBlockMarker))
	if idx < 0 {
		return raw, false
	}
	rest := body[idx:]
	brace := bytes.IndexByte(rest, '{')
	if brace < 0 {
		return raw, false
	}

	dec := json.NewDecoder(bytes.NewReader(rest[brace:]))
	if err := dec.Decode(&raw); err != nil {
		return raw, false
	}
	return raw, true
}
