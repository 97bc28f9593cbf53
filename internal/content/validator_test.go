package content

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func listPage(payload string) []byte {
	return []byte(fmt.Sprintf(
		`<html><head><script>var article_list = %s; var other = 1;</script></head><body><div class="listitem"></div></body></html>`,
		payload,
	))
}

func TestInspect_ValidPayload(t *testing.T) {
	t.Parallel()

	body := listPage(`{"count": 42, "re": [
		{"post_id": 1001, "post_title": "t1", "user_nickname": "财经资讯"},
		{"post_id": "1002", "post_title": "t2", "user_nickname": "市场资讯"}
	]}`)

	res := Inspect(body)
	require.Equal(t, VerdictValid, res.Verdict)
	require.NotNil(t, res.Payload)
	require.Equal(t, 42, res.Payload.Count)
	require.Len(t, res.Payload.Items, 2)
	require.Equal(t, "1002", string(res.Payload.Items[1].PostID))
}

func TestInspect_NicknameSuffixViolation(t *testing.T) {
	t.Parallel()

	body := listPage(`{"count": 42, "re": [
		{"post_id": 1001, "post_title": "t1", "user_nickname": "财经资讯"},
		{"post_id": 1002, "post_title": "t2", "user_nickname": "spoofed-user"}
	]}`)

	res := Inspect(body)
	require.Equal(t, VerdictAntiBot, res.Verdict)
	require.Nil(t, res.Payload)
}

func TestInspect_MissingCountField(t *testing.T) {
	t.Parallel()

	res := Inspect(listPage(`{"re": []}`))
	require.Equal(t, VerdictAntiBot, res.Verdict)
}

func TestInspect_CountZeroIsValid(t *testing.T) {
	t.Parallel()

	res := Inspect(listPage(`{"count": 0, "re": []}`))
	require.Equal(t, VerdictValid, res.Verdict)
	require.Equal(t, 0, res.Payload.Count)
}

func TestInspect_NoDataMarker(t *testing.T) {
	t.Parallel()

	res := Inspect([]byte(`<html><body><div>没有相关数据</div></body></html>`))
	require.Equal(t, VerdictNoData, res.Verdict)
}

func TestInspect_MissingBlockWithoutMarker(t *testing.T) {
	t.Parallel()

	res := Inspect([]byte(`<html><body><h1>请完成验证</h1></body></html>`))
	require.Equal(t, VerdictAntiBot, res.Verdict)
}

func TestInspect_MalformedJSON(t *testing.T) {
	t.Parallel()

	res := Inspect([]byte(`<script>var article_list = {count: broken</script>`))
	require.Equal(t, VerdictAntiBot, res.Verdict)
}

func TestInspect_TrailingScriptStatements(t *testing.T) {
	t.Parallel()

	// The object is followed by more JS; only the first JSON value
	// must be decoded.
	body := []byte(`<script>var article_list = {"count": 5, "re": []}; article_list.x = 1; init();</script>`)
	res := Inspect(body)
	require.Equal(t, VerdictValid, res.Verdict)
	require.Equal(t, 5, res.Payload.Count)
}
