package harvest

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestListURL(t *testing.T) {
	t.Parallel()

	base := "https://guba.eastmoney.com"
	require.Equal(t, "https://guba.eastmoney.com/list,600000,1,f.html", ListURL(base, "600000", ContentNews, 1))
	require.Equal(t, "https://guba.eastmoney.com/list,600000,1,f_2.html", ListURL(base, "600000", ContentNews, 2))
	require.Equal(t, "https://guba.eastmoney.com/list,000001,2,f.html", ListURL(base, "000001", ContentReport, 0))
	require.Equal(t, "https://guba.eastmoney.com/list,000001,3,f_17.html", ListURL(base, "000001", ContentNotice, 17))
}

func TestContentType(t *testing.T) {
	t.Parallel()

	require.Equal(t, "1,f", ContentNews.TypeCode())
	require.Equal(t, "2,f", ContentReport.TypeCode())
	require.Equal(t, "3,f", ContentNotice.TypeCode())
	require.True(t, ContentNews.Valid())
	require.False(t, ContentType("weather").Valid())
	require.Len(t, AllContentTypes, 3)
}

func TestFlexID_AcceptsNumberAndString(t *testing.T) {
	t.Parallel()

	var item ArticleItem
	require.NoError(t, json.Unmarshal([]byte(`{"post_id": 123456}`), &item))
	require.Equal(t, FlexID("123456"), item.PostID)

	require.NoError(t, json.Unmarshal([]byte(`{"post_id": "AN202608291234"}`), &item))
	require.Equal(t, FlexID("AN202608291234"), item.PostID)
}

func TestRecordKey(t *testing.T) {
	t.Parallel()

	a := Record{StockCode: "600000", ContentType: ContentNews, URLID: "1", Title: "x"}
	b := Record{StockCode: "600000", ContentType: ContentNews, URLID: "1", Title: "different title"}
	require.Equal(t, a.Key(), b.Key(), "the key ignores mutable fields")

	c := Record{StockCode: "600000", ContentType: ContentNotice, URLID: "1"}
	require.NotEqual(t, a.Key(), c.Key())
}
