package proxypool

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTextProvider_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "1.2.3.4:8080\nnoise here\n5.6.7.8：3128 trailing\n9.9.9.9:80")
	}))
	defer srv.Close()

	provider := NewTextProvider("test-text", srv.URL)
	got, err := provider.Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"1.2.3.4:8080", "5.6.7.8：3128"}, got)
}

func TestTextProvider_FetchBadStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	provider := NewTextProvider("test-text", srv.URL)
	_, err := provider.Fetch(context.Background(), 10)
	require.Error(t, err)
}

func TestTableProvider_Fetch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><table><tbody>
			<tr><td>1.2.3.4</td><td>8080</td><td>elite</td></tr>
			<tr><td>not-an-ip</td><td>80</td></tr>
			<tr><td>5.6.7.8</td><td>3128</td></tr>
			<tr><td>9.9.9.9</td><td>80</td></tr>
		</tbody></table></body></html>`)
	}))
	defer srv.Close()

	provider := NewTableProvider("test-table", srv.URL, "")
	got, err := provider.Fetch(context.Background(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"1.2.3.4:8080", "5.6.7.8:3128"}, got)
}

func TestSignedProvider_Fetch(t *testing.T) {
	t.Parallel()

	const (
		appID  = "app-42"
		secret = "s3cret"
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, appID, q.Get("app_id"))
		require.Equal(t, "3", q.Get("count"))
		require.NotEmpty(t, q.Get("timestamp"))

		canonical := "app_id=" + q.Get("app_id") + "&count=" + q.Get("count") + "&timestamp=" + q.Get("timestamp")
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(canonical))
		require.Equal(t, hex.EncodeToString(mac.Sum(nil)), q.Get("signature"))

		fmt.Fprint(w, `{"code":"10001","msg":"ok","data":{"proxy_list":[
			{"ip":"1.2.3.4","port":8080},
			{"ip":"5.6.7.8","port":"3128"}
		]}}`)
	}))
	defer srv.Close()

	provider := NewSignedProvider(SignedProviderConfig{
		Name:        "paid",
		URL:         srv.URL,
		AppID:       appID,
		AppSecret:   secret,
		MinInterval: time.Millisecond,
	})
	got, err := provider.Fetch(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, []string{"1.2.3.4:8080", "5.6.7.8:3128"}, got)
}

func TestSignedProvider_FetchRejectedCode(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"code":"10055","msg":"quota exhausted","data":{}}`)
	}))
	defer srv.Close()

	provider := NewSignedProvider(SignedProviderConfig{
		Name:        "paid",
		URL:         srv.URL,
		AppID:       "a",
		AppSecret:   "b",
		MinInterval: time.Millisecond,
	})
	_, err := provider.Fetch(context.Background(), 1)
	require.ErrorContains(t, err, "10055")
}
