package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "https://guba.eastmoney.com", cfg.Crawl.BaseURL)
	require.Equal(t, 3, cfg.Fetch.Attempts)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout())
	require.Equal(t, 5, cfg.Pool.MinThreshold)
	require.Equal(t, "guba:proxies:valid", cfg.Redis.Key)
	require.Equal(t, 500*time.Millisecond, cfg.StockDelay())
	require.Equal(t, 5*time.Minute, cfg.DaemonInterval())
	require.True(t, cfg.Logging.Development)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
crawl:
  workers: 16
providers:
  text:
    - name: freelist
      url: http://proxies.example/list.txt
mongo:
  uri: mongodb://localhost:27017
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 16, cfg.Crawl.Workers)
	require.Len(t, cfg.Providers.Text, 1)
	require.Equal(t, "freelist", cfg.Providers.Text[0].Name)
	require.Equal(t, "guba", cfg.Mongo.Database)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		cfg, err := Load("")
		require.NoError(t, err)
		return cfg
	}

	t.Run("signed provider needs credentials", func(t *testing.T) {
		cfg := base()
		cfg.Providers.Signed.URL = "http://paid.example/api"
		require.Error(t, cfg.Validate())

		cfg.Providers.Signed.AppID = "id"
		cfg.Providers.Signed.AppSecret = "secret"
		require.NoError(t, cfg.Validate())
	})

	t.Run("pool ordering", func(t *testing.T) {
		cfg := base()
		cfg.Pool.TargetCount = 2
		require.Error(t, cfg.Validate())
	})

	t.Run("redis needs addr", func(t *testing.T) {
		cfg := base()
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("zero fetch attempts rejected", func(t *testing.T) {
		cfg := base()
		cfg.Fetch.Attempts = 0
		require.Error(t, cfg.Validate())
	})
}
