// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Pool      PoolConfig      `mapstructure:"pool"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Stocks    StocksConfig    `mapstructure:"stocks"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlConfig governs orchestrator behavior.
type CrawlConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	Workers            int    `mapstructure:"workers"`
	CountTolerance     int    `mapstructure:"count_tolerance"`
	DuplicateThreshold int    `mapstructure:"duplicate_threshold"`
	LastPageRetries    int    `mapstructure:"last_page_retries"`
	Source             string `mapstructure:"source"`
}

// FetchConfig configures the list-page fetch client.
type FetchConfig struct {
	Attempts       int `mapstructure:"attempts"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// PoolConfig sizes the proxy pool.
type PoolConfig struct {
	MinThreshold  int `mapstructure:"min_threshold"`
	TargetCount   int `mapstructure:"target_count"`
	MaxCount      int `mapstructure:"max_count"`
	VerifyWorkers int `mapstructure:"verify_workers"`
}

// ProvidersConfig lists proxy candidate sources.
type ProvidersConfig struct {
	Text   []TextProviderConfig  `mapstructure:"text"`
	Table  []TableProviderConfig `mapstructure:"table"`
	Signed SignedProviderConfig  `mapstructure:"signed"`
}

// TextProviderConfig is one plain-text listing source.
type TextProviderConfig struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// TableProviderConfig is one HTML-table listing source.
type TableProviderConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	Selector string `mapstructure:"selector"`
}

// SignedProviderConfig is the paid quota API source. Empty URL
// disables it.
type SignedProviderConfig struct {
	Name               string `mapstructure:"name"`
	URL                string `mapstructure:"url"`
	AppID              string `mapstructure:"app_id"`
	AppSecret          string `mapstructure:"app_secret"`
	MinIntervalSeconds int    `mapstructure:"min_interval_seconds"`
}

// RedisConfig controls the shared pool store. Disabled means the pool
// lives in process memory only.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// MongoConfig controls record persistence. Empty URI selects the
// in-memory store.
type MongoConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

// StocksConfig selects the stock universe: an explicit code list wins
// over the CSV path.
type StocksConfig struct {
	Path  string   `mapstructure:"path"`
	Codes []string `mapstructure:"codes"`
}

// SchedulerConfig paces the round loop.
type SchedulerConfig struct {
	StockDelayMs           int  `mapstructure:"stock_delay_ms"`
	RoundPauseSeconds      int  `mapstructure:"round_pause_seconds"`
	PoolCheckEvery         int  `mapstructure:"pool_check_every"`
	PoolMin                int  `mapstructure:"pool_min"`
	DaemonIntervalSeconds  int  `mapstructure:"daemon_interval_seconds"`
	Once                   bool `mapstructure:"once"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("crawl.base_url", "https://guba.eastmoney.com")
	v.SetDefault("crawl.workers", 8)
	v.SetDefault("crawl.count_tolerance", 100)
	v.SetDefault("crawl.duplicate_threshold", 2)
	v.SetDefault("crawl.last_page_retries", 2)
	v.SetDefault("crawl.source", "guba")
	v.SetDefault("fetch.attempts", 3)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("pool.min_threshold", 5)
	v.SetDefault("pool.target_count", 20)
	v.SetDefault("pool.max_count", 100)
	v.SetDefault("pool.verify_workers", 30)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key", "guba:proxies:valid")
	v.SetDefault("mongo.database", "guba")
	v.SetDefault("mongo.collection", "articles")
	v.SetDefault("scheduler.stock_delay_ms", 500)
	v.SetDefault("scheduler.round_pause_seconds", 60)
	v.SetDefault("scheduler.pool_check_every", 10)
	v.SetDefault("scheduler.pool_min", 5)
	v.SetDefault("scheduler.daemon_interval_seconds", 300)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawl.Workers <= 0 {
		return fmt.Errorf("crawl.workers must be > 0")
	}
	if c.Fetch.Attempts <= 0 {
		return fmt.Errorf("fetch.attempts must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Pool.MinThreshold <= 0 {
		return fmt.Errorf("pool.min_threshold must be > 0")
	}
	if c.Pool.TargetCount < c.Pool.MinThreshold {
		return fmt.Errorf("pool.target_count must be >= pool.min_threshold")
	}
	if c.Pool.MaxCount < c.Pool.TargetCount {
		return fmt.Errorf("pool.max_count must be >= pool.target_count")
	}
	if c.Providers.Signed.URL != "" && (c.Providers.Signed.AppID == "" || c.Providers.Signed.AppSecret == "") {
		return fmt.Errorf("providers.signed.app_id and app_secret must be set when the signed provider is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must be set when redis is enabled")
	}
	if c.Mongo.URI != "" && (c.Mongo.Database == "" || c.Mongo.Collection == "") {
		return fmt.Errorf("mongo.database and mongo.collection must be set when mongo is enabled")
	}
	return nil
}

// FetchTimeout converts the fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// StockDelay converts the scheduler stock delay into a duration.
func (c Config) StockDelay() time.Duration {
	return time.Duration(c.Scheduler.StockDelayMs) * time.Millisecond
}

// RoundPause converts the scheduler round pause into a duration.
func (c Config) RoundPause() time.Duration {
	return time.Duration(c.Scheduler.RoundPauseSeconds) * time.Second
}

// DaemonInterval converts the pool daemon interval into a duration.
func (c Config) DaemonInterval() time.Duration {
	return time.Duration(c.Scheduler.DaemonIntervalSeconds) * time.Second
}

// SignedMinInterval converts the paid provider polling floor.
func (c Config) SignedMinInterval() time.Duration {
	return time.Duration(c.Providers.Signed.MinIntervalSeconds) * time.Second
}
