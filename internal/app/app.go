// Package app wires configuration into a ready-to-run harvester.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/config"
	"github.com/fincrawl/guba-harvester/internal/crawl"
	"github.com/fincrawl/guba-harvester/internal/fetch"
	"github.com/fincrawl/guba-harvester/internal/harvest"
	"github.com/fincrawl/guba-harvester/internal/logging"
	"github.com/fincrawl/guba-harvester/internal/ops"
	"github.com/fincrawl/guba-harvester/internal/probe"
	"github.com/fincrawl/guba-harvester/internal/proxypool"
	"github.com/fincrawl/guba-harvester/internal/scheduler"
	"github.com/fincrawl/guba-harvester/internal/stocks"
	"github.com/fincrawl/guba-harvester/internal/store"
)

// App holds every wired component of one harvester process.
type App struct {
	Cfg          config.Config
	Logger       *zap.Logger
	Pool         *proxypool.Pool
	Fetcher      harvest.Fetcher
	Prober       *probe.Prober
	Orchestrator *crawl.Orchestrator
	Records      harvest.RecordStore
	Source       harvest.StockSource
	Scheduler    *scheduler.Scheduler
	Ops          *ops.Server

	redisClient *redis.Client
	mongoStore  *store.Mongo
}

// New builds an App from a loaded configuration.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}

	a := &App{Cfg: cfg, Logger: logger}

	poolStore, err := a.buildPoolStore(ctx)
	if err != nil {
		return nil, err
	}

	verifyURL := harvest.ListURL(cfg.Crawl.BaseURL, "600000", harvest.ContentNews, 1)
	a.Pool = proxypool.New(
		proxypool.Config{
			MinThreshold:  cfg.Pool.MinThreshold,
			TargetCount:   cfg.Pool.TargetCount,
			MaxCount:      cfg.Pool.MaxCount,
			VerifyWorkers: cfg.Pool.VerifyWorkers,
		},
		poolStore,
		buildProviders(cfg),
		proxypool.NewSiteVerifier(verifyURL, logger),
		logger,
	)

	a.Fetcher = fetch.New(fetch.Config{
		Attempts: cfg.Fetch.Attempts,
		Timeout:  cfg.FetchTimeout(),
	}, a.Pool, logger)

	a.Prober = probe.New(a.Fetcher, cfg.Crawl.BaseURL, logger)

	if err := a.buildRecordStore(ctx); err != nil {
		return nil, err
	}

	a.Orchestrator = crawl.New(
		crawl.Config{
			BaseURL:            cfg.Crawl.BaseURL,
			Workers:            cfg.Crawl.Workers,
			CountTolerance:     cfg.Crawl.CountTolerance,
			DuplicateThreshold: cfg.Crawl.DuplicateThreshold,
			LastPageRetries:    cfg.Crawl.LastPageRetries,
			Source:             cfg.Crawl.Source,
		},
		a.Fetcher,
		a.Prober,
		a.Records,
		logger,
	)

	a.Source = buildStockSource(cfg, logger)

	a.Scheduler = scheduler.New(
		scheduler.Config{
			StockDelay:     cfg.StockDelay(),
			RoundPause:     cfg.RoundPause(),
			PoolCheckEvery: cfg.Scheduler.PoolCheckEvery,
			PoolMin:        cfg.Scheduler.PoolMin,
			DaemonInterval: cfg.DaemonInterval(),
			Once:           cfg.Scheduler.Once,
		},
		a.Orchestrator,
		a.Source,
		a.Pool,
		logger,
	)

	a.Ops = ops.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), a.Pool, logger)
	return a, nil
}

func (a *App) buildPoolStore(ctx context.Context) (proxypool.Store, error) {
	if !a.Cfg.Redis.Enabled {
		return proxypool.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     a.Cfg.Redis.Addr,
		Password: a.Cfg.Redis.Password,
		DB:       a.Cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	a.redisClient = client

	key := a.Cfg.Redis.Key
	if key == "" {
		key = proxypool.DefaultCacheKey
	}
	return proxypool.NewRedisStore(client, key), nil
}

func (a *App) buildRecordStore(ctx context.Context) error {
	if a.Cfg.Mongo.URI == "" {
		a.Logger.Warn("no mongo uri configured, records stay in memory")
		a.Records = store.NewMemory()
		return nil
	}

	mongoStore, err := store.NewMongo(ctx, a.Cfg.Mongo.URI, a.Cfg.Mongo.Database, a.Cfg.Mongo.Collection, a.Logger)
	if err != nil {
		return err
	}
	a.mongoStore = mongoStore
	a.Records = mongoStore
	return nil
}

func buildProviders(cfg config.Config) []proxypool.Provider {
	var providers []proxypool.Provider
	for _, p := range cfg.Providers.Text {
		providers = append(providers, proxypool.NewTextProvider(p.Name, p.URL))
	}
	for _, p := range cfg.Providers.Table {
		providers = append(providers, proxypool.NewTableProvider(p.Name, p.URL, p.Selector))
	}
	if signed := cfg.Providers.Signed; signed.URL != "" {
		providers = append(providers, proxypool.NewSignedProvider(proxypool.SignedProviderConfig{
			Name:        signed.Name,
			URL:         signed.URL,
			AppID:       signed.AppID,
			AppSecret:   signed.AppSecret,
			MinInterval: cfg.SignedMinInterval(),
		}))
	}
	return providers
}

func buildStockSource(cfg config.Config, logger *zap.Logger) harvest.StockSource {
	if len(cfg.Stocks.Codes) > 0 {
		return stocks.StaticSource(cfg.Stocks.Codes)
	}
	return stocks.NewFileSource(cfg.Stocks.Path, logger)
}

// Close releases external connections.
func (a *App) Close(ctx context.Context) {
	if a.mongoStore != nil {
		if err := a.mongoStore.Close(ctx); err != nil {
			a.Logger.Warn("mongo disconnect failed", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.Logger.Warn("redis close failed", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}
