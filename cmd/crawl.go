package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/app"
	"github.com/fincrawl/guba-harvester/internal/harvest"
)

func newCrawlCmd() *cobra.Command {
	var (
		stockCode string
		feed      string
	)
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls one stock's feeds once",
		Long: `Runs a single pass over one stock: probe each feed's page span,
fetch every page through the proxy pool and persist the records.
With --feed only that feed is crawled.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), stockCode, feed)
		},
	}
	cmd.Flags().StringVar(&stockCode, "stock", "", "stock code to crawl (required)")
	cmd.Flags().StringVar(&feed, "feed", "", "restrict to one feed: news, report or notice")
	_ = cmd.MarkFlagRequired("stock")
	return cmd
}

func runCrawl(parent context.Context, stockCode, feed string) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if feed != "" {
		contentType := harvest.ContentType(feed)
		if !contentType.Valid() {
			return fmt.Errorf("unknown feed %q", feed)
		}
		stats, err := a.Orchestrator.CrawlFeed(ctx, stockCode, contentType)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		a.Logger.Info("feed pass finished",
			zap.String("stock", stockCode),
			zap.String("feed", feed),
			zap.Int("pages", stats.Pages),
			zap.Int("inserted", stats.Inserted),
		)
		return nil
	}

	stats, err := a.Orchestrator.CrawlStock(ctx, stockCode)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.Logger.Info("stock pass finished",
		zap.String("stock", stockCode),
		zap.Int("pages", stats.Pages),
		zap.Int("fetched", stats.Fetched),
		zap.Int("skipped", stats.Skipped),
		zap.Int("inserted", stats.Inserted),
	)
	return nil
}
