package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fincrawl/guba-harvester/internal/app"
)

func newScheduleCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Runs continuous harvest rounds over the stock universe",
		Long: `Walks the configured stock universe round after round, keeping the
proxy pool healthy in the background and exposing the ops HTTP surface.
With --once a single round is run and the process exits.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchedule(cmd.Context(), once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "stop after one full round")
	return cmd
}

func runSchedule(parent context.Context, once bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if once {
		cfg.Scheduler.Once = true
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.Ops.Start()
	})
	group.Go(func() error {
		a.Scheduler.RunPoolDaemon(groupCtx)
		return nil
	})
	group.Go(func() error {
		defer func() {
			if err := a.Ops.Shutdown(context.Background()); err != nil {
				a.Logger.Warn("ops shutdown failed", zap.Error(err))
			}
		}()
		return a.Scheduler.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
