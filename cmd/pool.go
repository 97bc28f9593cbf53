package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fincrawl/guba-harvester/internal/app"
)

func newPoolCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool",
		Short: "Inspects and maintains the proxy pool",
	}
	cmd.AddCommand(newPoolListCmd(), newPoolRefillCmd())
	return cmd
}

func newPoolListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Prints every pooled proxy with its score",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := buildApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			records, err := a.Pool.Snapshot(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ENDPOINT\tSCORE")
			for _, record := range records {
				fmt.Fprintf(w, "%s\t%d\n", record.Endpoint, record.Score)
			}
			return w.Flush()
		},
	}
}

func newPoolRefillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refill",
		Short: "Pulls, verifies and admits fresh proxy candidates",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			before := a.Pool.Len()
			if err := a.Pool.Refill(ctx); err != nil {
				return err
			}
			a.Logger.Info("refill done", zap.Int("before", before), zap.Int("after", a.Pool.Len()))
			return nil
		},
	}
}

func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}
