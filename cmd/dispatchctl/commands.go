package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dispatch/internal/broker"
	"dispatch/internal/logger"
)

func serveCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Consume events from Kafka and dispatch them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Source.Kafka.Brokers) == 0 {
				return fmt.Errorf("source.kafka.brokers is required for serve")
			}

			log, err := logger.New(cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			app, err := NewApp(cfg, log)
			if err != nil {
				return err
			}
			app.RegisterMetrics()
			if err := app.RegisterBuiltins(); err != nil {
				return err
			}
			defer app.Shutdown(context.Background())

			source := broker.NewKafkaSource(cfg.Source.Kafka, app.Processor, log)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{Addr: metricsAddr, Handler: mux}

			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return source.Run(gCtx)
			})
			g.Go(func() error {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gCtx.Done()
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				return server.Shutdown(shutdownCtx)
			})

			log.Infow("engine running", "metrics_addr", metricsAddr)
			if err := g.Wait(); err != nil && err != context.Canceled {
				return err
			}
			log.Infow("engine shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "Prometheus metrics listen address")
	return cmd
}

func handlersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "handlers",
		Short: "List registered handlers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			app, err := NewApp(cfg, logger.NopLogger())
			if err != nil {
				return err
			}
			if err := app.RegisterBuiltins(); err != nil {
				return err
			}

			fmt.Printf("%-20s %-40s %-8s %-8s\n", "ID", "KINDS", "ENABLED", "REUSABLE")
			for _, desc := range app.Registry.List() {
				kinds := make([]string, 0, len(desc.SupportedKinds))
				for _, k := range desc.SupportedKinds.Kinds() {
					kinds = append(kinds, k.String())
				}
				fmt.Printf("%-20s %-40s %-8v %-8v\n",
					desc.ID, strings.Join(kinds, ","), desc.Enabled, desc.Reusable)
			}
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	var (
		handlerID string
		window    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-handler processing statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Stats.Backend != "redis" {
				return fmt.Errorf("stats command requires the redis stats backend")
			}
			if handlerID == "" {
				return fmt.Errorf("--handler is required")
			}

			app, err := NewApp(cfg, logger.NopLogger())
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			now := time.Now()
			agg, err := app.Querier.Query(ctx, handlerID, now.Add(-window), now)
			if err != nil {
				return err
			}

			fmt.Printf("handler:        %s\n", agg.HandlerID)
			fmt.Printf("window:         %s\n", window)
			fmt.Printf("dispatched:     %d\n", agg.Dispatched)
			fmt.Printf("succeeded:      %d\n", agg.Succeeded)
			fmt.Printf("failed:         %d\n", agg.Failed)
			fmt.Printf("fast failures:  %d\n", agg.FastFailures)
			fmt.Printf("cancelled:      %d\n", agg.Cancelled)
			fmt.Printf("skipped:        %d\n", agg.Skipped)
			fmt.Printf("attempts:       %d\n", agg.Attempts)
			fmt.Printf("avg duration:   %s\n", agg.AvgDuration)
			return nil
		},
	}

	cmd.Flags().StringVar(&handlerID, "handler", "", "Handler id to query")
	cmd.Flags().DurationVar(&window, "window", time.Hour, "Query window ending now")
	return cmd
}
