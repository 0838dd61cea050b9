package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/dispensa"
	"github.com/aretw0/dispensa/internal/server"
	"github.com/aretw0/dispensa/pkg/metrics"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve health, metrics and the live state over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		rec, err := metrics.NewPrometheus(reg)
		if err != nil {
			return err
		}

		rt, err := openRuntime(cmd.Context(), dispensa.WithMetrics(rec))
		if err != nil {
			return err
		}

		addr := serveAddr
		if addr == "" {
			addr = rt.Config.Server.Addr
		}
		srv := server.New(rt.App, reg, slog.Default())

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			return srv.ListenAndServe(ctx, addr)
		})
		g.Go(func() error {
			<-ctx.Done()
			return rt.Close()
		})
		err = g.Wait()
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, 127.0.0.1:8080)")
}
