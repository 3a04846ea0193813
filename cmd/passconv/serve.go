package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/walletpass/passconv/inspect"
	"github.com/walletpass/passconv/internal/config"
	"github.com/walletpass/passconv/internal/metrics"
	"github.com/walletpass/passconv/pkpass"
	"github.com/walletpass/passconv/policy"
	"github.com/walletpass/passconv/server"
)

func newServeCommand(g *globalFlags) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the inspection API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, g.envFile)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, g, cfg)

			logger, err := newLogger(cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			tp, err := setupTracing(ctx, cfg.Tracing)
			if err != nil {
				return err
			}
			defer func() {
				_ = tp.Shutdown(context.Background())
			}()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			opts := []inspect.Option{
				inspect.WithLogger(logger),
				inspect.WithMetrics(metrics.New(reg)),
				inspect.WithLocation(pkpass.FixedLocation(cfg.Offset())),
				inspect.WithLimits(cfg.Limits),
				inspect.WithTracerProvider(tp),
			}
			if cfg.Year != 0 {
				opts = append(opts, inspect.WithYear(cfg.Year))
			}
			if len(cfg.Policies) > 0 {
				modules, err := cfg.LoadPolicies()
				if err != nil {
					return err
				}
				polOpts := append([]policy.Option{policy.WithLogger(logger)}, cfg.PolicyOptions()...)
				pol, err := policy.New(ctx, cfg.Query, modules, polOpts...)
				if err != nil {
					return err
				}
				opts = append(opts, inspect.WithPolicy(pol))
			}

			srv := server.New(cfg.Addr, inspect.New(opts...),
				server.WithLogger(logger),
				server.WithGatherer(reg),
				server.WithTracerProvider(tp),
			)
			if err := srv.Start(ctx); err != nil {
				return err
			}

			<-ctx.Done()
			logger.Info("Shutting down.")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace())
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "YAML or JSON config file")
	return cmd
}

// applyFlagOverrides lets explicitly set global flags win over the config
// file and environment.
func applyFlagOverrides(cmd *cobra.Command, g *globalFlags, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = g.logFormat
	}
	if flags.Changed("year") {
		cfg.Year = g.year
	}
	if flags.Changed("utc-offset") {
		cfg.SetOffset(g.utcOffset)
	}
}
