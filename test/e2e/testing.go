// Copyright 2024 The passconv Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package e2e starts a complete passconv server for end-to-end tests.
package e2e

import (
	"context"

	"github.com/open-policy-agent/opa/v1/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/walletpass/passconv/internal/config"
	"github.com/walletpass/passconv/internal/metrics"
	"github.com/walletpass/passconv/inspect"
	"github.com/walletpass/passconv/policy"
	"github.com/walletpass/passconv/server"
)

// Options wires observability into the test server.
type Options struct {
	Logger         logging.Logger
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Registry       *prometheus.Registry
}

// TestInspectServerWithOpts validates cfgJSON, compiles module against the
// configured query and starts a server on the configured address.
func TestInspectServerWithOpts(module, cfgJSON string, opts Options) (*server.Server, error) {
	ctx := context.Background()

	cfg, err := config.Validate([]byte(cfgJSON))
	if err != nil {
		return nil, err
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewNoOpLogger()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	svcOpts := []inspect.Option{
		inspect.WithLogger(opts.Logger),
		inspect.WithMetrics(metrics.New(opts.Registry)),
		inspect.WithOffset(cfg.Offset()),
		inspect.WithLimits(cfg.Limits),
	}
	if cfg.Year != 0 {
		svcOpts = append(svcOpts, inspect.WithYear(cfg.Year))
	}
	if opts.TracerProvider != nil {
		svcOpts = append(svcOpts, inspect.WithTracerProvider(opts.TracerProvider))
	}
	if module != "" {
		p, err := policy.New(ctx, cfg.Query, map[string]string{"example.rego": module}, policy.WithLogger(opts.Logger))
		if err != nil {
			return nil, err
		}
		svcOpts = append(svcOpts, inspect.WithPolicy(p))
	}

	srvOpts := []server.Option{
		server.WithLogger(opts.Logger),
		server.WithGatherer(opts.Registry),
	}
	if opts.TracerProvider != nil {
		srvOpts = append(srvOpts, server.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		srvOpts = append(srvOpts, server.WithPropagators(opts.Propagators))
	}

	s := server.New(cfg.Addr, inspect.New(svcOpts...), srvOpts...)
	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}
