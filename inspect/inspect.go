// Copyright 2024 The passconv Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package inspect runs the full pipeline for one archive: read, extract,
// convert and, when configured, admit. Every run is timed, traced and logged
// under a fresh extraction ID.
package inspect

import (
	"context"
	"io"
	"time"

	"github.com/open-policy-agent/opa/v1/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/walletpass/passconv/container"
	"github.com/walletpass/passconv/internal/metrics"
	"github.com/walletpass/passconv/pass"
	"github.com/walletpass/passconv/passerr"
	"github.com/walletpass/passconv/pkpass"
	"github.com/walletpass/passconv/policy"
)

const tracerName = "github.com/walletpass/passconv/inspect"

// Service inspects pass archives.
type Service struct {
	logger   logging.Logger
	metrics  *metrics.Metrics
	policy   *policy.Policy
	location *time.Location
	limits   container.Limits
	registry *pkpass.Registry
	clock    func() time.Time
	year     int
	tracer   trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithMetrics enables Prometheus collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithPolicy enables admission checks.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) {
		s.policy = p
	}
}

// WithOffset sets the fixed UTC offset flight times are read in.
func WithOffset(d time.Duration) Option {
	return func(s *Service) {
		s.location = pkpass.FixedLocation(d)
	}
}

// WithLocation is WithOffset for an arbitrary zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		s.location = loc
	}
}

// WithLimits bounds archive reads.
func WithLimits(l container.Limits) Option {
	return func(s *Service) {
		s.limits = l
	}
}

// WithRegistry replaces the subtype registry.
func WithRegistry(r *pkpass.Registry) Option {
	return func(s *Service) {
		s.registry = r
	}
}

// WithClock sets the source of the reference year.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		s.clock = fn
	}
}

// WithYear pins the reference year, overriding the clock.
func WithYear(year int) Option {
	return func(s *Service) {
		s.year = year
	}
}

// WithTracerProvider sets the provider spans are started from. The default
// is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName)
	}
}

// New returns a Service.
func New(opts ...Option) *Service {
	s := &Service{
		logger:   logging.NewNoOpLogger(),
		location: pkpass.DefaultLocation,
		limits:   container.DefaultLimits(),
		registry: pkpass.DefaultRegistry(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.GetTracerProvider().Tracer(tracerName)
	}
	return s
}

// Limits returns the archive limits in effect.
func (s *Service) Limits() container.Limits {
	return s.limits
}

// Year returns the reference year the next inspection will use.
func (s *Service) Year() int {
	if s.year != 0 {
		return s.year
	}
	return s.clock().Year()
}

// Inspect runs the pipeline over the archive read from r. The returned Result
// is non-nil whenever an extraction ID could be allocated, including on
// error. A policy denial is not an error; check Result.Allowed.
func (s *Service) Inspect(ctx context.Context, r io.Reader) (*Result, error) {
	result, stop, err := NewResult()
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "passconv.inspect")
	defer span.End()

	start := time.Now()
	err = s.run(ctx, r, result)
	stop()

	span.SetAttributes(
		attribute.String("passconv.extraction_id", result.ExtractionID),
		attribute.String("passconv.subtype", result.Subtype()),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	if s.metrics != nil {
		code := ""
		if err != nil {
			if code = passerr.CodeOf(err); code == "" {
				code = "internal_error"
			}
		}
		s.metrics.ObserveExtraction(start, result.Subtype(), code)
	}

	logExtraction(s.logger, span, result, err)

	return result, err
}

func (s *Service) run(ctx context.Context, r io.Reader, result *Result) error {
	var c *container.Container
	err := s.stage(ctx, "passconv.container.read", TimerContainer, result, func(context.Context) error {
		cr := &countingReader{r: r}
		var err error
		c, err = container.Read(cr, container.WithLimits(s.limits))
		if s.metrics != nil {
			s.metrics.ObserveArchiveSize(cr.n)
		}
		return err
	})
	if err != nil {
		return err
	}

	err = s.stage(ctx, "passconv.pkpass.extract", TimerExtract, result, func(context.Context) error {
		var err error
		result.PkPass, err = pkpass.Extract(c, s.Year(), pkpass.WithLocation(s.location), pkpass.WithRegistry(s.registry))
		return err
	})
	if err != nil {
		return err
	}

	err = s.stage(ctx, "passconv.pass.convert", TimerConvert, result, func(context.Context) error {
		var err error
		result.Pass, err = pass.FromPkPass(result.PkPass)
		return err
	})
	if err != nil {
		return err
	}

	if s.policy == nil {
		return nil
	}

	return s.stage(ctx, "passconv.policy.evaluate", TimerPolicy, result, func(ctx context.Context) error {
		d, err := s.policy.Decide(ctx, result.Pass, result.Metrics)
		if err != nil {
			return err
		}
		allowed := d.Allowed
		result.Decision = &allowed
		result.Reasons = d.Reasons
		if s.metrics != nil {
			s.metrics.ObserveDecision(allowed)
		}
		return nil
	})
}

func (s *Service) stage(ctx context.Context, name, timer string, result *Result, fn func(context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, name)
	defer span.End()

	result.Metrics.Timer(timer).Start()
	err := fn(ctx)
	result.Metrics.Timer(timer).Stop()

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
