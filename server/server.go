// Copyright 2024 The passconv Authors. All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package server exposes the inspection service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/open-policy-agent/opa/v1/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/walletpass/passconv/container"
	"github.com/walletpass/passconv/gwallet"
	"github.com/walletpass/passconv/inspect"
	"github.com/walletpass/passconv/passerr"
)

// Output formats accepted by POST /v1/inspect.
const (
	FormatPass    = "pass"
	FormatGWallet = "gwallet"
	FormatPkPass  = "pkpass"
)

// ExtractionIDHeader carries the extraction ID of every inspect response.
const ExtractionIDHeader = "X-Extraction-Id"

const (
	policyDeniedErr  = "policy_denied"
	tooLargeErr      = "archive_too_large"
	badRequestErr    = "bad_request"
	internalErr      = "internal_error"
	defaultOperation = "passconv"
)

// Server is the HTTP front end of an inspect.Service.
type Server struct {
	addr        string
	svc         *inspect.Service
	logger      logging.Logger
	gatherer    prometheus.Gatherer
	tp          trace.TracerProvider
	propagators propagation.TextMapPropagator
	http        *http.Server
	listener    net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithGatherer sets the registry GET /metrics serves.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithTracerProvider sets the provider for server spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) {
		s.tp = tp
	}
}

// WithPropagators sets how incoming trace context is extracted.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(s *Server) {
		s.propagators = p
	}
}

// New returns a Server listening on addr once started.
func New(addr string, svc *inspect.Service, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		svc:      svc,
		logger:   logging.NewNoOpLogger(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tp == nil {
		s.tp = otel.GetTracerProvider()
	}
	if s.propagators == nil {
		s.propagators = otel.GetTextMapPropagator()
	}
	s.http = &http.Server{Addr: addr, Handler: s.Handler()}
	return s
}

// Handler returns the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/inspect", s.handleInspect)
	})

	return otelhttp.NewHandler(r, defaultOperation,
		otelhttp.WithTracerProvider(s.tp),
		otelhttp.WithPropagators(s.propagators),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Start begins serving in the background.
func (s *Server) Start(ctx context.Context) error {
	// The listener is closed automatically by Serve when it returns.
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = l

	go s.serve(l)
	return nil
}

// Addr returns the bound listener address once started, or the configured
// address before.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *Server) serve(l net.Listener) {
	s.logger.WithFields(map[string]interface{}{
		"addr": l.Addr().String(),
	}).Info("Starting HTTP server.")

	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.WithFields(map[string]interface{}{"err": err}).Error("Listener failed.")
		return
	}

	s.logger.Info("Listener exited.")
}

// Stop gracefully shuts the server down, waiting at most until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type errorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Key     string   `json:"key,omitempty"`
	Entry   string   `json:"entry,omitempty"`
	Reasons []string `json:"reasons,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	switch format {
	case "":
		format = FormatPass
	case FormatPass, FormatGWallet, FormatPkPass:
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Code: badRequestErr, Message: "unknown format " + format})
		return
	}

	body := r.Body
	if n := s.svc.Limits().MaxArchiveBytes; n > 0 {
		body = http.MaxBytesReader(w, r.Body, n)
	}

	result, err := s.svc.Inspect(r.Context(), body)
	if result != nil {
		w.Header().Set(ExtractionIDHeader, result.ExtractionID)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	if !result.Allowed() {
		writeJSON(w, http.StatusForbidden, errorBody{
			Code:    policyDeniedErr,
			Message: "pass rejected by admission policy",
			Reasons: result.Reasons,
		})
		return
	}

	switch format {
	case FormatPkPass:
		writeJSON(w, http.StatusOK, result.PkPass)
	case FormatGWallet:
		preview, err := gwallet.FromPkPass(result.PkPass)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, preview)
	default:
		writeJSON(w, http.StatusOK, result.Pass)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, container.ErrTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Code: tooLargeErr, Message: err.Error()})
		return
	}

	var pe *passerr.Error
	if errors.As(err, &pe) {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{
			Code:    pe.Code,
			Message: err.Error(),
			Key:     pe.Key,
			Entry:   pe.Entry,
		})
		return
	}

	s.logger.WithFields(map[string]interface{}{"err": err}).Error("Inspection failed.")
	writeJSON(w, http.StatusInternalServerError, errorBody{Code: internalErr, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
