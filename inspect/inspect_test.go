package inspect

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/open-policy-agent/opa/v1/logging"
	loggingtest "github.com/open-policy-agent/opa/v1/logging/test"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/walletpass/passconv/container"
	"github.com/walletpass/passconv/internal/metrics"
	"github.com/walletpass/passconv/internal/passtest"
	"github.com/walletpass/passconv/passerr"
	"github.com/walletpass/passconv/policy"
)

const admitModule = `package passconv.admit

default allow := false

allow if input.flight.origin == "SFO"
`

type fixture struct {
	logger   *loggingtest.Logger
	exporter *tracetest.InMemoryExporter
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func newFixture() *fixture {
	logger := loggingtest.New()
	logger.SetLevel(logging.Debug)
	reg := prometheus.NewRegistry()
	return &fixture{
		logger:   logger,
		exporter: tracetest.NewInMemoryExporter(),
		registry: reg,
		metrics:  metrics.New(reg),
	}
}

func (f *fixture) service(opts ...Option) *Service {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(f.exporter))
	base := []Option{
		WithLogger(f.logger),
		WithMetrics(f.metrics),
		WithTracerProvider(tp),
		WithYear(2024),
	}
	return New(append(base, opts...)...)
}

func (f *fixture) spanNames() map[string]bool {
	names := map[string]bool{}
	for _, s := range f.exporter.GetSpans() {
		names[s.Name] = true
	}
	return names
}

func TestInspect(t *testing.T) {
	f := newFixture()
	svc := f.service()

	result, err := svc.Inspect(context.Background(), bytes.NewReader(passtest.Pass(t, passtest.FlightManifest())))
	if err != nil {
		t.Fatal(err)
	}

	if result.ExtractionID == "" {
		t.Fatal("Expected extraction ID")
	}
	if result.Subtype() != "flight" {
		t.Fatalf("Expected subtype flight but got %q", result.Subtype())
	}
	if result.Pass == nil || result.Pass.ID != "ABC123" {
		t.Fatalf("Expected converted pass, got %+v", result.Pass)
	}
	if result.Decision != nil || !result.Allowed() {
		t.Fatal("Expected no decision without a policy")
	}

	bt := result.Pass.Flight.BoardingTime
	if bt == nil || !bt.Equal(time.Date(2024, time.June, 15, 21, 30, 0, 0, time.UTC)) {
		t.Fatalf("Expected boarding at 21:30Z but got %v", bt)
	}

	for _, name := range []string{"passconv.inspect", "passconv.container.read", "passconv.pkpass.extract", "passconv.pass.convert"} {
		if !f.spanNames()[name] {
			t.Errorf("Expected span %q in %v", name, f.spanNames())
		}
	}
	if f.spanNames()["passconv.policy.evaluate"] {
		t.Error("Expected no policy span without a policy")
	}

	all := result.Metrics.All()
	for _, timer := range []string{TimerInspect, TimerContainer, TimerExtract, TimerConvert} {
		if _, ok := all["timer_"+timer+"_ns"]; !ok {
			t.Errorf("Expected timer %q in %v", timer, all)
		}
	}

	entries := f.logger.Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry but got %d", len(entries))
	}
	e := entries[0]
	if e.Message != "Extraction complete." || e.Level != logging.Info {
		t.Fatalf("Unexpected log entry %+v", e)
	}
	if e.Fields["extraction_id"] != result.ExtractionID || e.Fields["subtype"] != "flight" {
		t.Fatalf("Unexpected log fields %v", e.Fields)
	}
	if _, ok := e.Fields["trace_id"]; !ok {
		t.Fatalf("Expected trace_id in %v", e.Fields)
	}

	if got := testutil.ToFloat64(f.metrics.Extractions.WithLabelValues("flight", metrics.OutcomeOK)); got != 1 {
		t.Fatalf("Expected 1 successful extraction but got %v", got)
	}
	if got := testutil.CollectAndCount(f.metrics.ArchiveBytes); got != 1 {
		t.Fatalf("Expected archive size to be observed, got %d series", got)
	}
}

func TestInspectErrors(t *testing.T) {
	tests := []struct {
		name    string
		archive func(t *testing.T) []byte
		code    string
	}{
		{
			name:    "not a zip",
			archive: func(*testing.T) []byte { return []byte("nope") },
			code:    passerr.ContainerErr,
		},
		{
			name: "missing manifest",
			archive: func(t *testing.T) []byte {
				return passtest.Archive(t, passtest.File{Name: "icon.png", Data: []byte{1}})
			},
			code: passerr.MissingManifestErr,
		},
		{
			name: "no subtype",
			archive: func(t *testing.T) []byte {
				m := passtest.FlightManifest()
				delete(m, "boardingPass")
				return passtest.Pass(t, m)
			},
			code: passerr.NoSubtypeErr,
		},
		{
			name: "schema",
			archive: func(t *testing.T) []byte {
				m := passtest.FlightManifest()
				delete(m, "serialNumber")
				return passtest.Pass(t, m)
			},
			code: passerr.SchemaErr,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			svc := f.service()

			result, err := svc.Inspect(context.Background(), bytes.NewReader(tc.archive(t)))
			if passerr.CodeOf(err) != tc.code {
				t.Fatalf("Expected code %q but got %v", tc.code, err)
			}
			if result == nil || result.ExtractionID == "" {
				t.Fatal("Expected result with extraction ID on error")
			}
			if result.Pass != nil {
				t.Fatal("Expected no converted pass on error")
			}

			entries := f.logger.Entries()
			if len(entries) != 1 || entries[0].Level != logging.Error {
				t.Fatalf("Expected a single error entry but got %+v", entries)
			}
			if entries[0].Fields["code"] != tc.code {
				t.Fatalf("Expected code field %q but got %v", tc.code, entries[0].Fields["code"])
			}

			if got := testutil.ToFloat64(f.metrics.ExtractionErrors.WithLabelValues(tc.code)); got != 1 {
				t.Fatalf("Expected 1 %s error but got %v", tc.code, got)
			}

			var failed bool
			for _, s := range f.exporter.GetSpans() {
				if s.Name == "passconv.inspect" && s.Status.Description != "" {
					failed = true
				}
			}
			if !failed {
				t.Fatal("Expected root span to carry the error status")
			}
		})
	}
}

func TestInspectLimits(t *testing.T) {
	f := newFixture()
	archive := passtest.Pass(t, passtest.FlightManifest())
	svc := f.service(WithLimits(container.Limits{MaxArchiveBytes: 64}))

	if svc.Limits().MaxArchiveBytes != 64 {
		t.Fatalf("Expected limit 64 but got %d", svc.Limits().MaxArchiveBytes)
	}

	_, err := svc.Inspect(context.Background(), bytes.NewReader(archive))
	if !errors.Is(err, container.ErrTooLarge) {
		t.Fatalf("Expected archive too large error but got %v", err)
	}
}

func TestInspectPolicy(t *testing.T) {
	ctx := context.Background()
	p, err := policy.New(ctx, "", map[string]string{"admit.rego": admitModule})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("allowed", func(t *testing.T) {
		f := newFixture()
		result, err := f.service(WithPolicy(p)).Inspect(ctx, bytes.NewReader(passtest.Pass(t, passtest.FlightManifest())))
		if err != nil {
			t.Fatal(err)
		}
		if result.Decision == nil || !result.Allowed() {
			t.Fatal("Expected pass to be allowed")
		}
		if !f.spanNames()["passconv.policy.evaluate"] {
			t.Fatal("Expected policy span")
		}
		if _, ok := result.Metrics.All()["timer_"+TimerPolicy+"_ns"]; !ok {
			t.Fatalf("Expected policy timer in %v", result.Metrics.All())
		}
		if f.logger.Entries()[0].Fields["allowed"] != true {
			t.Fatalf("Expected allowed field in %v", f.logger.Entries()[0].Fields)
		}
	})

	t.Run("denied", func(t *testing.T) {
		f := newFixture()
		m := passtest.FlightManifest()
		primary := passtest.BoardingPass(m)
		primary["primaryFields"] = passtest.Fields(
			passtest.Field("boardPoint", "NEW YORK", "JFK"),
			passtest.Field("offPoint", "LOS ANGELES", "LAX"),
		)

		result, err := f.service(WithPolicy(p)).Inspect(ctx, bytes.NewReader(passtest.Pass(t, m)))
		if err != nil {
			t.Fatal(err)
		}
		if result.Allowed() {
			t.Fatal("Expected pass to be denied")
		}
		if got := testutil.ToFloat64(f.metrics.PolicyDecisions.WithLabelValues(metrics.OutcomeDenied)); got != 1 {
			t.Fatalf("Expected 1 denied decision but got %v", got)
		}
	})
}

func TestYear(t *testing.T) {
	clock := func() time.Time { return time.Date(2023, time.December, 31, 23, 0, 0, 0, time.UTC) }

	if got := New(WithClock(clock)).Year(); got != 2023 {
		t.Fatalf("Expected year from clock 2023 but got %d", got)
	}
	if got := New(WithClock(clock), WithYear(2030)).Year(); got != 2030 {
		t.Fatalf("Expected pinned year 2030 but got %d", got)
	}
}

func TestInspectOffset(t *testing.T) {
	f := newFixture()
	svc := f.service(WithOffset(2 * time.Hour))

	result, err := svc.Inspect(context.Background(), bytes.NewReader(passtest.Pass(t, passtest.FlightManifest())))
	if err != nil {
		t.Fatal(err)
	}
	bt := result.Pass.Flight.BoardingTime
	if bt == nil || !bt.Equal(time.Date(2024, time.June, 15, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("Expected boarding at 12:30Z but got %v", bt)
	}
}
