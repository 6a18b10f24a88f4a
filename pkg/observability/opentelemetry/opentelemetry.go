// Copyright (c) Bas van Beek 2022.
// Copyright (c) Tetrate, Inc 2021.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package opentelemetry provides the OpenTelemetry SDK backed
// observability.Instrumenter. Spans are exported over OTLP/HTTP unless an
// exporter is injected.
package opentelemetry

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/tetratelabs/multierror"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/run/pkg/version"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/pkg"
	"github.com/basvanbeek/thesis-emitter/pkg/observability"
)

// flags
const (
	ExporterEndpoint = "otel-exporter-endpoint"
	LocalServicename = "otel-local-servicename"
	SampleRate       = "otel-sample-rate"
)

const (
	// default configuration values
	defaultExporterAddr = "http://otel-collector:4318/v1/traces"
	defaultSampleRate   = 1.0

	instrumentationName = "github.com/basvanbeek/thesis-emitter"
	shutdownTimeout     = 5 * time.Second

	errSampleRate pkg.Error = "expected a sample rate between 0.0 and 1.0"
	errScheme     pkg.Error = "expected an http or https URL"
)

// Service implements run.GroupService
type Service struct {
	Servicename string
	Address     string
	SampleRate  float64
	Exporter    sdktrace.SpanExporter
	Logger      *zap.Logger

	provider     *sdktrace.TracerProvider
	propagator   propagation.TextMapPropagator
	ownsExporter bool
	closer       chan error
}

// static compile time run interfaces validation
var (
	_ run.Config                        = (*Service)(nil)
	_ run.PreRunner                     = (*Service)(nil)
	_ run.Service                       = (*Service)(nil)
	_ observability.InstrumenterService = (*Service)(nil)
)

// Name implements run.Unit.
func (s *Service) Name() string {
	return observability.OpenTelemetryInstrumenter
}

// GroupName implements run.Namer so the resource service name defaults to the
// name of the run.Group if not set before calling Group's Run or RunConfig.
func (s *Service) GroupName(name string) {
	if s.Servicename == "" {
		s.Servicename = name
	}
}

// FlagSet implements run.Config
func (s *Service) FlagSet() *run.FlagSet {
	// set defaults if needed
	if s.Address == "" {
		s.Address = defaultExporterAddr
	}
	if s.Servicename == "" {
		s.Servicename = path.Base(os.Args[0])
	}
	if s.SampleRate < 0 {
		s.SampleRate = 0.0
	} else if s.SampleRate == 0.0 {
		s.SampleRate = defaultSampleRate
	}

	flags := run.NewFlagSet("OpenTelemetry Tracer Config")

	flags.StringVar(
		&s.Address,
		ExporterEndpoint,
		s.Address,
		`Full URL, including path, of the OTLP/HTTP traces endpoint`)
	flags.StringVar(
		&s.Servicename,
		LocalServicename,
		s.Servicename,
		`Local service.name resource attribute to report`)
	flags.Float64Var(
		&s.SampleRate,
		SampleRate,
		s.SampleRate,
		`Set the trace id ratio sample rate, between never (0.0) and always (1.0)`)

	return flags
}

// Validate implements run.Config
func (s *Service) Validate() error {
	var mErr error

	if s.Exporter == nil {
		u, err := url.Parse(s.Address)
		switch {
		case err != nil:
			mErr = multierror.Append(mErr,
				fmt.Errorf(pkg.FlagErr, ExporterEndpoint, err))
		case u.Scheme != "http" && u.Scheme != "https":
			mErr = multierror.Append(mErr,
				fmt.Errorf(pkg.FlagErr, ExporterEndpoint, errScheme))
		}
	}
	if s.Servicename == "" {
		mErr = multierror.Append(mErr,
			fmt.Errorf(pkg.FlagErr, LocalServicename, pkg.ErrRequired))
	}
	if s.SampleRate < 0 || s.SampleRate > 1 {
		mErr = multierror.Append(mErr,
			fmt.Errorf(pkg.FlagErr, SampleRate, errSampleRate))
	}

	return mErr
}

// PreRun implements run.PreRunner
func (s *Service) PreRun() error {
	exp := s.Exporter
	var processor sdktrace.TracerProviderOption
	if exp == nil {
		// we create our own exporter
		var err error
		exp, err = otlptracehttp.New(context.Background(),
			otlptracehttp.WithEndpointURL(s.Address))
		if err != nil {
			return err
		}
		s.ownsExporter = true
		processor = sdktrace.WithBatcher(exp)
	} else {
		processor = sdktrace.WithSyncer(exp)
	}

	s.provider = sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", s.Servicename),
			attribute.String("service.version", version.Parse()),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRate))),
	)
	s.propagator = propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	)

	s.Exporter = exp
	s.closer = make(chan error)
	if s.Logger != nil {
		s.Logger.Info("opentelemetry tracer ready",
			zap.String("service", s.Servicename),
			zap.Float64("sample_rate", s.SampleRate),
			zap.Bool("owns_exporter", s.ownsExporter))
	}

	return nil
}

// Serve implements run.GroupService
func (s *Service) Serve() error {
	return <-s.closer
}

// GracefulStop implements run.GroupService
func (s *Service) GracefulStop() {
	close(s.closer)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if s.ownsExporter {
		// we handle the lifecycle of the exporter internally
		err = s.provider.Shutdown(ctx)
	} else {
		err = s.provider.ForceFlush(ctx)
	}
	if err != nil && s.Logger != nil {
		s.Logger.Warn("flushing spans on shutdown failed", zap.Error(err))
	}
}

type traceAdapter struct {
	delegate trace.Tracer
}

type spanAdapter struct {
	delegate trace.Span
	ctx      context.Context
}

// Context implements observability.Span
func (s *spanAdapter) Context() context.Context {
	return s.ctx
}

// TraceID implements observability.Span
func (s *spanAdapter) TraceID() string {
	sc := s.delegate.SpanContext()
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SetName implements observability.Span
func (s *spanAdapter) SetName(name string) {
	s.delegate.SetName(name)
}

// Tag implements observability.Span
func (s *spanAdapter) Tag(key string, value string) {
	s.delegate.SetAttributes(attribute.String(key, value))
}

// Finish implements observability.Span
func (s *spanAdapter) Finish() {
	s.delegate.End()
}

// StartSpanFromContext implements observability.Tracer
func (t *traceAdapter) StartSpanFromContext(ctx context.Context, name string) observability.Span {
	ctx, span := t.delegate.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
	return &spanAdapter{span, ctx}
}

// SpanFromContext implements observability.Contexter
func (s *Service) SpanFromContext(ctx context.Context) observability.Span {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return observability.NoopSpan(ctx)
	}
	return &spanAdapter{span, ctx}
}

// Tracer implements observability.Tracerer
func (s *Service) Tracer() observability.Tracer {
	return &traceAdapter{delegate: s.provider.Tracer(instrumentationName)}
}

// Middleware implements observability.Middlewareer
func (s *Service) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		baggageHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			bag := baggage.FromContext(ctx)
			reqID := bag.Member(observability.BaggageRequestID).Value()
			if reqID == "" {
				reqID = r.Header.Get(observability.BaggageRequestID)
			}
			if reqID != "" {
				trace.SpanFromContext(ctx).SetAttributes(
					attribute.String(observability.BaggageRequestID, reqID))
				if m, err := baggage.NewMemberRaw(observability.BaggageRequestID, reqID); err == nil {
					if bag, err = bag.SetMember(m); err == nil {
						r = r.WithContext(baggage.ContextWithBaggage(ctx, bag))
					}
				}
			}
			if next != nil {
				next.ServeHTTP(w, r)
			}
		})
		return otelhttp.NewHandler(baggageHandler, s.Servicename,
			otelhttp.WithTracerProvider(s.provider),
			otelhttp.WithPropagators(s.propagator),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
}

// Transport implements observability.Transporter
func (s *Service) Transport(transport http.RoundTripper) (http.RoundTripper, error) {
	return otelhttp.NewTransport(transport,
		otelhttp.WithTracerProvider(s.provider),
		otelhttp.WithPropagators(s.propagator),
	), nil
}
