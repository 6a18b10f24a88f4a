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

// Package zipkin reports thesis spans to a Zipkin collector. Service is a
// run.Group unit implementing observability.Instrumenter.
package zipkin

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/openzipkin/zipkin-go"
	zmw "github.com/openzipkin/zipkin-go/middleware/http"
	"github.com/openzipkin/zipkin-go/propagation/baggage"
	"github.com/openzipkin/zipkin-go/reporter"
	zrpr "github.com/openzipkin/zipkin-go/reporter/http"
	"github.com/tetratelabs/multierror"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/run/pkg/version"
	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/pkg"
	"github.com/basvanbeek/thesis-emitter/pkg/observability"
)

// flags
const (
	ReporterEndpoint = "zipkin-reporter-endpoint"
	LocalServicename = "zipkin-local-servicename"
	LocalHostport    = "zipkin-local-hostport"
	SinglehostSpans  = "zipkin-singlehost-spans"
	SampleRate       = "zipkin-sample-rate"
	BatchInterval    = "zipkin-batch-interval"
)

const (
	defaultReporterAddr  = "http://zipkin:9411/api/v2/spans"
	defaultSampleRate    = 1.0
	defaultBatchInterval = time.Second

	errBatchInterval pkg.Error = "expected a positive duration"
)

// Service implements run.GroupService. A Reporter may be injected, in which
// case its lifecycle is owned by the caller and the reporter flags are
// ignored.
type Service struct {
	Servicename     string
	LocalHostport   string
	Address         string
	SampleRate      float64
	BatchInterval   time.Duration
	SingleHostSpans bool

	Reporter reporter.Reporter
	Logger   *zap.Logger

	tracer       *zipkin.Tracer
	ownsReporter bool
	closer       chan error
}

var (
	_ run.Config                 = (*Service)(nil)
	_ run.PreRunner              = (*Service)(nil)
	_ run.Service                = (*Service)(nil)
	_ observability.Instrumenter = (*Service)(nil)
)

// Name implements run.Unit.
func (s Service) Name() string {
	return observability.ZipkinInstrumenter
}

// GroupName implements run.Namer, the local service name falls back to the
// run.Group name.
func (s *Service) GroupName(name string) {
	if s.Servicename == "" {
		s.Servicename = name
	}
}

// FlagSet implements run.Config
func (s *Service) FlagSet() *run.FlagSet {
	s.setDefaults()

	flags := run.NewFlagSet("Zipkin Tracer Config")

	flags.StringVar(
		&s.Address,
		ReporterEndpoint,
		s.Address,
		`Full address, including URI, of the Zipkin HTTP collector`)
	flags.StringVar(
		&s.Servicename,
		LocalServicename,
		s.Servicename,
		`Local ServiceName to report`)
	flags.StringVar(
		&s.LocalHostport,
		LocalHostport,
		s.LocalHostport,
		`Local ip:port to report`)
	flags.BoolVar(
		&s.SingleHostSpans,
		SinglehostSpans,
		s.SingleHostSpans,
		`Do not use Zipkin RPC shared spans`)
	flags.Float64Var(
		&s.SampleRate,
		SampleRate,
		s.SampleRate,
		`Zipkin sample rate, between never (0.0) and always (1.0), smallest increment: 0.0001`)
	flags.DurationVar(
		&s.BatchInterval,
		BatchInterval,
		s.BatchInterval,
		`Maximum time spans are buffered before being sent to the collector`)

	return flags
}

func (s *Service) setDefaults() {
	if s.Address == "" {
		s.Address = defaultReporterAddr
	}
	if s.Servicename == "" {
		s.Servicename = path.Base(os.Args[0])
	}
	switch {
	case s.SampleRate < 0:
		s.SampleRate = 0
	case s.SampleRate == 0:
		s.SampleRate = defaultSampleRate
	}
	if s.BatchInterval == 0 {
		s.BatchInterval = defaultBatchInterval
	}
}

// Validate implements run.Config
func (s Service) Validate() error {
	var mErr error

	if s.Servicename == "" {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, LocalServicename, pkg.ErrRequired))
	}
	if s.LocalHostport != "" {
		if _, _, err := net.SplitHostPort(s.LocalHostport); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, LocalHostport, err))
		}
	}
	if _, err := zipkin.NewBoundarySampler(s.SampleRate, 0); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, SampleRate, err))
	}
	if s.Reporter != nil {
		return mErr
	}

	// settings of the reporter we create ourselves
	if _, err := url.Parse(s.Address); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, ReporterEndpoint, err))
	}
	if s.BatchInterval <= 0 {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, BatchInterval, errBatchInterval))
	}

	return mErr
}

// PreRun implements run.PreRunner
func (s *Service) PreRun() error {
	ep, err := zipkin.NewEndpoint(s.Servicename, s.LocalHostport)
	if err != nil {
		return err
	}
	sampler, err := zipkin.NewBoundarySampler(s.SampleRate, time.Now().UnixNano())
	if err != nil {
		return err
	}

	if s.Reporter == nil {
		s.Reporter = zrpr.NewReporter(s.Address,
			zrpr.BatchInterval(s.BatchInterval),
			zrpr.Logger(zap.NewStdLog(s.logger())),
		)
		s.ownsReporter = true
	}

	// 128 bit trace identifiers keep trace IDs interchangeable with the
	// other backends.
	s.tracer, err = zipkin.NewTracer(s.Reporter,
		zipkin.WithLocalEndpoint(ep),
		zipkin.WithSharedSpans(!s.SingleHostSpans),
		zipkin.WithSampler(sampler),
		zipkin.WithTraceID128Bit(true),
		zipkin.WithTags(map[string]string{observability.VersionTag: version.Parse()}),
	)
	if err != nil {
		s.closeReporter()
		return err
	}

	s.closer = make(chan error)
	s.logger().Info("zipkin tracer ready",
		zap.String("service", s.Servicename),
		zap.Float64("sample_rate", s.SampleRate),
		zap.Bool("owns_reporter", s.ownsReporter))

	return nil
}

// Serve implements run.GroupService
func (s *Service) Serve() error {
	return <-s.closer
}

// GracefulStop implements run.GroupService. Buffered spans are flushed when
// the reporter is owned by the Service.
func (s *Service) GracefulStop() {
	close(s.closer)
	s.closeReporter()
}

func (s *Service) closeReporter() {
	if !s.ownsReporter {
		return
	}
	if err := s.Reporter.Close(); err != nil {
		s.logger().Warn("closing zipkin reporter failed", zap.Error(err))
	}
}

// Tracer implements observability.Tracerer
func (s *Service) Tracer() observability.Tracer {
	return &tracer{delegate: s.tracer}
}

// Middleware implements observability.Middlewareer. Server spans carry the
// response size and propagate the X-Request-Id baggage field.
func (s *Service) Middleware() func(http.Handler) http.Handler {
	return zmw.NewServerMiddleware(s.tracer,
		zmw.TagResponseSize(true),
		zmw.EnableBaggage(baggage.New(observability.BaggageRequestID)),
	)
}

// Transport implements observability.Transporter
func (s *Service) Transport(transport http.RoundTripper) (http.RoundTripper, error) {
	return zmw.NewTransport(s.tracer,
		zmw.RoundTripper(transport),
		zmw.TransportLogger(zap.NewStdLog(s.logger())),
	)
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger.Named("zipkin")
}
