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

// Package skywalking provides the Apache SkyWalking backed
// observability.Instrumenter. Thesis spans are reported as local spans of the
// active segment.
package skywalking

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"path"

	"github.com/SkyAPM/go2sky"
	go2SkyHttp "github.com/SkyAPM/go2sky/plugins/http"
	"github.com/SkyAPM/go2sky/reporter"
	"github.com/tetratelabs/multierror"
	"github.com/tetratelabs/run"
	"github.com/tetratelabs/run/pkg/version"
	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/pkg"
	"github.com/basvanbeek/thesis-emitter/pkg/observability"
)

// flags
const (
	ReporterEndpoint         = "skywalking-reporter-endpoint"
	LocalServicename         = "skywalking-local-servicename"
	LocalServiceInstanceName = "skywalking-local-serviceinstancename"
	SampleRate               = "skywalking-sample-rate"
)

const (
	defaultReporterAddr = "oap-skywalking:11800"
	defaultSampleRate   = 1.0

	errSampleRate pkg.Error = "expected a sample rate between 0.0 and 1.0"
)

// Service implements run.GroupService. An injected Reporter is not closed on
// GracefulStop.
type Service struct {
	Servicename         string
	ServiceInstanceName string
	Address             string
	SampleRate          float64

	Reporter go2sky.Reporter
	Logger   *zap.Logger

	tracer       *go2sky.Tracer
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
	return observability.SkywalkingInstrumenter
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

	flags := run.NewFlagSet("Skywalking Tracer Config")

	flags.StringVar(
		&s.Address,
		ReporterEndpoint,
		s.Address,
		`Address (host:port) of the Skywalking OAP gRPC collector`)
	flags.StringVar(
		&s.Servicename,
		LocalServicename,
		s.Servicename,
		`Local ServiceName to report`)
	flags.StringVar(
		&s.ServiceInstanceName,
		LocalServiceInstanceName,
		s.ServiceInstanceName,
		`Local ServiceInstanceName to report`)
	flags.Float64Var(
		&s.SampleRate,
		SampleRate,
		s.SampleRate,
		`Skywalking sample rate, between never (0.0) and always (1.0), smallest increment: 0.01`)

	return flags
}

func (s *Service) setDefaults() {
	if s.Address == "" {
		s.Address = defaultReporterAddr
	}
	if s.Servicename == "" {
		s.Servicename = path.Base(os.Args[0])
	}
	if s.ServiceInstanceName == "" {
		s.ServiceInstanceName = s.Servicename
	}
	switch {
	case s.SampleRate < 0:
		s.SampleRate = 0
	case s.SampleRate == 0:
		s.SampleRate = defaultSampleRate
	}
}

// Validate implements run.Config
func (s Service) Validate() error {
	var mErr error

	if s.Reporter == nil {
		if _, _, err := net.SplitHostPort(s.Address); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, ReporterEndpoint, err))
		}
	}
	if s.Servicename == "" {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, LocalServicename, pkg.ErrRequired))
	}
	if s.ServiceInstanceName == "" {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, LocalServiceInstanceName, pkg.ErrRequired))
	}
	if s.SampleRate < 0 || s.SampleRate > 1 {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, SampleRate, errSampleRate))
	}

	return mErr
}

// PreRun implements run.PreRunner
func (s *Service) PreRun() (err error) {
	if s.Reporter == nil {
		if s.Reporter, err = reporter.NewGRPCReporter(s.Address, reporter.WithCheckInterval(0)); err != nil {
			return err
		}
		s.ownsReporter = true
	}

	s.tracer, err = go2sky.NewTracer(s.Servicename,
		go2sky.WithInstance(s.ServiceInstanceName),
		go2sky.WithReporter(s.Reporter),
		go2sky.WithCustomSampler(go2sky.NewRandomSampler(s.SampleRate)),
	)
	if err != nil {
		s.closeReporter()
		return err
	}

	s.closer = make(chan error)
	s.logger().Info("skywalking tracer ready",
		zap.String("service", s.Servicename),
		zap.String("instance", s.ServiceInstanceName),
		zap.Float64("sample_rate", s.SampleRate),
		zap.Bool("owns_reporter", s.ownsReporter))

	return nil
}

// Serve implements run.GroupService
func (s *Service) Serve() error {
	return <-s.closer
}

// GracefulStop implements run.GroupService
func (s *Service) GracefulStop() {
	close(s.closer)
	s.closeReporter()
}

func (s *Service) closeReporter() {
	if s.ownsReporter {
		s.Reporter.Close()
	}
}

// Tracer implements observability.Tracerer
func (s *Service) Tracer() observability.Tracer {
	return &tracer{delegate: s.tracer}
}

// Middleware implements observability.Middlewareer. The X-Request-Id
// correlation is taken from upstream, or from the request header, and tagged
// on the entry span.
func (s *Service) Middleware() func(http.Handler) http.Handler {
	// err is only returned for a nil tracer
	mw, err := go2SkyHttp.NewServerMiddleware(s.tracer,
		go2SkyHttp.WithServerTag(observability.VersionTag, version.Parse()))
	if err != nil {
		s.logger().Error("skywalking middleware unavailable", zap.Error(err))
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			reqID := go2sky.GetCorrelation(ctx, observability.BaggageRequestID)
			if reqID == "" {
				reqID = r.Header.Get(observability.BaggageRequestID)
			}
			if reqID != "" {
				if sp := go2sky.ActiveSpan(ctx); sp != nil {
					sp.Tag(observability.BaggageRequestID, reqID)
				}
				go2sky.PutCorrelation(ctx, observability.BaggageRequestID, reqID)
			}
			next.ServeHTTP(w, r)
		}))
	}
}

// Transport implements observability.Transporter
func (s *Service) Transport(transport http.RoundTripper) (http.RoundTripper, error) {
	var opts []go2SkyHttp.ClientOption
	if transport != nil {
		// go2SkyHttp.NewClient only accepts a transport through an http.Client
		opts = append(opts, go2SkyHttp.WithClient(&http.Client{Transport: transport}))
	}
	client, err := go2SkyHttp.NewClient(s.tracer, opts...)
	if err != nil {
		return nil, err
	}
	return client.Transport, nil
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger.Named("skywalking")
}
