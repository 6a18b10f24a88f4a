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

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tetratelabs/run"
	"github.com/tetratelabs/run/pkg/signal"
	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/internal/emitter"
	"github.com/basvanbeek/thesis-emitter/internal/metrics"
	"github.com/basvanbeek/thesis-emitter/internal/service"
	pkghttp "github.com/basvanbeek/thesis-emitter/pkg/http"
	pkglog "github.com/basvanbeek/thesis-emitter/pkg/log"
	pkgobs "github.com/basvanbeek/thesis-emitter/pkg/observability"
	pkgotel "github.com/basvanbeek/thesis-emitter/pkg/observability/opentelemetry"
	pkgskywalking "github.com/basvanbeek/thesis-emitter/pkg/observability/skywalking"
	pkgzipkin "github.com/basvanbeek/thesis-emitter/pkg/observability/zipkin"
)

const (
	defaultServiceName       = "thesis"
	defaultHTTPListenAddress = ":8000"

	defaultZipkinAddress        = "http://zipkin:9411/api/v2/spans"
	defaultSkywalkingOAPAddress = "oap-skywalking:11800"
	defaultOTLPAddress          = "http://otel-collector:4318/v1/traces"
	defaultSampleRate           = 1.0
	defaultSingleHostSpans      = true
)

func main() {
	// we take the serviceName from an environment variable as we need
	// this information to be available prior to run.Group bootstrap.
	serviceName := os.Getenv("SVCNAME")
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	serviceInstanceName := os.Getenv("HOSTNAME")
	if serviceInstanceName == "" {
		serviceInstanceName = serviceName
	}

	g := run.Group{
		Name:     serviceName,
		HelpText: "HTTP service emitting the telemetry thesis as trace spans",
	}

	svcLog := &pkglog.Service{
		Fields: []zap.Field{
			zap.String("service", serviceName),
			zap.String("instance", serviceInstanceName),
		},
	}

	// init with sensible defaults
	svcZipkin := &pkgzipkin.Service{
		Servicename:     serviceName,
		Address:         defaultZipkinAddress,
		SampleRate:      defaultSampleRate,
		SingleHostSpans: defaultSingleHostSpans,
	}
	svcSkywalking := &pkgskywalking.Service{
		Servicename:         serviceName,
		ServiceInstanceName: serviceInstanceName,
		Address:             defaultSkywalkingOAPAddress,
		SampleRate:          defaultSampleRate,
	}
	svcOtel := &pkgotel.Service{
		Servicename: serviceName,
		Address:     defaultOTLPAddress,
		SampleRate:  defaultSampleRate,
	}
	svcObs := &pkgobs.Service{
		ObservabilityInstrumenter: pkgobs.OpenTelemetryInstrumenter,
		Instrumenters: []pkgobs.InstrumenterService{
			svcZipkin,
			svcSkywalking,
			svcOtel,
		},
	}

	svcMetrics := metrics.New()
	svcEndpoints := &service.Endpoints{
		ServiceName:  serviceName,
		Instrumenter: svcObs,
		Metrics:      svcMetrics,
	}
	svcEmitter := &emitter.Emitter{
		Instrumenter: svcObs,
		Metrics:      svcMetrics,
	}
	svcHTTP := &pkghttp.Service{
		ListenAddress: defaultHTTPListenAddress,
	}

	g.Register(
		new(signal.Handler),
		svcLog,
		run.NewPreRunner("loggers", func() error {
			logger := svcLog.Logger()
			svcZipkin.Logger = logger
			svcSkywalking.Logger = logger
			svcOtel.Logger = logger
			svcEndpoints.Logger = logger.Named("endpoints")
			svcEmitter.Logger = logger.Named("emitter")
			svcHTTP.Logger = logger.Named("http")
			return nil
		}),
		svcObs,
		svcEndpoints,
		svcEmitter,
		svcHTTP,
		run.NewPreRunner(serviceName, func() error {
			svcHTTP.Handler = svcEndpoints.Handler()
			return nil
		}),
	)

	err := g.Run()
	svcLog.Sync()
	if err != nil {
		fmt.Printf("%s exit: %v\n", g.Name, err)
		if !errors.Is(err, run.ErrRequestedShutdown) {
			// We had an actual fatal error.
			os.Exit(-1)
		}
	}
}
