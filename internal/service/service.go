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

package service

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/tetratelabs/multierror"
	"github.com/tetratelabs/run"
	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/internal/metrics"
	"github.com/basvanbeek/thesis-emitter/pkg"
	"github.com/basvanbeek/thesis-emitter/pkg/observability"
)

const (
	flagBundleFormat = "ep-bundle-format"

	defaultCodegenPackage = "thesis"

	formatJSON = "json"
	formatYAML = "yaml"

	errFormat   pkg.Error = "expected format json or yaml"
	errEncode   pkg.Error = "unable to encode document"
	errNotFound pkg.Error = "no such endpoint"
	errPackage  pkg.Error = "expected a Go identifier as package name"
)

// Endpoints implements a run.Config compatible group of Endpoints which will
// register themselves on the provided http service, using the provided
// Instrumenter to instrument themselves and to emit thesis spans.
type Endpoints struct {
	// dependencies
	Instrumenter observability.Instrumenter
	Metrics      *metrics.Metrics
	Logger       *zap.Logger

	ServiceName string
	// BundleFormat is used when a bundle request carries no format.
	BundleFormat string
	// Now stamps generated bundles, defaults to time.Now.
	Now func() time.Time

	handler http.Handler
	tracer  observability.Tracer
}

// Name implements run.Unit.
func (ep *Endpoints) Name() string {
	return "endpoints"
}

// FlagSet implements run.Config.
func (ep *Endpoints) FlagSet() *run.FlagSet {
	if ep.BundleFormat == "" {
		ep.BundleFormat = formatJSON
	}
	flags := run.NewFlagSet("Endpoint options")

	flags.StringVar(&ep.BundleFormat, flagBundleFormat, ep.BundleFormat,
		`Default encoding of /thesis/bundle, one of json, yaml`)

	return flags
}

// Validate implements run.Config.
func (ep *Endpoints) Validate() error {
	var mErr error

	if !validFormat(ep.BundleFormat) {
		mErr = multierror.Append(mErr,
			fmt.Errorf(pkg.FlagErr, flagBundleFormat, errFormat),
		)
	}

	return mErr
}

// PreRun implements run.PreRunner.
func (ep *Endpoints) PreRun() error {
	if ep.Instrumenter == nil || ep.Instrumenter.Tracer() == nil {
		return errors.New("missing tracer to attach to")
	}
	if ep.BundleFormat == "" {
		ep.BundleFormat = formatJSON
	}
	if ep.Now == nil {
		ep.Now = time.Now
	}
	if ep.Logger == nil {
		ep.Logger = zap.NewNop()
	}

	// create our service router
	router := mux.NewRouter()
	router.Methods("GET").Path("/health").HandlerFunc(ep.health)
	router.Methods("GET").Path("/thesis/claims").HandlerFunc(ep.listClaims)
	router.Methods("GET").Path("/thesis/emit").HandlerFunc(ep.emit)
	router.Methods("GET").Path("/thesis/bundle").HandlerFunc(ep.bundle)
	router.Methods("GET").Path("/thesis/semconv").HandlerFunc(ep.semconv)
	router.Methods("GET").Path("/thesis/codegen").HandlerFunc(ep.codegen)
	if ep.Metrics != nil {
		router.Methods("GET").Path("/metrics").Handler(ep.Metrics.Handler())
	}
	router.NotFoundHandler = http.HandlerFunc(ep.notFound)
	ep.tracer = ep.Instrumenter.Tracer()

	ep.handler = ep.Instrumenter.Middleware()(router)

	return nil
}

// Handler returns an HTTP handler that can be attached to an HTTP service.
// The handler holds a router to the endpoints with the sub handlers.
func (ep *Endpoints) Handler() http.Handler {
	return ep.handler
}

func validFormat(format string) bool {
	return format == formatJSON || format == formatYAML
}

var (
	_ run.Config    = (*Endpoints)(nil)
	_ run.PreRunner = (*Endpoints)(nil)
)
