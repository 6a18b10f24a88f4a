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
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/internal/metrics"
	"github.com/basvanbeek/thesis-emitter/pkg/thesis"
)

// health reports the service is up.
func (ep *Endpoints) health(w http.ResponseWriter, r *http.Request) {
	ep.writeResponse(r.Context(), w, response{
		Code:    http.StatusOK,
		Message: "ok",
	})
}

// listClaims returns the thesis claims in emission order.
func (ep *Endpoints) listClaims(w http.ResponseWriter, r *http.Request) {
	ep.writeResponse(r.Context(), w, response{
		Code:   http.StatusOK,
		Claims: thesis.Claims(),
	})
}

// emit emits the thesis spans as children of the request span. The response
// carries the request's trace identifier so the claims can be looked up in
// the tracing backend.
func (ep *Endpoints) emit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start := time.Now()
	records := thesis.Emit(ctx, ep.tracer)
	took := time.Since(start)
	ep.Metrics.Observe(metrics.TriggerHTTP, records, took)

	ep.Logger.Debug("thesis spans emitted",
		zap.String("trace_id", ep.traceID(ctx)),
		zap.Int("spans", len(records)),
		zap.Duration("took", took))

	ep.writeResponse(ctx, w, response{
		Code:    http.StatusOK,
		Message: fmt.Sprintf("emitted %d thesis spans", len(records)),
		Records: records,
	})
}

// bundle returns the complete thesis bundle as JSON or YAML, selected by the
// format query parameter.
func (ep *Endpoints) bundle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = ep.BundleFormat
	}
	if !validFormat(format) {
		ep.writeResponse(ctx, w, response{
			Code:  http.StatusBadRequest,
			Error: errFormat,
		})
		return
	}

	var (
		b           = thesis.DefaultBundle(ep.Now())
		doc         []byte
		contentType string
		err         error
	)
	switch format {
	case formatYAML:
		doc, err = b.YAML()
		contentType = "application/yaml"
	default:
		doc, err = b.JSON()
		contentType = "application/json"
	}
	if err != nil {
		ep.Logger.Error("encoding thesis bundle failed", zap.String("format", format), zap.Error(err))
		ep.writeResponse(ctx, w, response{
			Code:  http.StatusInternalServerError,
			Error: errEncode,
		})
		return
	}
	ep.writeDocument(ctx, w, contentType, doc)
}

// semconv returns the semantic convention registry describing the claims.
func (ep *Endpoints) semconv(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, err := thesis.SemanticConvention(thesis.Claims()).YAML()
	if err != nil {
		ep.Logger.Error("encoding semantic conventions failed", zap.Error(err))
		ep.writeResponse(ctx, w, response{
			Code:  http.StatusInternalServerError,
			Error: errEncode,
		})
		return
	}
	ep.writeDocument(ctx, w, "application/yaml", doc)
}

// codegen returns Go source emitting the thesis spans through an
// OpenTelemetry tracer, in the package named by the package query parameter.
func (ep *Endpoints) codegen(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pkgName := r.URL.Query().Get("package")
	if pkgName == "" {
		pkgName = defaultCodegenPackage
	}
	src, err := thesis.GenerateEmitter(pkgName, thesis.Claims())
	if err != nil {
		ep.writeResponse(ctx, w, response{
			Code:  http.StatusBadRequest,
			Error: errPackage,
		})
		return
	}
	ep.writeDocument(ctx, w, "text/x-go; charset=utf-8", src)
}

func (ep *Endpoints) notFound(w http.ResponseWriter, r *http.Request) {
	ep.writeResponse(r.Context(), w, response{
		Code:  http.StatusNotFound,
		Error: errNotFound,
	})
}
