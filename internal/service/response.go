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
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/pkg"
	"github.com/basvanbeek/thesis-emitter/pkg/thesis"
)

const traceIDHeader = "X-Trace-Id"

type response struct {
	Service string          `json:"service"`
	Code    int             `json:"statusCode"`
	TraceID string          `json:"traceID"`
	Message string          `json:"message,omitempty"`
	Error   pkg.Error       `json:"error,omitempty"`
	Claims  []thesis.Claim  `json:"claims,omitempty"`
	Records []thesis.Record `json:"records,omitempty"`
}

func (ep *Endpoints) writeResponse(ctx context.Context, w http.ResponseWriter, res response) {
	res.Service = ep.ServiceName
	res.TraceID = ep.traceID(ctx)
	w.Header().Add("Content-Type", "application/json")
	if res.Code > 0 {
		w.WriteHeader(res.Code)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		ep.Logger.Warn("error while writing http response",
			zap.String("trace_id", res.TraceID), zap.Error(err))
	}
}

// writeDocument writes a raw encoded document, the trace identifier travels
// in a header as the body has no envelope.
func (ep *Endpoints) writeDocument(ctx context.Context, w http.ResponseWriter, contentType string, doc []byte) {
	w.Header().Set("Content-Type", contentType)
	if traceID := ep.traceID(ctx); traceID != "" {
		w.Header().Set(traceIDHeader, traceID)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc); err != nil {
		ep.Logger.Warn("error while writing http document", zap.Error(err))
	}
}

func (ep *Endpoints) traceID(ctx context.Context) string {
	return ep.Instrumenter.SpanFromContext(ctx).TraceID()
}
