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

package service_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/basvanbeek/thesis-emitter/internal/metrics"
	"github.com/basvanbeek/thesis-emitter/internal/service"
	"github.com/basvanbeek/thesis-emitter/pkg/observability"
	"github.com/basvanbeek/thesis-emitter/pkg/observability/opentelemetry"
	"github.com/basvanbeek/thesis-emitter/pkg/thesis"
)

var fixedNow = time.Date(2022, 2, 1, 12, 0, 0, 0, time.UTC)

type envelope struct {
	Service string          `json:"service"`
	Code    int             `json:"statusCode"`
	TraceID string          `json:"traceID"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Claims  []thesis.Claim  `json:"claims"`
	Records []thesis.Record `json:"records"`
}

type fixture struct {
	srv *httptest.Server
	exp *tracetest.InMemoryExporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	obs := &observability.Service{
		ObservabilityInstrumenter: observability.OpenTelemetryInstrumenter,
		Instrumenters: []observability.InstrumenterService{
			&opentelemetry.Service{Servicename: "thesis-test", Exporter: exp},
		},
	}
	_ = obs.FlagSet()
	require.NoError(t, obs.Validate())
	require.NoError(t, obs.PreRun())
	t.Cleanup(obs.GracefulStop)

	ep := &service.Endpoints{
		Instrumenter: obs,
		Metrics:      metrics.New(),
		Logger:       zaptest.NewLogger(t),
		ServiceName:  "thesis-test",
		Now:          func() time.Time { return fixedNow },
	}
	_ = ep.FlagSet()
	require.NoError(t, ep.Validate())
	require.NoError(t, ep.PreRun())

	srv := httptest.NewServer(ep.Handler())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, exp: exp}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	res, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return res, body
}

func decode(t *testing.T, body []byte) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(body, &env), string(body))
	return env
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	res, body := f.get(t, "/health")

	require.Equal(t, http.StatusOK, res.StatusCode)
	env := decode(t, body)
	assert.Equal(t, "thesis-test", env.Service)
	assert.Equal(t, "ok", env.Message)
	assert.NotEmpty(t, env.TraceID)
}

func TestClaims(t *testing.T) {
	f := newFixture(t)
	res, body := f.get(t, "/thesis/claims")

	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, thesis.Claims(), decode(t, body).Claims)
}

func TestEmit(t *testing.T) {
	f := newFixture(t)
	res, body := f.get(t, "/thesis/emit")

	require.Equal(t, http.StatusOK, res.StatusCode)
	env := decode(t, body)
	require.Len(t, env.Records, 5)
	for _, r := range env.Records {
		assert.Equal(t, env.TraceID, r.TraceID, r.Name)
	}

	// the server span ends after the response is written
	require.Eventually(t, func() bool { return len(f.exp.GetSpans()) == 6 }, time.Second, 5*time.Millisecond)

	var claims []thesis.RecordedSpan
	for _, s := range f.exp.GetSpans() {
		if s.Name == "GET /thesis/emit" {
			continue
		}
		attrs := map[string]string{}
		for _, kv := range s.Attributes {
			attrs[string(kv.Key)] = kv.Value.Emit()
		}
		claims = append(claims, thesis.RecordedSpan{Name: s.Name, Attributes: attrs, Ended: !s.EndTime.IsZero()})
	}
	require.NoError(t, thesis.Verify(claims))

	res, body = f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), `thesis_emissions_total{trigger="http"} 1`)
}

func TestBundle(t *testing.T) {
	f := newFixture(t)

	res, body := f.get(t, "/thesis/bundle")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json", res.Header.Get("Content-Type"))
	assert.NotEmpty(t, res.Header.Get("X-Trace-Id"))
	var b thesis.Bundle
	require.NoError(t, json.Unmarshal(body, &b))
	assert.Equal(t, thesis.DefaultBundle(fixedNow).SpanClaims, b.SpanClaims)
	assert.True(t, fixedNow.Equal(b.GeneratedAt))

	res, body = f.get(t, "/thesis/bundle?format=YAML")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/yaml", res.Header.Get("Content-Type"))
	b = thesis.Bundle{}
	require.NoError(t, yaml.Unmarshal(body, &b))
	assert.Len(t, b.TRIZMapping, 12)

	res, body = f.get(t, "/thesis/bundle?format=xml")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "expected format json or yaml", decode(t, body).Error)
}

func TestSemconv(t *testing.T) {
	f := newFixture(t)
	res, body := f.get(t, "/thesis/semconv")

	require.Equal(t, http.StatusOK, res.StatusCode)
	var sc thesis.SemanticConventions
	require.NoError(t, yaml.Unmarshal(body, &sc))
	assert.Equal(t, thesis.SemanticConvention(thesis.Claims()), sc)
}

func TestCodegen(t *testing.T) {
	f := newFixture(t)

	res, body := f.get(t, "/thesis/codegen?package=spans")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/x-go; charset=utf-8", res.Header.Get("Content-Type"))
	want, err := thesis.GenerateEmitter("spans", thesis.Claims())
	require.NoError(t, err)
	assert.Equal(t, string(want), string(body))

	res, body = f.get(t, "/thesis/codegen")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(body), "package thesis\n")

	res, body = f.get(t, "/thesis/codegen?package=not-go")
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "expected a Go identifier as package name", decode(t, body).Error)
}

func TestNotFound(t *testing.T) {
	f := newFixture(t)
	res, body := f.get(t, "/proxy/elsewhere")

	require.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "no such endpoint", decode(t, body).Error)
}

func TestValidate(t *testing.T) {
	ep := &service.Endpoints{BundleFormat: "toml"}
	err := ep.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--ep-bundle-format")
}

func TestPreRunWithoutInstrumenter(t *testing.T) {
	ep := &service.Endpoints{}
	assert.Error(t, ep.PreRun())
}
