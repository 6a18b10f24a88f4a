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

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basvanbeek/thesis-emitter/pkg/thesis"
)

func records() []thesis.Record {
	var out []thesis.Record
	for _, c := range thesis.Claims() {
		out = append(out, thesis.Record{Name: c.Name, Brief: c.Brief})
	}
	return out
}

func TestObserve(t *testing.T) {
	m := New()

	m.Observe(TriggerHTTP, records(), time.Millisecond)
	m.Observe(TriggerHTTP, records(), time.Millisecond)
	m.Observe(TriggerInterval, records(), time.Millisecond)

	for _, c := range thesis.Claims() {
		assert.Equal(t, 3.0, testutil.ToFloat64(m.claims.WithLabelValues(c.Name)), c.Name)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.emissions.WithLabelValues(TriggerHTTP)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.emissions.WithLabelValues(TriggerInterval)))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe(TriggerHTTP, records(), time.Millisecond) })
}

func TestHandler(t *testing.T) {
	m := New()
	m.Observe(TriggerHTTP, records(), time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `thesis_claims_emitted_total{claim="thesis.system_models_itself"} 1`)
	assert.Contains(t, string(body), `thesis_emissions_total{trigger="http"} 1`)
	assert.Contains(t, string(body), "thesis_emission_duration_seconds_count 1")
	assert.Contains(t, string(body), "go_goroutines")
}
