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

// Package metrics keeps Prometheus counters about thesis emissions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/basvanbeek/thesis-emitter/pkg/thesis"
)

const namespace = "thesis"

// Emission triggers.
const (
	TriggerHTTP     = "http"
	TriggerInterval = "interval"
)

// Metrics holds the emission collectors and the registry they are exposed
// from. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry  *prometheus.Registry
	claims    *prometheus.CounterVec
	emissions *prometheus.CounterVec
	duration  prometheus.Histogram
}

// New creates the collectors on a dedicated registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "claims_emitted_total",
			Help:      "Number of thesis claim spans emitted, by claim.",
		}, []string{"claim"}),
		emissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "emissions_total",
			Help:      "Number of complete thesis emissions, by trigger.",
		}, []string{"trigger"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "emission_duration_seconds",
			Help:      "Time taken to open and finish all thesis spans.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
	m.registry.MustRegister(
		m.claims,
		m.emissions,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	// expose every claim from the start, even before the first emission
	for _, c := range thesis.Claims() {
		m.claims.WithLabelValues(c.Name)
	}
	return m
}

// Observe records a completed emission.
func (m *Metrics) Observe(trigger string, records []thesis.Record, took time.Duration) {
	if m == nil {
		return
	}
	for _, r := range records {
		m.claims.WithLabelValues(r.Name).Inc()
	}
	m.emissions.WithLabelValues(trigger).Inc()
	m.duration.Observe(took.Seconds())
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
