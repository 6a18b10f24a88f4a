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

// Package thesis holds the fixed catalog of thesis claims and emits each of
// them as a finished span carrying its brief.
package thesis

import (
	"context"

	"github.com/basvanbeek/thesis-emitter/pkg/observability"
)

// BriefKey is the only tag set on a thesis span.
const BriefKey = "brief"

// Claim is a single thesis point.
type Claim struct {
	Name  string `json:"name" yaml:"name"`
	Brief string `json:"brief" yaml:"brief"`
}

// Record describes a span produced by Emit.
type Record struct {
	Name    string `json:"name"`
	Brief   string `json:"brief"`
	TraceID string `json:"traceID,omitempty"`
}

var catalog = [...]Claim{
	{Name: "thesis.telemetry_as_system", Brief: "Telemetry is the system, not an add-on."},
	{Name: "thesis.span_drives_code", Brief: "Spans generate code & CLI."},
	{Name: "thesis.trace_to_prompt_emergence", Brief: "Traces → LLM prompts (emergent)."},
	{Name: "thesis.telemetry_communication_channel", Brief: "Spans are the agent messaging bus."},
	{Name: "thesis.system_models_itself", Brief: "Trace graph is a live self-model."},
}

// Claims returns a copy of the catalog in emission order.
func Claims() []Claim {
	claims := make([]Claim, len(catalog))
	copy(claims, catalog[:])
	return claims
}

// Emit opens, tags and finishes one span per claim, in catalog order. Spans
// become children of the span found in ctx, if any.
func Emit(ctx context.Context, tracer observability.Tracer) []Record {
	records := make([]Record, 0, len(catalog))
	for _, c := range catalog {
		span := tracer.StartSpanFromContext(ctx, c.Name)
		span.Tag(BriefKey, c.Brief)
		records = append(records, Record{
			Name:    c.Name,
			Brief:   c.Brief,
			TraceID: span.TraceID(),
		})
		span.Finish()
	}
	return records
}
