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

package thesis

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/multierror"
	"gopkg.in/yaml.v3"

	"github.com/basvanbeek/thesis-emitter/pkg"
)

const (
	ErrEmptyName      pkg.Error = "claim name is empty"
	ErrEmptyBrief     pkg.Error = "claim brief is empty"
	ErrDuplicateClaim pkg.Error = "claim name is not unique"
	ErrPrinciple      pkg.Error = "TRIZ principle must be between 1 and 40"
	ErrUnknownPhase   pkg.Error = "unknown feedback loop phase"
)

// InversionPair contrasts a traditional belief with its inverted form.
type InversionPair struct {
	Traditional string `json:"traditional" yaml:"traditional"`
	Inverted    string `json:"inverted" yaml:"inverted"`
}

// TRIZMap maps a TRIZ inventive principle onto the telemetry driven design.
type TRIZMap struct {
	Principle int    `json:"principle" yaml:"principle"`
	Name      string `json:"name" yaml:"name"`
	Mapping   string `json:"mapping" yaml:"mapping"`
}

// Phase is a step of the feedback loop.
type Phase string

// Feedback loop phases, in loop order.
const (
	PhasePerception  Phase = "telemetry_as_perception"
	PhaseResolution  Phase = "llm_resolves_contradiction"
	PhaseGeneration  Phase = "weaverforge_generates"
	PhaseRealisation Phase = "wave_coordination_executes"
	PhaseValidation  Phase = "telemetry_validates"
)

// Phases returns all feedback loop phases in loop order.
func Phases() []Phase {
	return []Phase{PhasePerception, PhaseResolution, PhaseGeneration, PhaseRealisation, PhaseValidation}
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range Phases() {
		if p == known {
			return true
		}
	}
	return false
}

// FeedbackLoopStep describes what happens during a single phase.
type FeedbackLoopStep struct {
	Phase       Phase  `json:"phase" yaml:"phase"`
	Description string `json:"description" yaml:"description"`
}

// Bundle is the complete, machine readable thesis: its span claims plus the
// narrative tables that accompany them.
type Bundle struct {
	GeneratedAt     time.Time          `json:"generatedAt" yaml:"generated_at"`
	SpanClaims      []Claim            `json:"spanClaims" yaml:"span_claims"`
	InversionMatrix []InversionPair    `json:"inversionMatrix" yaml:"inversion_matrix"`
	TRIZMapping     []TRIZMap          `json:"trizMapping" yaml:"triz_mapping"`
	FeedbackLoop    []FeedbackLoopStep `json:"feedbackLoop" yaml:"feedback_loop"`
}

// DefaultBundle returns the thesis bundle stamped with the provided time.
func DefaultBundle(now time.Time) *Bundle {
	return &Bundle{
		GeneratedAt: now.UTC(),
		SpanClaims:  Claims(),
		InversionMatrix: []InversionPair{
			{"Telemetry is optional debugging aid", "Telemetry is the system"},
			{"Code drives behaviour", "Spans drive code"},
			{"Prompts are handcrafted", "Prompts emerge from spans"},
			{"Agents talk via explicit messages", "Agents talk via structured trace"},
			{"Governance added manually", "Governance encoded in spans"},
			{"Self-knowledge is external", "Trace graph is self-model"},
		},
		TRIZMapping: []TRIZMap{
			{1, "Segmentation", "Semantic conventions isolate atomic functions"},
			{2, "Taking Out", "DLSS 80/20 extracts high-value features"},
			{3, "Local Quality", "Role-specific agents & context-local spans"},
			{5, "Merging", "OTEL + shell + Rust unified via code-gen"},
			{10, "Preliminary Action", "Pre-emit spans before error points"},
			{13, "The Other Way Around", "Start from telemetry → generate code"},
			{15, "Dynamics", "Telemetry mutates execution plans (waves)"},
			{24, "Intermediary", "Traces broker CLI ⇄ LLM ⇄ shell"},
			{25, "Self-Service", "Agents trigger self-healing via span patterns"},
			{28, "Mechanics Substitution", "Replace imperative logic with trace-based decisions"},
			{35, "Parameter Change", "DLSS tunes conventions per load/context"},
			{40, "Composite Materials", "Multi-layer CLI from WeaverForge (Rust+Shell+LLM)"},
		},
		FeedbackLoop: []FeedbackLoopStep{
			{PhasePerception, "Telemetry captures contradictions (conflicts, retries, slow spans)"},
			{PhaseResolution, "LLM analyses span data and proposes semantic-spec patches"},
			{PhaseGeneration, "WeaverForge regenerates CLI & templates from updated specs"},
			{PhaseRealisation, "Wave coordination deploys changes across agents"},
			{PhaseValidation, "New spans confirm whether contradiction resolved; loop repeats"},
		},
	}
}

// Validate checks the bundle tables for consistency.
func (b *Bundle) Validate() error {
	var mErr error

	seen := make(map[string]bool, len(b.SpanClaims))
	for i, c := range b.SpanClaims {
		if c.Name == "" {
			mErr = multierror.Append(mErr, fmt.Errorf("span claim %d: %w", i, ErrEmptyName))
		} else if seen[c.Name] {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", c.Name, ErrDuplicateClaim))
		}
		seen[c.Name] = true
		if c.Brief == "" {
			mErr = multierror.Append(mErr, fmt.Errorf("span claim %d: %w", i, ErrEmptyBrief))
		}
	}
	for _, t := range b.TRIZMapping {
		if t.Principle < 1 || t.Principle > 40 {
			mErr = multierror.Append(mErr, fmt.Errorf("%s (%d): %w", t.Name, t.Principle, ErrPrinciple))
		}
	}
	for _, step := range b.FeedbackLoop {
		if !step.Phase.Valid() {
			mErr = multierror.Append(mErr, fmt.Errorf("%q: %w", step.Phase, ErrUnknownPhase))
		}
	}

	return mErr
}

// JSON returns the indented JSON encoding of the bundle.
func (b *Bundle) JSON() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

// YAML returns the YAML encoding of the bundle.
func (b *Bundle) YAML() ([]byte, error) {
	return yaml.Marshal(b)
}
