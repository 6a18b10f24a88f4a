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

package thesis_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/basvanbeek/thesis-emitter/pkg"
	"github.com/basvanbeek/thesis-emitter/pkg/thesis"
)

var fixedNow = time.Date(2022, 2, 1, 12, 0, 0, 0, time.UTC)

func TestDefaultBundle(t *testing.T) {
	b := thesis.DefaultBundle(fixedNow)

	require.NoError(t, b.Validate())
	assert.Equal(t, fixedNow, b.GeneratedAt)
	assert.Equal(t, thesis.Claims(), b.SpanClaims)
	assert.Len(t, b.InversionMatrix, 6)
	assert.Len(t, b.TRIZMapping, 12)

	var phases []thesis.Phase
	for _, step := range b.FeedbackLoop {
		phases = append(phases, step.Phase)
	}
	assert.Equal(t, thesis.Phases(), phases, "feedback loop runs through every phase in order")
}

func TestDefaultBundleText(t *testing.T) {
	b := thesis.DefaultBundle(fixedNow)

	assert.Equal(t, thesis.TRIZMap{Principle: 13, Name: "The Other Way Around", Mapping: "Start from telemetry → generate code"}, b.TRIZMapping[5])
	assert.Equal(t, "Traces broker CLI ⇄ LLM ⇄ shell", b.TRIZMapping[7].Mapping)
	assert.Equal(t, "Multi-layer CLI from WeaverForge (Rust+Shell+LLM)", b.TRIZMapping[11].Mapping)
	assert.Equal(t, thesis.FeedbackLoopStep{
		Phase:       thesis.PhaseGeneration,
		Description: "WeaverForge regenerates CLI & templates from updated specs",
	}, b.FeedbackLoop[2])
}

func TestBundleValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*thesis.Bundle)
		want   error
	}{
		{"empty-name", func(b *thesis.Bundle) { b.SpanClaims[0].Name = "" }, thesis.ErrEmptyName},
		{"empty-brief", func(b *thesis.Bundle) { b.SpanClaims[1].Brief = "" }, thesis.ErrEmptyBrief},
		{"duplicate", func(b *thesis.Bundle) { b.SpanClaims[2] = b.SpanClaims[3] }, thesis.ErrDuplicateClaim},
		{"principle-low", func(b *thesis.Bundle) { b.TRIZMapping[0].Principle = 0 }, thesis.ErrPrinciple},
		{"principle-high", func(b *thesis.Bundle) { b.TRIZMapping[0].Principle = 41 }, thesis.ErrPrinciple},
		{"phase", func(b *thesis.Bundle) { b.FeedbackLoop[0].Phase = "daydreaming" }, thesis.ErrUnknownPhase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := thesis.DefaultBundle(fixedNow)
			tt.mutate(b)
			err := b.Validate()
			assert.True(t, pkg.HasError(err, tt.want), "expected %v in %v", tt.want, err)
		})
	}
}

func TestBundleEncoding(t *testing.T) {
	b := thesis.DefaultBundle(fixedNow)

	raw, err := b.JSON()
	require.NoError(t, err)
	var fromJSON thesis.Bundle
	require.NoError(t, json.Unmarshal(raw, &fromJSON))
	if diff := cmp.Diff(*b, fromJSON); diff != "" {
		t.Errorf("json mismatch (-want +got):\n%s", diff)
	}

	raw, err = b.YAML()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "generated_at: 2022-02-01T12:00:00Z\n"), string(raw))
	var fromYAML thesis.Bundle
	require.NoError(t, yaml.Unmarshal(raw, &fromYAML))
	if diff := cmp.Diff(*b, fromYAML); diff != "" {
		t.Errorf("yaml mismatch (-want +got):\n%s", diff)
	}
}

func TestSemanticConvention(t *testing.T) {
	sc := thesis.SemanticConvention(thesis.Claims())

	require.Len(t, sc.Groups, 1)
	g := sc.Groups[0]
	assert.Equal(t, "thesis", g.ID)
	assert.Equal(t, "span", g.Type)
	assert.Equal(t, "thesis", g.Prefix)
	require.Len(t, g.Attributes, 5)
	assert.Equal(t, thesis.SemanticAttribute{
		ID:               "telemetry_as_system",
		Type:             "boolean",
		Brief:            "Telemetry is the system, not an add-on.",
		RequirementLevel: "recommended",
	}, g.Attributes[0])

	raw, err := sc.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(raw), "- id: system_models_itself\n")
	assert.Contains(t, string(raw), "requirement_level: recommended\n")
}

func TestSemanticConventionUndottedName(t *testing.T) {
	sc := thesis.SemanticConvention([]thesis.Claim{{Name: "plain", Brief: "b"}})
	assert.Equal(t, "plain", sc.Groups[0].Attributes[0].ID)
}
