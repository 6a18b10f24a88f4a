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
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"strconv"
	"text/template"

	"github.com/basvanbeek/thesis-emitter/pkg"
)

// ErrPackageName is returned when generated code would get an invalid
// package clause.
const ErrPackageName pkg.Error = "package name is not a Go identifier"

// EmitterFunc is the name of the generated emitter function.
const EmitterFunc = "EmitThesisSpans"

var emitterTemplate = template.Must(template.New("emitter").
	Funcs(template.FuncMap{"quote": strconv.Quote}).
	Parse(`// Code generated by thesis-emitter. DO NOT EDIT.

package {{ .Package }}

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// {{ .Func }} emits one span per thesis claim, each carrying its brief.
func {{ .Func }}(ctx context.Context, tracer trace.Tracer) {
{{- range .Claims }}
	{
		_, span := tracer.Start(ctx, {{ quote .Name }},
			trace.WithAttributes(attribute.String({{ quote $.BriefKey }}, {{ quote .Brief }})))
		span.End()
	}
{{- end }}
}
`))

// GenerateEmitter renders gofmt'ed Go source for package pkgName holding a
// function that emits the provided claims through an OpenTelemetry tracer.
func GenerateEmitter(pkgName string, claims []Claim) ([]byte, error) {
	if !token.IsIdentifier(pkgName) {
		return nil, fmt.Errorf("%q: %w", pkgName, ErrPackageName)
	}

	var buf bytes.Buffer
	if err := emitterTemplate.Execute(&buf, struct {
		Package  string
		Func     string
		BriefKey string
		Claims   []Claim
	}{pkgName, EmitterFunc, BriefKey, claims}); err != nil {
		return nil, fmt.Errorf("render emitter: %w", err)
	}

	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format emitter: %w", err)
	}
	return src, nil
}
