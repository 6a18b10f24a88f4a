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

package zipkin

import (
	"context"

	"github.com/openzipkin/zipkin-go"

	"github.com/basvanbeek/thesis-emitter/pkg/observability"
)

type tracer struct {
	delegate *zipkin.Tracer
}

// StartSpanFromContext implements observability.Tracer
func (t *tracer) StartSpanFromContext(ctx context.Context, name string) observability.Span {
	sp, ctx := t.delegate.StartSpanFromContext(ctx, name)
	return &span{delegate: sp, ctx: ctx}
}

// span adapts a zipkin.Span to observability.Span.
type span struct {
	delegate zipkin.Span
	ctx      context.Context
}

// Context implements observability.Span
func (s *span) Context() context.Context {
	return s.ctx
}

// TraceID implements observability.Span
func (s *span) TraceID() string {
	return s.delegate.Context().TraceID.String()
}

// SetName implements observability.Span
func (s *span) SetName(name string) {
	s.delegate.SetName(name)
}

// Tag implements observability.Span
func (s *span) Tag(key string, value string) {
	s.delegate.Tag(key, value)
}

// Finish implements observability.Span
func (s *span) Finish() {
	s.delegate.Finish()
}

// SpanFromContext implements observability.Contexter
func (s *Service) SpanFromContext(ctx context.Context) observability.Span {
	sp := zipkin.SpanFromContext(ctx)
	if sp == nil {
		return observability.NoopSpan(ctx)
	}
	return &span{delegate: sp, ctx: ctx}
}
