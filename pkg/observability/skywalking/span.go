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

package skywalking

import (
	"context"

	"github.com/SkyAPM/go2sky"

	"github.com/basvanbeek/thesis-emitter/pkg/observability"
)

type tracer struct {
	delegate *go2sky.Tracer
}

// StartSpanFromContext implements observability.Tracer
func (t *tracer) StartSpanFromContext(ctx context.Context, name string) observability.Span {
	sp, spanCtx, err := t.delegate.CreateLocalSpan(ctx, go2sky.WithOperationName(name))
	if err != nil {
		// only happens for a nil tracer
		return observability.NoopSpan(ctx)
	}
	return &span{delegate: sp, ctx: spanCtx}
}

// span adapts a go2sky.Span to observability.Span. The trace identifier is
// kept in the context by go2sky, not on the span.
type span struct {
	delegate go2sky.Span
	ctx      context.Context
}

// Context implements observability.Span
func (s *span) Context() context.Context {
	return s.ctx
}

// TraceID implements observability.Span
func (s *span) TraceID() string {
	return go2sky.TraceID(s.ctx)
}

// SetName implements observability.Span
func (s *span) SetName(name string) {
	s.delegate.SetOperationName(name)
}

// Tag implements observability.Span
func (s *span) Tag(key string, value string) {
	s.delegate.Tag(go2sky.Tag(key), value)
}

// Finish implements observability.Span
func (s *span) Finish() {
	s.delegate.End()
}

// SpanFromContext implements observability.Contexter
func (s *Service) SpanFromContext(ctx context.Context) observability.Span {
	sp := go2sky.ActiveSpan(ctx)
	if sp == nil {
		return observability.NoopSpan(ctx)
	}
	return &span{delegate: sp, ctx: ctx}
}
