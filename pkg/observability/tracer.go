package observability

import "context"

// Tracer is the backend neutral span factory used by the thesis emitter and
// the HTTP endpoints.
type Tracer interface {
	// StartSpanFromContext creates and starts a span. If ctx holds a span of
	// the same backend the new span becomes its child.
	StartSpanFromContext(ctx context.Context, name string) Span
}
