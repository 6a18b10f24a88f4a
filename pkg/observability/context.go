package observability

import "golang.org/x/net/context"

// Contexter is a extension interface to retrieve current span from Go's context.
type Contexter interface {
	// SpanFromContext retrieves a Span from Go's context propagation
	// mechanism. Backends return a noop Span when none is found, so the result
	// is always safe to use.
	SpanFromContext(ctx context.Context) Span
}
