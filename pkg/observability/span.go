package observability

import "context"

// Span is the unit of work handed out by a Tracer. Every started Span must be
// finished exactly once.
type Span interface {
	// Context returns the context carrying this Span, to be used as parent for
	// child spans.
	Context() context.Context
	// TraceID returns the Span's trace identifier.
	TraceID() string
	// SetName updates the Span's name.
	SetName(string)
	// Tag sets Tag with given key and value to the Span. If key already exists in
	// the Span the value will be overridden except for error tags where the first
	// value is persisted.
	Tag(string, string)
	// Finish the Span and hand it to the backend's reporter.
	Finish()
}

// NoopSpan returns a Span that records nothing. It is handed out by backends
// when no active span is found in a context.
func NoopSpan(ctx context.Context) Span {
	return noopSpan{ctx: ctx}
}

type noopSpan struct {
	ctx context.Context
}

func (s noopSpan) Context() context.Context { return s.ctx }
func (noopSpan) TraceID() string            { return "" }
func (noopSpan) SetName(string)             {}
func (noopSpan) Tag(string, string)         {}
func (noopSpan) Finish()                    {}
