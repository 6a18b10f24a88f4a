package observability

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tetratelabs/multierror"
	"github.com/tetratelabs/run"

	"github.com/basvanbeek/thesis-emitter/pkg"
)

const (
	ObservabilityInstrumenter = "observability-instrumenter"
	ZipkinInstrumenter        = "zipkin"
	SkywalkingInstrumenter    = "skywalking"
	OpenTelemetryInstrumenter = "opentelemetry"

	BaggageRequestID = "X-Request-Id"
	VersionTag       = "version"
)

const (
	errNoDelegate            pkg.Error = "no instrumenter selected, PreRun not called"
	errDuplicateInstrumenter pkg.Error = "instrumenter provided more than once"
)

// supported lists the instrumenters the --observability-instrumenter flag
// accepts, in help text order.
var supported = []string{ZipkinInstrumenter, SkywalkingInstrumenter, OpenTelemetryInstrumenter}

// Tracerer is an extension interface that observability Services can implement
// to provide tracing functionalities.
type Tracerer interface {
	Tracer() Tracer
}

// Middlewareer is an extension interface that observability Services can implement
// to provide an instrumented middleware.
type Middlewareer interface {
	Middleware() func(http.Handler) http.Handler
}

// Transporter is an extension interface that observability Services can implement
// to provide an instrumented http.RoundTripper.
type Transporter interface {
	Transport(transport http.RoundTripper) (http.RoundTripper, error)
}

// Instrumenter is implemented by every tracing backend.
type Instrumenter interface {
	Tracerer
	Contexter
	Middlewareer
	Transporter
}

// InstrumenterService is a tracing backend that is also a run.Group unit.
type InstrumenterService interface {
	Instrumenter
	run.Config
	run.PreRunner
	run.Service
}

// Service implements run.GroupService. It exposes the flags of all provided
// Instrumenters and delegates to the one selected by the
// observability-instrumenter flag. Until PreRun has selected a backend, spans
// are no-ops and the middleware passes requests through untouched.
type Service struct {
	ObservabilityInstrumenter string
	Instrumenters             []InstrumenterService

	delegate InstrumenterService
}

var (
	_ run.Config    = (*Service)(nil)
	_ run.PreRunner = (*Service)(nil)
	_ run.Service   = (*Service)(nil)
	_ Instrumenter  = (*Service)(nil)
)

// Name implements run.Unit.
func (s *Service) Name() string {
	if s.delegate == nil {
		return ObservabilityInstrumenter
	}
	return ObservabilityInstrumenter + "[" + s.delegate.Name() + "]"
}

// FlagSet implements run.Config. The flags of every Instrumenter are
// registered, whichever one ends up selected.
func (s *Service) FlagSet() *run.FlagSet {
	flags := run.NewFlagSet("Observability instrumenter config")
	flags.StringVar(&s.ObservabilityInstrumenter, ObservabilityInstrumenter, s.ObservabilityInstrumenter,
		`Name of the instrumenter to use, one of `+strings.Join(supported, ", "))

	for _, instrumenter := range s.Instrumenters {
		flags.AddFlagSet(instrumenter.FlagSet().FlagSet)
	}
	return flags
}

// Validate implements run.Config. Only the selected Instrumenter is
// validated, the others are never started.
func (s *Service) Validate() error {
	var mErr error

	if !isSupported(s.ObservabilityInstrumenter) {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, ObservabilityInstrumenter,
			fmt.Errorf("instrumenter must be one of %v", supported)))
	}

	seen := make(map[string]bool, len(s.Instrumenters))
	for _, instrumenter := range s.Instrumenters {
		if seen[instrumenter.Name()] {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", instrumenter.Name(), errDuplicateInstrumenter))
		}
		seen[instrumenter.Name()] = true
	}

	selected := s.lookup()
	if selected == nil {
		return multierror.Append(mErr, fmt.Errorf("instrumenter %s not provided", s.ObservabilityInstrumenter))
	}
	if err := selected.Validate(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	return mErr
}

// PreRun implements run.PreRunner
func (s *Service) PreRun() error {
	if s.delegate = s.lookup(); s.delegate == nil {
		return errNoDelegate
	}
	return s.delegate.PreRun()
}

// Serve implements run.GroupService
func (s *Service) Serve() error {
	if s.delegate == nil {
		return errNoDelegate
	}
	return s.delegate.Serve()
}

// GracefulStop implements run.GroupService
func (s *Service) GracefulStop() {
	if s.delegate != nil {
		s.delegate.GracefulStop()
	}
}

// Tracer implements observability.Tracerer. It returns nil before PreRun.
func (s *Service) Tracer() Tracer {
	if s.delegate == nil {
		return nil
	}
	return s.delegate.Tracer()
}

// SpanFromContext implements observability.Contexter
func (s *Service) SpanFromContext(ctx context.Context) Span {
	if s.delegate == nil {
		return NoopSpan(ctx)
	}
	return s.delegate.SpanFromContext(ctx)
}

// Middleware implements observability.Middlewareer
func (s *Service) Middleware() func(http.Handler) http.Handler {
	if s.delegate == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.delegate.Middleware()
}

// Transport implements observability.Transporter
func (s *Service) Transport(transport http.RoundTripper) (http.RoundTripper, error) {
	if s.delegate == nil {
		return nil, errNoDelegate
	}
	return s.delegate.Transport(transport)
}

// lookup returns the first Instrumenter named by the flag.
func (s *Service) lookup() InstrumenterService {
	for _, instrumenter := range s.Instrumenters {
		if instrumenter.Name() == s.ObservabilityInstrumenter {
			return instrumenter
		}
	}
	return nil
}

func isSupported(name string) bool {
	for _, n := range supported {
		if n == name {
			return true
		}
	}
	return false
}
