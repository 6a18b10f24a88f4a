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

// Package emitter periodically emits the thesis spans without waiting for an
// HTTP request.
package emitter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/multierror"
	"github.com/tetratelabs/run"
	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/internal/metrics"
	"github.com/basvanbeek/thesis-emitter/pkg"
	"github.com/basvanbeek/thesis-emitter/pkg/observability"
	"github.com/basvanbeek/thesis-emitter/pkg/thesis"
)

const (
	flagInterval = "emit-interval"
	flagCount    = "emit-count"

	// RootSpanName is the parent of every claim span emitted on interval.
	RootSpanName = "thesis.emit"
	triggerTag   = "trigger"

	errInterval pkg.Error = "expected a zero or positive duration"
	errCount    pkg.Error = "expected a zero or positive count"
)

var (
	_ run.Config    = (*Emitter)(nil)
	_ run.PreRunner = (*Emitter)(nil)
	_ run.Service   = (*Emitter)(nil)
)

// Emitter implements run.Service. Every Interval it emits the thesis spans
// under a fresh root span, until Count emissions have been made. A zero
// Interval disables it, a zero Count never stops emitting.
type Emitter struct {
	// dependencies
	Instrumenter observability.Tracerer
	Metrics      *metrics.Metrics
	Logger       *zap.Logger

	Interval time.Duration
	Count    int

	tracer   observability.Tracer
	emitted  atomic.Int64
	closer   chan struct{}
	stopOnce sync.Once
}

// Name implements run.Unit.
func (e *Emitter) Name() string {
	return "emitter"
}

// FlagSet implements run.Config.
func (e *Emitter) FlagSet() *run.FlagSet {
	flags := run.NewFlagSet("Periodic emitter options")

	flags.DurationVar(&e.Interval, flagInterval, e.Interval,
		`Interval between thesis emissions, 0 disables periodic emission`)

	flags.IntVar(&e.Count, flagCount, e.Count,
		`Number of periodic emissions before going idle, 0 for unbounded`)

	return flags
}

// Validate implements run.Config.
func (e *Emitter) Validate() error {
	var mErr error

	if e.Interval < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, flagInterval, errInterval))
	}
	if e.Count < 0 {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, flagCount, errCount))
	}

	return mErr
}

// PreRun implements run.PreRunner.
func (e *Emitter) PreRun() error {
	if e.Instrumenter == nil || e.Instrumenter.Tracer() == nil {
		return errors.New("missing tracer to attach to")
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	e.tracer = e.Instrumenter.Tracer()
	e.closer = make(chan struct{})
	return nil
}

// Serve implements run.Service. It only returns after GracefulStop, so
// reaching Count does not take down the run.Group.
func (e *Emitter) Serve() error {
	if e.Interval == 0 {
		<-e.closer
		return nil
	}

	e.Logger.Info("periodic emission started",
		zap.Duration("interval", e.Interval), zap.Int("count", e.Count))

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.closer:
			return nil
		case <-ticker.C:
			n := e.emit()
			if e.Count > 0 && n >= int64(e.Count) {
				e.Logger.Info("emission count reached, going idle", zap.Int64("emitted", n))
				<-e.closer
				return nil
			}
		}
	}
}

// GracefulStop implements run.Service.
func (e *Emitter) GracefulStop() {
	e.stopOnce.Do(func() {
		close(e.closer)
	})
}

// Emitted returns the number of periodic emissions so far.
func (e *Emitter) Emitted() int64 {
	return e.emitted.Load()
}

func (e *Emitter) emit() int64 {
	start := time.Now()

	root := e.tracer.StartSpanFromContext(context.Background(), RootSpanName)
	root.Tag(triggerTag, metrics.TriggerInterval)
	records := thesis.Emit(root.Context(), e.tracer)
	root.Finish()

	took := time.Since(start)
	e.Metrics.Observe(metrics.TriggerInterval, records, took)

	n := e.emitted.Add(1)
	e.Logger.Debug("thesis spans emitted",
		zap.String("trace_id", root.TraceID()),
		zap.Int("spans", len(records)),
		zap.Duration("took", took),
		zap.Int64("emission", n))
	return n
}
