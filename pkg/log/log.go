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

// Package log provides a run.Group unit that configures the zap logger shared
// by all other units of this binary.
package log

import (
	"fmt"

	"github.com/tetratelabs/multierror"
	"github.com/tetratelabs/run"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/basvanbeek/thesis-emitter/pkg"
)

const (
	flagLevel  = "log-level"
	flagFormat = "log-format"

	FormatJSON    = "json"
	FormatConsole = "console"

	defaultLevel  = "info"
	defaultFormat = FormatJSON

	errFormat pkg.Error = "expected json or console"
)

var (
	_ run.Config    = (*Service)(nil)
	_ run.PreRunner = (*Service)(nil)
)

// Service implements run.Config and run.PreRunner. The logger is available
// from Logger once PreRun has completed.
type Service struct {
	Level  string
	Format string
	// Fields are added to every log entry.
	Fields []zap.Field

	logger *zap.Logger
}

// Name implements run.Unit.
func (s *Service) Name() string {
	return "log"
}

// FlagSet implements run.Config.
func (s *Service) FlagSet() *run.FlagSet {
	if s.Level == "" {
		s.Level = defaultLevel
	}
	if s.Format == "" {
		s.Format = defaultFormat
	}

	flags := run.NewFlagSet("Logging options")

	flags.StringVar(&s.Level, flagLevel, s.Level,
		`Minimum level to log, one of debug, info, warn, error`)

	flags.StringVar(&s.Format, flagFormat, s.Format,
		`Log encoding, one of json, console`)

	return flags
}

// Validate implements run.Config.
func (s *Service) Validate() error {
	var mErr error

	if _, err := zapcore.ParseLevel(s.Level); err != nil {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, flagLevel, err))
	}
	if s.Format != FormatJSON && s.Format != FormatConsole {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, flagFormat, errFormat))
	}

	return mErr
}

// PreRun implements run.PreRunner.
func (s *Service) PreRun() error {
	level, err := zapcore.ParseLevel(s.Level)
	if err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	if s.Format == FormatConsole {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build(zap.Fields(s.Fields...))
	if err != nil {
		return err
	}
	s.logger = logger
	return nil
}

// Logger returns the configured logger, or a no-op logger when called before
// PreRun.
func (s *Service) Logger() *zap.Logger {
	if s.logger == nil {
		return zap.NewNop()
	}
	return s.logger
}

// Sync flushes buffered log entries.
func (s *Service) Sync() {
	if s.logger != nil {
		_ = s.logger.Sync() // nolint: errcheck
	}
}
