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

// Package http provides the run.Group unit serving the thesis endpoints.
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/tetratelabs/multierror"
	"github.com/tetratelabs/run"
	"go.uber.org/zap"

	"github.com/basvanbeek/thesis-emitter/pkg"
)

const (
	flagListenAddress   = "http-listen-address"
	flagShutdownTimeout = "http-shutdown-timeout"

	defaultListenAddress   = ":8000"
	defaultShutdownTimeout = 5 * time.Second

	errShutdownTimeout pkg.Error = "expected a positive duration"
)

var (
	_ run.Config    = (*Service)(nil)
	_ run.PreRunner = (*Service)(nil)
	_ run.Service   = (*Service)(nil)
)

// Service implements a run.Group compatible HTTP Server. The listener is
// bound in PreRun so address conflicts fail the group before any unit serves.
// The Handler must be set on the embedded Server before Serve is called.
type Service struct {
	ListenAddress   string
	ShutdownTimeout time.Duration
	Logger          *zap.Logger

	*http.Server
	l net.Listener
}

// Name implements run.Unit.
func (s *Service) Name() string {
	return "http"
}

// FlagSet implements run.Config.
func (s *Service) FlagSet() *run.FlagSet {
	if s.ListenAddress == "" {
		s.ListenAddress = defaultListenAddress
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = defaultShutdownTimeout
	}
	if s.Server == nil {
		s.Server = newServer()
	}

	flags := run.NewFlagSet("HTTP server options")
	flags.StringVarP(&s.ListenAddress, flagListenAddress, "a", s.ListenAddress,
		`HTTP server listen address, e.g. ":443" or "localhost:80"`)
	flags.DurationVar(&s.ShutdownTimeout, flagShutdownTimeout, s.ShutdownTimeout,
		`Time allowed for in-flight requests to complete on shutdown`)

	return flags
}

func newServer() *http.Server {
	return &http.Server{
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Validate implements run.Config.
func (s *Service) Validate() error {
	var mErr error

	switch {
	case s.ListenAddress == "":
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, flagListenAddress, pkg.ErrRequired))
	default:
		if _, _, err := net.SplitHostPort(s.ListenAddress); err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, flagListenAddress, err))
		}
	}
	if s.ShutdownTimeout <= 0 {
		mErr = multierror.Append(mErr, fmt.Errorf(pkg.FlagErr, flagShutdownTimeout, errShutdownTimeout))
	}

	return mErr
}

// PreRun implements run.PreRunner.
func (s *Service) PreRun() (err error) {
	if s.Server == nil {
		s.Server = newServer()
	}
	if s.l, err = net.Listen("tcp", s.ListenAddress); err != nil {
		return err
	}
	return nil
}

// Addr returns the bound listener address, or nil before PreRun.
func (s *Service) Addr() net.Addr {
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// Serve implements run.Service.
func (s *Service) Serve() error {
	if s.l == nil {
		if err := s.PreRun(); err != nil {
			return err
		}
	}
	s.logger().Info("http server listening", zap.Stringer("address", s.l.Addr()))
	if err := s.Server.Serve(s.l); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// GracefulStop implements run.Service. In-flight requests get ShutdownTimeout
// to complete.
func (s *Service) GracefulStop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()

	if s.Server != nil {
		if err := s.Server.Shutdown(ctx); err != nil {
			s.logger().Warn("http server shutdown", zap.Error(err))
		}
	}
	if s.l != nil {
		_ = s.l.Close()
	}
}

func (s *Service) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
