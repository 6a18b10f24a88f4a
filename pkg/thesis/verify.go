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
	"fmt"

	"github.com/tetratelabs/multierror"

	"github.com/basvanbeek/thesis-emitter/pkg"
)

const (
	ErrSpanCount       pkg.Error = "unexpected number of thesis spans"
	ErrUnknownSpan     pkg.Error = "span name is not a thesis claim"
	ErrDuplicateSpan   pkg.Error = "thesis claim recorded more than once"
	ErrMissingClaim    pkg.Error = "thesis claim not recorded"
	ErrBriefMismatch   pkg.Error = "brief tag does not match the claim"
	ErrExtraAttributes pkg.Error = "span carries tags other than brief"
	ErrSpanNotEnded    pkg.Error = "span was never finished"
)

// RecordedSpan is the backend neutral view of a span captured by a collector.
type RecordedSpan struct {
	Name       string
	Attributes map[string]string
	Ended      bool
}

// Verify reports, as a multi error, every way in which spans deviate from a
// single Emit call.
func Verify(spans []RecordedSpan) error {
	var mErr error

	if len(spans) != len(catalog) {
		mErr = multierror.Append(mErr,
			fmt.Errorf("got %d, want %d: %w", len(spans), len(catalog), ErrSpanCount))
	}

	briefs := make(map[string]string, len(catalog))
	for _, c := range catalog {
		briefs[c.Name] = c.Brief
	}

	seen := make(map[string]bool, len(spans))
	for _, span := range spans {
		brief, ok := briefs[span.Name]
		if !ok {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", span.Name, ErrUnknownSpan))
			continue
		}
		if seen[span.Name] {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", span.Name, ErrDuplicateSpan))
		}
		seen[span.Name] = true

		if !span.Ended {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", span.Name, ErrSpanNotEnded))
		}
		if got := span.Attributes[BriefKey]; got != brief {
			mErr = multierror.Append(mErr,
				fmt.Errorf("%s: got %q: %w", span.Name, got, ErrBriefMismatch))
		}
		for key := range span.Attributes {
			if key != BriefKey {
				mErr = multierror.Append(mErr,
					fmt.Errorf("%s: tag %q: %w", span.Name, key, ErrExtraAttributes))
			}
		}
	}

	for _, c := range catalog {
		if !seen[c.Name] {
			mErr = multierror.Append(mErr, fmt.Errorf("%s: %w", c.Name, ErrMissingClaim))
		}
	}

	return mErr
}

// FilterAttributes returns a copy of attrs without the provided keys. Backends
// add their own tags (e.g. a version tag) which are not part of a claim.
func FilterAttributes(attrs map[string]string, drop ...string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	for _, k := range drop {
		delete(out, k)
	}
	return out
}
