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

// Package pkg holds small helpers shared by all packages of this binary.
package pkg

import (
	"errors"
	"reflect"
)

// FlagErr can be used as formatting string for flag related validation
// errors where the first variable lists the flag name and the second
// variable is the actual error.
const FlagErr = "--%s error: %w"

// ErrRequired is returned when required config options are not provided.
const ErrRequired Error = "required"

// Error allows for creating constant errors instead of sentinel ones.
type Error string

// Error implements error.
func (e Error) Error() string {
	return string(e)
}

// wrappedErrors is implemented by both tetratelabs and hashicorp multierror
// types.
type wrappedErrors interface {
	WrappedErrors() []error
}

// HasError checks if the provided target error is found in the error chain of
// err. Multi errors are traversed depth first.
func HasError(err, target error) bool {
	if target == nil {
		return err == nil
	}
	isComparable := reflect.TypeOf(target).Comparable()
	for err != nil {
		if isComparable && err == target {
			return true
		}
		if m, ok := err.(wrappedErrors); ok {
			for _, e := range m.WrappedErrors() {
				if HasError(e, target) {
					return true
				}
			}
		}
		err = errors.Unwrap(err)
	}
	return false
}
