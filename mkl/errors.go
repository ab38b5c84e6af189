// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvariant input data broke a weight invariant (nonnegativity, [0,1] bounds, normalization).
	ErrInvariant = errors.New("mkl: invariant violation")
	// ErrDegenerate a normalizer or curvature term vanished.
	// Solvers recover from it locally, it only surfaces in diagnostics.
	ErrDegenerate = errors.New("mkl: numerical degeneracy")
	// ErrBackend the program backend failed to solve.
	ErrBackend = errors.New("mkl: backend failure")
	// ErrConfig the configuration is invalid or a required backend is missing.
	ErrConfig = errors.New("mkl: configuration error")
)

// StepError reports which solver failed during a step.
type StepError struct {
	Solver string
	Err    error
}

func (e *StepError) Error() string {
	return "mkl step via " + e.Solver + ": " + e.Err.Error()
}

func (e *StepError) Unwrap() error { return e.Err }

// Cause lets errors.Cause reach the underlying sentinel.
func (e *StepError) Cause() error { return e.Err }
