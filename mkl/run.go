// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mkl recomputes the kernel weights of Multiple Kernel Learning between
// the SVM training rounds of the outer trainer.
//
// Every round the trainer reports the per kernel contributions 𝐰ₖ to the dual
// objective together with the scalar term 𝐚. A Run compares the objective at the
// current weights with the dual bound 𝛒 of the previous round and, unless the
// relative gap is already below the configured threshold, asks one of the weight
// solvers for a new weight vector:
//   - Analytic : closed form update for p > 1
//   - Newton   : diagonal Newton steps with backtracking for p > 1
//   - CuttingPlane : growing linear or quadratically constrained program
//
// The weights always keep a unit p-norm.
package mkl

import (
	"math"
	"slices"

	"github.com/golang/glog"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/mkl/qcp"
)

const gapSlack = 0.9999 // solve unless the gap is clearly below epsilon

// StepResult describes the latest step of a Run.
type StepResult struct {
	Objective  float64 // objective at the weights before the step
	Rho        float64
	Gap        float64
	Solver     string // empty when no solver ran
	InnerIters int
	Solved     bool
	Converged  bool
}

// Option customizes a Run.
type Option func(r *Run)

// WithLinearBackend sets the backend of the 1-norm program, qcp.Simplex by default.
// A nil backend makes configurations needing it fail in NewRun.
func WithLinearBackend(b qcp.Backend) Option {
	return func(r *Run) { r.linear = b }
}

// WithQuadraticBackend sets the backend of the quadratically constrained program, qcp.SQP by default.
func WithQuadraticBackend(b qcp.Backend) Option {
	return func(r *Run) { r.quadratic = b }
}

// Run is the state of one training run. It must not be shared between goroutines.
type Run struct {
	cfg   Config
	store WeightStore

	linear, quadratic qcp.Backend
	cutting           *CuttingPlane

	rho, gap float64
	last     StepResult
}

// NewRun validates the configuration and the backend required by it.
func NewRun(cfg Config, store WeightStore, opts ...Option) (*Run, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.Wrap(ErrConfig, "no weight store")
	}

	r := &Run{
		cfg:       cfg,
		store:     store,
		linear:    qcp.Simplex{},
		quadratic: qcp.SQP{},
		gap:       1,
	}
	for _, opt := range opts {
		opt(r)
	}

	var (
		backend qcp.Backend
		err     error
	)
	switch {
	case cfg.Solver == SolverQP:
		backend = r.quadratic
	case cfg.Norm == 1:
		backend = r.linear
	default:
		return r, nil
	}
	if r.cutting, err = NewCuttingPlane(cfg.Norm, cfg.CMKL, cfg.WeightEpsilon, backend); err != nil {
		return nil, err
	}
	return r, nil
}

// solver picks the weight solver for the configuration.
// A 1-norm always goes through the cutting-plane program.
func (r *Run) solver() BetaSolver {
	switch {
	case r.cutting != nil:
		return r.cutting
	case r.cfg.Analytic:
		return Analytic{Norm: r.cfg.Norm}
	default:
		return Newton{Norm: r.cfg.Norm}
	}
}

// Step performs one MKL iteration with the contributions of the latest training round
// and reports whether the duality gap has converged.
//
// The objective at the current weights 𝛃⁰ is
//
//	𝐨𝐛𝐣 = -𝐚 + ∑ 𝛃ᵢ⁰𝐰ᵢ
//
// and the gap is |1 - 𝛒/𝐨𝐛𝐣|. New weights are always written to the store.
// On error the store and the dual bound keep their previous values.
func (r *Run) Step(sumw []float64, suma float64) (bool, error) {

	oldBeta := r.store.SubkernelWeights()
	k := r.store.NumSubkernels()
	switch {
	case k == 0:
		return false, errors.Wrap(ErrInvariant, "no subkernels")
	case len(oldBeta) != k:
		return false, errors.Wrapf(ErrInvariant, "%d weights for %d subkernels", len(oldBeta), k)
	case len(sumw) != k:
		return false, errors.Wrapf(ErrInvariant, "%d contributions for %d subkernels", len(sumw), k)
	}

	obj := -suma + floats.Dot(oldBeta, sumw)
	gap := math.Abs(1 - r.rho/obj)
	glog.V(1).Infof("mkl: rho=%f mkl_obj=%f w_gap=%e", r.rho, obj, gap)

	res := StepResult{Objective: obj}
	beta, rho := slices.Clone(oldBeta), r.rho
	p := r.cfg.Norm

	if gap >= gapSlack*r.cfg.Epsilon || (r.cfg.Solver == SolverInternal && p > 1) {
		if k == 1 {
			rho = obj
		} else {
			s := r.solver()
			out, err := s.Solve(oldBeta, sumw, suma)
			if err != nil {
				return false, &StepError{Solver: s.Name(), Err: err}
			}
			beta, rho = out.Beta, out.Rho
			res.Solver, res.InnerIters = s.Name(), out.InnerIters
		}
		res.Solved = true
		gap = math.Abs(1 - rho/obj)
	}
	if k == 1 {
		beta[0] = 1
	}

	r.rho, r.gap = rho, gap
	r.store.SetSubkernelWeights(beta)

	res.Rho, res.Gap, res.Converged = rho, gap, r.Converged()
	r.last = res

	if res.Solved {
		glog.V(1).Infof("mkl: %s rho=%f w_gap=%e inner=%d", res.Solver, rho, gap, res.InnerIters)
	}
	if glog.V(2) {
		glog.Infof("mkl: old_beta=%v", oldBeta)
		glog.Infof("mkl: beta=%v", beta)
	}
	return res.Converged, nil
}

// Converged reports whether the last gap is below epsilon.
func (r *Run) Converged() bool {
	return r.gap < r.cfg.Epsilon
}

// Restart forgets the dual bound and all cuts before a new training run.
func (r *Run) Restart() {
	r.rho, r.gap = 0, 1
	r.last = StepResult{}
	if r.cutting != nil {
		r.cutting.Reset()
	}
}

func (r *Run) Rho() float64 { return r.rho }

func (r *Run) Gap() float64 { return r.gap }

func (r *Run) Config() Config { return r.cfg }

// Last returns the diagnostics of the latest successful step.
func (r *Run) Last() StepResult { return r.last }
