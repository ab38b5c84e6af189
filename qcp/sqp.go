// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qcp

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"github.com/curioloop/mkl/slsqp"
)

const (
	sqpAccuracy = 1e-9
	sqpMaxIter  = 500
)

// SQP solves linear and quadratically constrained programs with SLSQP.
//
// Every row becomes a constraint of the nonlinear problem:
//   - 𝐚ᵀ𝐱 = 𝐛 → 𝐚ᵀ𝐱 - 𝐛 = 0
//   - 𝐚ᵀ𝐱 ≤ 𝐛 → 𝐛 - 𝐚ᵀ𝐱 ≥ 0
//   - 𝐪ᵀ𝐱 + ∑ 𝐝ᵢ𝐱ᵢ² ≤ 𝐫 → 𝐫 - 𝐪ᵀ𝐱 - ∑ 𝐝ᵢ𝐱ᵢ² ≥ 0
//
// Row duals are the Lagrange multipliers of the final QP sub-problem.
type SQP struct {
	// Accuracy of the SLSQP stopping test, 1e-9 when zero.
	Accuracy float64
	// MaxIterations of the SQP main loop, 500 when zero.
	MaxIterations int
}

func (SQP) Name() string { return "sqp" }

func (SQP) Quadratic() bool { return true }

func (s SQP) Solve(p *Program, x0 []float64) (*Solution, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := p.N
	cost := p.Objective
	object := func(x []float64, g []float64) float64 {
		if g != nil {
			copy(g, cost)
			return 0
		}
		return floats.Dot(cost, x)
	}

	var eq, neq []slsqp.Evaluation
	var eqRow, neqRow []int
	for j := range p.Rows {
		r := &p.Rows[j]
		if r.Sense == Equal {
			eq = append(eq, func(x []float64, g []float64) float64 {
				if g != nil {
					copy(g, r.Coef)
					return 0
				}
				return floats.Dot(r.Coef, x) - r.RHS
			})
			eqRow = append(eqRow, j)
		} else {
			neq = append(neq, func(x []float64, g []float64) float64 {
				if g != nil {
					floats.ScaleTo(g, -1, r.Coef)
					return 0
				}
				return r.RHS - floats.Dot(r.Coef, x)
			})
			neqRow = append(neqRow, j)
		}
	}
	for k := range p.Quad {
		q := &p.Quad[k]
		neq = append(neq, func(x []float64, g []float64) float64 {
			if g != nil {
				for i := range g {
					g[i] = -q.Lin[i] - 2*q.Diag[i]*x[i]
				}
				return 0
			}
			return q.RHS - q.Eval(x)
		})
	}

	bounds := make([]slsqp.Bound, n)
	for i := range bounds {
		bounds[i] = slsqp.Bound{Lower: p.Lower[i], Upper: p.Upper[i]}
		if math.IsInf(bounds[i].Lower, 0) {
			bounds[i].Lower = math.NaN()
		}
		if math.IsInf(bounds[i].Upper, 0) {
			bounds[i].Upper = math.NaN()
		}
	}

	acc, iter := s.Accuracy, s.MaxIterations
	if acc <= 0 {
		acc = sqpAccuracy
	}
	if iter <= 0 {
		iter = sqpMaxIter
	}

	prob := slsqp.Problem{
		N:       n,
		Object:  object,
		EqCons:  eq,
		NeqCons: neq,
		Bounds:  bounds,
		Stop: slsqp.Termination{
			Accuracy:      acc,
			MaxIterations: iter,
		},
	}
	opt, err := prob.New()
	if err != nil {
		return nil, errors.Wrapf(ErrSolve, "sqp: %v", err)
	}

	start := make([]float64, n)
	if len(x0) == n {
		copy(start, x0)
	}
	for i, v := range start {
		start[i] = math.Min(math.Max(v, p.Lower[i]), p.Upper[i])
	}

	res := opt.Fit(start, opt.Init())
	if !res.OK {
		return nil, errors.Wrapf(ErrSolve, "sqp: %v after %d iterations", res.Status, res.NumIter)
	}

	dual := make([]float64, len(p.Rows))
	for k, j := range eqRow {
		dual[j] = res.Multipliers[k]
	}
	for k, j := range neqRow {
		dual[j] = res.Multipliers[len(eq)+k]
	}

	return &Solution{
		X:          res.X,
		Objective:  floats.Dot(cost, res.X),
		Slack:      p.Slack(res.X),
		Dual:       dual,
		Iterations: res.NumIter,
	}, nil
}
