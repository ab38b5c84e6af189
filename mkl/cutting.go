// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"github.com/curioloop/mkl/qcp"
)

const (
	activeSlack = 1e-6 // rows closer than this to their bound are active
	minRowCap   = 100  // rows kept beyond the leading block regardless of activity
	maxQRounds  = 100  // q-norm refinements per call
	taylorFloor = 1e-6 // expansion point floor of the q-norm model
)

// CuttingPlane maintains the program
//
//	minimize  𝛉 + C ∑ 𝐬ᵢ
//	s.t.      ‖𝛃‖ₚ ≤ 1 (𝚎𝚚𝚞𝚊𝚕𝚒𝚝𝚢 ∑ 𝛃ᵢ = 1 when p = 1)
//	          |𝛃ᵢ - 𝛃ᵢ₊₁| ≤ 𝐬ᵢ (only when C ≠ 0)
//	          one cut per call bounding 𝛉 from below
//	          0 ≤ 𝛃, 𝐬 ≤ 1
//
// over the columns [𝛃₀ … 𝛃ₖ₋₁, 𝐬₀ … 𝐬ₖ₋₁, 𝛉]. The dual bound is 𝛒 = -𝛉.
//
// Norms other than 1 and 2 replace ‖𝛃‖ₚ ≤ 1 by its second order model around the
// current weights and refine it until the objective settles.
//
// The program lives for one training run and is discarded by Reset.
type CuttingPlane struct {
	norm, smooth, weightEps float64
	backend                 qcp.Backend

	k    int
	lead int // rows never pruned
	prog *qcp.Program
}

// NewCuttingPlane creates an empty cutting-plane solver.
// Norms other than 1 require a backend accepting quadratic constraints.
func NewCuttingPlane(norm, smooth, weightEps float64, backend qcp.Backend) (*CuttingPlane, error) {
	switch {
	case backend == nil:
		return nil, errors.Wrap(ErrConfig, "cutting plane: no backend")
	case norm != 1 && !backend.Quadratic():
		return nil, errors.Wrapf(ErrConfig, "cutting plane: %s backend can not handle %g-norm", backend.Name(), norm)
	}
	return &CuttingPlane{norm: norm, smooth: smooth, weightEps: weightEps, backend: backend}, nil
}

func (cp *CuttingPlane) Name() string { return "cutting-plane/" + cp.backend.Name() }

// Reset discards all cuts.
func (cp *CuttingPlane) Reset() {
	cp.prog, cp.k, cp.lead = nil, 0, 0
}

// Rows returns the number of linear rows currently in the program.
func (cp *CuttingPlane) Rows() int {
	if cp.prog == nil {
		return 0
	}
	return cp.prog.NumRows()
}

func (cp *CuttingPlane) theta() int { return 2 * cp.k }

// build creates the base program for k kernels.
func (cp *CuttingPlane) build(k int) {

	prog := qcp.NewProgram(2*k + 1)
	for i := 0; i < 2*k; i++ {
		prog.Lower[i], prog.Upper[i] = 0, 1
	}
	for i := k; i < 2*k; i++ {
		prog.Objective[i] = cp.smooth
	}
	prog.Objective[2*k] = 1

	switch cp.norm {
	case 1:
		coef := make([]float64, 2*k+1)
		for i := 0; i < k; i++ {
			coef[i] = 1
		}
		prog.AddRow(qcp.Row{Coef: coef, Sense: qcp.Equal, RHS: 1})
	case 2:
		diag := make([]float64, 2*k+1)
		for i := 0; i < k; i++ {
			diag[i] = 1
		}
		prog.Quad = []qcp.Quadratic{{Lin: make([]float64, 2*k+1), Diag: diag, RHS: 1}}
	}

	if cp.smooth != 0 {
		for q := 0; q < k-1; q++ {
			up := make([]float64, 2*k+1)
			up[q], up[q+1], up[k+q] = 1, -1, -1
			down := make([]float64, 2*k+1)
			down[q], down[q+1], down[k+q] = -1, 1, -1
			prog.AddRow(qcp.Row{Coef: up})
			prog.AddRow(qcp.Row{Coef: down})
		}
	}

	cp.k, cp.lead, cp.prog = k, prog.NumRows(), prog
	glog.V(1).Infof("cutting plane: base program with %d columns and %d rows", prog.N, cp.lead)
}

// addCut appends the bound of 𝛉 derived from the current contributions.
//   - p = 1 : -∑ (𝐰ᵢ - 𝐚)𝛃ᵢ - 𝛉 ≤ 0
//   - p ≠ 1 : -∑ 𝐰ᵢ𝛃ᵢ - 𝛉 ≤ -𝐚
func (cp *CuttingPlane) addCut(sumw []float64, suma float64) int {
	coef := make([]float64, 2*cp.k+1)
	var rhs float64
	for i, w := range sumw {
		if cp.norm == 1 {
			coef[i] = -(w - suma)
		} else {
			coef[i] = -w
		}
	}
	if cp.norm != 1 {
		rhs = -suma
	}
	coef[cp.theta()] = -1
	return cp.prog.AddRow(qcp.Row{Coef: coef, RHS: rhs})
}

// setTaylor replaces the norm constraint by its second order model at 𝛃.
//
//	𝐠ᵢ = q𝛃ᵢ^(q-1), 𝐇ᵢ = ½q(q-1)𝛃ᵢ^(q-2)
//	∑ (𝐠ᵢ - 2𝛃ᵢ𝐇ᵢ)𝐱ᵢ + 𝐇ᵢ𝐱ᵢ² ≤ 1 - ∑ 𝛃ᵢ^q + ∑ (𝐠ᵢ𝛃ᵢ - 𝛃ᵢ²𝐇ᵢ)
func (cp *CuttingPlane) setTaylor(beta []float64) {
	q, n := cp.norm, 2*cp.k+1
	lin, diag := make([]float64, n), make([]float64, n)
	rhs := 1.0
	for i, b := range beta {
		rhs -= math.Pow(b, q)
		b = math.Max(b, taylorFloor)
		g := q * math.Pow(b, q-1)
		h := 0.5 * q * (q - 1) * math.Pow(b, q-2)
		lin[i] = g - 2*b*h
		diag[i] = h
		rhs += g*b - b*b*h
	}
	cp.prog.Quad = []qcp.Quadratic{{Lin: lin, Diag: diag, RHS: rhs}}
}

// start returns a feasible point for the given weights.
func (cp *CuttingPlane) start(beta []float64) []float64 {
	k := cp.k
	x := make([]float64, 2*k+1)
	copy(x, beta)
	for q := 0; q+1 < k; q++ {
		x[k+q] = math.Abs(beta[q] - beta[q+1])
	}
	theta := math.Inf(-1)
	for j := cp.lead; j < cp.prog.NumRows(); j++ {
		// 𝐚ᵀ𝐱 - 𝛉 ≤ 𝐛 ⟺ 𝛉 ≥ 𝐚ᵀ𝐱 - 𝐛 with 𝐱 taken at 𝛉 = 0
		theta = math.Max(theta, cp.prog.Activity(j, x)-cp.prog.Rows[j].RHS)
	}
	if !math.IsInf(theta, -1) {
		x[cp.theta()] = theta
	}
	return x
}

func (cp *CuttingPlane) solve(x0 []float64) (*qcp.Solution, error) {
	sol, err := cp.backend.Solve(cp.prog, x0)
	if err != nil {
		return nil, errors.Wrapf(ErrBackend, "%s: %v", cp.backend.Name(), err)
	}
	return sol, nil
}

func (cp *CuttingPlane) Solve(oldBeta, sumw []float64, suma float64) (*Outcome, error) {

	k := len(oldBeta)
	if len(sumw) != k {
		return nil, errors.Wrapf(ErrInvariant, "%d contributions for %d kernels", len(sumw), k)
	}
	if cp.prog == nil || cp.k != k {
		if cp.prog != nil {
			glog.Warningf("cutting plane: kernel count changed from %d to %d, discarding %d cuts", cp.k, k, cp.prog.NumRows()-cp.lead)
		}
		cp.build(k)
	}

	cut := cp.addCut(sumw, suma)

	var (
		sol   *qcp.Solution
		err   error
		inner int
	)
	switch cp.norm {
	case 1, 2:
		sol, err = cp.solve(cp.start(oldBeta))
	default:
		q := cp.norm
		beta := make([]float64, k)
		copy(beta, oldBeta)
		objOld := 1e-8
		for {
			if !Project(beta, q) {
				err = errors.Wrap(ErrInvariant, "cutting plane: weights vanished during q-norm refinement")
				break
			}
			cp.setTaylor(beta)
			if sol, err = cp.solve(cp.start(beta)); err != nil {
				break
			}
			copy(beta, sol.X[:k])
			Project(beta, q)
			if 1-math.Abs(sol.Objective/objOld) < 0.1*cp.weightEps {
				break
			}
			if inner+1 >= maxQRounds {
				glog.Warningf("cutting plane: q-norm refinement stopped after %d rounds", maxQRounds)
				break
			}
			objOld = sol.Objective
			inner++
		}
	}
	if err != nil {
		cp.prog.DeleteRow(cut)
		return nil, err
	}

	beta := make([]float64, k)
	for i, b := range sol.X[:k] {
		beta[i] = math.Min(math.Max(b, 0), 1)
	}
	if cp.norm != 1 && Norm(beta, cp.norm) > 0 {
		Project(beta, cp.norm)
	}

	cp.prune(sol)

	return &Outcome{Beta: beta, Rho: -sol.X[cp.theta()], InnerIters: inner}, nil
}

// prune drops the loosest inactive cut once the program holds more than
// 𝚖𝚊𝚡(100, 2×active) rows beyond the leading block.
func (cp *CuttingPlane) prune(sol *qcp.Solution) {
	rows := cp.prog.NumRows()
	byDual := cp.norm == 1 && sol.Dual != nil

	active, loosest, maxSlack := 0, -1, math.Inf(-1)
	for j := cp.lead; j < rows; j++ {
		var isActive bool
		if byDual {
			isActive = sol.Dual[j] != 0
		} else {
			isActive = math.Abs(sol.Slack[j]) < activeSlack
		}
		switch {
		case isActive:
			active++
		case sol.Slack[j] > maxSlack:
			maxSlack, loosest = sol.Slack[j], j
		}
	}

	if rows-cp.lead > max(minRowCap, 2*active) && loosest >= 0 {
		if glog.V(3) {
			glog.Infof("cutting plane: drop row %d with slack %e (%d rows, %d active)", loosest, maxSlack, rows, active)
		}
		cp.prog.DeleteRow(loosest)
	}
}
