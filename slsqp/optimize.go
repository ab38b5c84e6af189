// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
	"slices"

	"github.com/pkg/errors"
)

// ErrProblem is wrapped by every validation failure of Problem.New.
var ErrProblem = errors.New("slsqp: invalid problem")

// Bound represents the bounds for an optimization variable.
type Bound struct {
	Lower, Upper float64
}

// Evaluation returns the value at x when g is nil, otherwise it writes the gradient
// into g and its return value is ignored.
type Evaluation func(x []float64, g []float64) (f float64)

// Termination specifies the stopping criteria for the optimization algorithm.
type Termination struct {
	Accuracy       float64 // required accuracy of the solution
	MaxIterations  int     // limit of SQP iterations
	NNLSIterations int     // limit of each NNLS solve, 3n when zero
	FEvalTolerance float64 // stop once |𝒇ₖ| falls below it
	FDiffTolerance float64 // stop once |𝒇ₖ₊₁ - 𝒇ₖ| falls below it
	XDiffTolerance float64 // stop once ‖𝐱ₖ₊₁ - 𝐱ₖ‖ falls below it
}

// LineSearch bounds the step of the Armijo backtracking, [0.1, 1] when Alpha is nil.
type LineSearch struct {
	Alpha *Bound
}

// Problem specifies the problem for SLSQP optimizer.
type Problem struct {
	N       int
	Stop    Termination
	Line    LineSearch
	Object  Evaluation
	EqCons  []Evaluation // 𝒄(𝐱) = 0
	NeqCons []Evaluation // 𝒄(𝐱) ≥ 0
	Bounds  []Bound      // unbounded when nil, NaN or ±Inf disables one side
	// Bounds beyond ±BndInf are ignored, MaxFloat64 when zero.
	BndInf float64
}

// New validates the problem and returns an optimizer holding its own copy of it.
func (p *Problem) New() (optimizer *Optimizer, err error) {

	obj, eq, neq, stop, line := p.Object, p.EqCons, p.NeqCons, p.Stop, p.Line
	n, m, meq := p.N, len(eq)+len(neq), len(eq)

	inf := math.Abs(p.BndInf)
	bnd := p.Bounds

	if bnd == nil {
		bnd = make([]Bound, n)
		for i := range bnd {
			bnd[i].Upper = math.Inf(1)
			bnd[i].Lower = math.Inf(-1)
		}
	}

	if p.BndInf == zero {
		inf = math.MaxFloat64
	}

	const alfmin = 0.1
	if line.Alpha == nil {
		line.Alpha = &Bound{alfmin, one}
	} else {
		alpha := *line.Alpha
		if math.IsNaN(alpha.Lower) {
			alpha.Lower = alfmin
		}
		if math.IsNaN(alpha.Upper) {
			alpha.Upper = one
		}
		line.Alpha = &alpha
	}

	switch {
	case n <= 0:
		return nil, errors.Wrapf(ErrProblem, "dimension %d", n)
	case meq > n:
		return nil, errors.Wrapf(ErrProblem, "%d equality constraints for %d variables", meq, n)
	case obj == nil:
		return nil, errors.Wrap(ErrProblem, "missing objective")
	case stop.MaxIterations <= 0:
		return nil, errors.Wrapf(ErrProblem, "max iterations %d", stop.MaxIterations)
	case stop.NNLSIterations < 0:
		return nil, errors.Wrapf(ErrProblem, "nnls iterations %d", stop.NNLSIterations)
	case stop.Accuracy <= zero:
		return nil, errors.Wrapf(ErrProblem, "accuracy %g", stop.Accuracy)
	case stop.FEvalTolerance < zero, stop.FDiffTolerance < zero, stop.XDiffTolerance < zero:
		return nil, errors.Wrap(ErrProblem, "negative tolerance")
	case line.Alpha.Lower < zero || line.Alpha.Upper > one || line.Alpha.Upper < line.Alpha.Lower:
		return nil, errors.Wrapf(ErrProblem, "line search range [%g, %g]", line.Alpha.Lower, line.Alpha.Upper)
	case len(bnd) != n:
		return nil, errors.Wrapf(ErrProblem, "%d bounds for %d variables", len(bnd), n)
	}

	for k, c := range eq {
		if c == nil {
			return nil, errors.Wrapf(ErrProblem, "nil equality constraint %d", k)
		}
	}
	for k, c := range neq {
		if c == nil {
			return nil, errors.Wrapf(ErrProblem, "nil inequality constraint %d", k)
		}
	}

	bnd = slices.Repeat(bnd, 1)
	for k := range bnd {
		b := &bnd[k]
		if math.IsInf(b.Lower, 0) {
			b.Lower = math.NaN()
		}
		if math.IsInf(b.Upper, 0) {
			b.Upper = math.NaN()
		}
		if b.Lower > b.Upper {
			return nil, errors.Wrapf(ErrProblem, "bound %d is [%g, %g]", k, b.Lower, b.Upper)
		}
	}

	optimizer = &Optimizer{
		sqpSpec{
			n: n, m: m, meq: meq,
			Problem: Problem{
				N:       n,
				Stop:    stop,
				Line:    line,
				Object:  obj,
				EqCons:  slices.Repeat(eq, 1),
				NeqCons: slices.Repeat(neq, 1),
				Bounds:  slices.Repeat(bnd, 1),
				BndInf:  inf,
			},
		},
	}

	return
}

// Optimizer is a validated problem ready to Fit. It is immutable and may be shared.
type Optimizer struct {
	sqpSpec
}

// Workspace is the scratch memory of one Fit call, sized for n variables and m constraints.
type Workspace struct {
	n, m, meq int
	sqpCtx
}

// Result contains the final result of the optimization process.
type Result struct {
	OK   bool
	F    float64
	X, G []float64
	// Multipliers of the last sub-problem, equality constraints first.
	// Inequality multipliers are non-negative and vanish on inactive constraints.
	Multipliers []float64
	Summary
}

// Summary contains a summary of the optimization process.
type Summary struct {
	Status  sqpMode
	NumIter int
}

// Init allocates a workspace. Concurrent fits need one workspace each.
func (o *Optimizer) Init() *Workspace {
	w := new(Workspace)
	w.n, w.m, w.meq = o.n, o.m, o.meq

	n, m, meq, n1 := w.n, w.m, w.meq, w.n+1
	mineq := (m - meq) + 2*n1
	lsqWork := n1*(n1+1) + meq*(n1+1) + mineq*(n1+1)
	lsiWork := (n1-meq+1)*(mineq+2) + 2*mineq
	lseiWork := (n1+mineq)*(n1-meq) + 2*meq + n1
	loopWork := n1*n/2 + 2*m + 3*n + 3*n1 + 1
	wrk := make([]float64, lsqWork+lsiWork+lseiWork+loopWork)

	la := max(1, m)
	ll := (n + 1) * (n + 2) / 2
	lr := n + n + m + 2

	im := 0
	il := im + la
	ix := il + n1*n/2 + 1
	ir := ix + n
	is := ir + n + n + la

	w.sqpCtx = sqpCtx{
		r:  wrk[ir : ir+lr], // tail shared with s
		l:  wrk[il : il+ll], // tail shared with x0
		x0: wrk[ix : ix+n],
		mu: wrk[im : im+la],
		s:  wrk[is : is+n1*1],
		u:  wrk[is+n1*1 : is+n1*2],
		v:  wrk[is+n1*2 : is+n1*3],
		w:  wrk[is+n1*3:],
		jw: make([]int, max(mineq, n1-mineq)),
	}

	return w
}

// Fit minimizes from the initial guess x. x is copied, not modified.
func (o *Optimizer) Fit(x []float64, w *Workspace) *Result {

	if len(x) != o.n {
		panic("slsqp: initial point has wrong dimension")
	}

	if w.n != o.n || w.m != o.m || w.meq != o.meq {
		panic("slsqp: workspace belongs to another problem")
	}

	la := max(1, o.m)
	loc := sqpLoc{
		x: slices.Repeat(x, 1),
		g: make([]float64, o.n+1),
		c: make([]float64, la),
		a: make([]float64, la*(o.n+1)),
	}

	solver := sqpSolver{
		optimizer: o,
		workspace: w,
		location:  &loc,
	}

	res := solver.mainLoop()
	return &Result{
		OK: res == OK,
		X:  loc.x, F: loc.f, G: loc.g[:o.n],
		Multipliers: slices.Clone(w.r[:o.m]),
		Summary: Summary{
			Status:  res,
			NumIter: w.iter,
		},
	}
}
