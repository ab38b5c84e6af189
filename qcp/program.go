// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qcp describes small dense quadratically constrained programs
//
// minimize 𝐜ᵀ𝐱 subject to
//   - linear rows: 𝐚ⱼᵀ𝐱 ≤ 𝐛ⱼ or 𝐚ⱼᵀ𝐱 = 𝐛ⱼ
//   - separable quadratic constraints: 𝐪ₖᵀ𝐱 + ∑ 𝐝ₖᵢ𝐱ᵢ² ≤ 𝐫ₖ (𝐝ₖ ≥ 0)
//   - boundaries: 𝒍ᵢ ≤ 𝐱ᵢ ≤ 𝒖ᵢ
//
// and the backends able to solve them.
// Simplex handles the linear subset, SQP handles every program.
package qcp

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

var (
	// ErrShape program dimensions are inconsistent.
	ErrShape = errors.New("qcp: program shape mismatch")
	// ErrUnsupported program contains constraints the backend can not handle.
	ErrUnsupported = errors.New("qcp: constraint type not supported by backend")
	// ErrSolve backend failed to produce an optimal solution.
	ErrSolve = errors.New("qcp: solve failed")
)

// Sense is the relation of a linear row to its right hand side.
type Sense int

const (
	// LessEqual row 𝐚ᵀ𝐱 ≤ 𝐛
	LessEqual Sense = iota
	// Equal row 𝐚ᵀ𝐱 = 𝐛
	Equal
)

func (s Sense) String() string {
	if s == Equal {
		return "="
	}
	return "<="
}

// Row is a dense linear constraint.
type Row struct {
	Coef  []float64
	Sense Sense
	RHS   float64
}

// Quadratic is a separable convex constraint 𝐪ᵀ𝐱 + ∑ 𝐝ᵢ𝐱ᵢ² ≤ 𝐫.
type Quadratic struct {
	Lin  []float64
	Diag []float64
	RHS  float64
}

// Eval returns 𝐪ᵀ𝐱 + ∑ 𝐝ᵢ𝐱ᵢ².
func (q *Quadratic) Eval(x []float64) float64 {
	v := floats.Dot(q.Lin, x)
	for i, d := range q.Diag {
		v += d * x[i] * x[i]
	}
	return v
}

// Program is a minimization problem over N columns.
// Lower and Upper may hold ±Inf for unbounded columns.
type Program struct {
	N            int
	Objective    []float64
	Lower, Upper []float64
	Rows         []Row
	Quad         []Quadratic
}

// NewProgram creates a program with n free columns and zero objective.
func NewProgram(n int) *Program {
	p := &Program{
		N:         n,
		Objective: make([]float64, n),
		Lower:     make([]float64, n),
		Upper:     make([]float64, n),
	}
	for i := 0; i < n; i++ {
		p.Lower[i] = math.Inf(-1)
		p.Upper[i] = math.Inf(1)
	}
	return p
}

// NumRows returns the number of linear rows.
func (p *Program) NumRows() int {
	return len(p.Rows)
}

// AddRow appends a linear row and returns its index.
func (p *Program) AddRow(r Row) int {
	p.Rows = append(p.Rows, r)
	return len(p.Rows) - 1
}

// DeleteRow removes row i, later rows shift down by one.
func (p *Program) DeleteRow(i int) {
	p.Rows = append(p.Rows[:i], p.Rows[i+1:]...)
}

// Activity returns 𝐚ᵢᵀ𝐱 of row i.
func (p *Program) Activity(i int, x []float64) float64 {
	return floats.Dot(p.Rows[i].Coef, x)
}

// Slack returns 𝐛ⱼ - 𝐚ⱼᵀ𝐱 for every row.
// Nonnegative slack means a satisfied inequality.
func (p *Program) Slack(x []float64) []float64 {
	s := make([]float64, len(p.Rows))
	for i, r := range p.Rows {
		s[i] = r.RHS - floats.Dot(r.Coef, x)
	}
	return s
}

// Validate checks that all vectors match the column count and bounds are ordered.
func (p *Program) Validate() error {
	n := p.N
	switch {
	case n <= 0:
		return errors.Wrap(ErrShape, "no columns")
	case len(p.Objective) != n:
		return errors.Wrapf(ErrShape, "objective has %d coefficients, want %d", len(p.Objective), n)
	case len(p.Lower) != n || len(p.Upper) != n:
		return errors.Wrapf(ErrShape, "bounds have %d/%d entries, want %d", len(p.Lower), len(p.Upper), n)
	}
	for i := 0; i < n; i++ {
		if p.Lower[i] > p.Upper[i] {
			return errors.Wrapf(ErrShape, "column %d has lower bound %g above upper bound %g", i, p.Lower[i], p.Upper[i])
		}
	}
	for j, r := range p.Rows {
		if len(r.Coef) != n {
			return errors.Wrapf(ErrShape, "row %d has %d coefficients, want %d", j, len(r.Coef), n)
		}
	}
	for k, q := range p.Quad {
		if len(q.Lin) != n || len(q.Diag) != n {
			return errors.Wrapf(ErrShape, "quadratic constraint %d has %d/%d coefficients, want %d", k, len(q.Lin), len(q.Diag), n)
		}
		for i, d := range q.Diag {
			if d < 0 || math.IsNaN(d) {
				return errors.Wrapf(ErrShape, "quadratic constraint %d is not convex at column %d", k, i)
			}
		}
	}
	return nil
}

// Solution is the optimum reported by a backend.
type Solution struct {
	X         []float64 // primal solution
	Objective float64   // 𝐜ᵀ𝐱
	Slack     []float64 // 𝐛ⱼ - 𝐚ⱼᵀ𝐱 per row
	// Dual holds one multiplier per row, nil when the backend has no dual information.
	Dual       []float64
	Iterations int
}

// Backend solves programs. Implementations are stateless and may be shared.
type Backend interface {
	// Name identifies the backend in diagnostics.
	Name() string
	// Quadratic reports whether the backend accepts quadratic constraints.
	Quadratic() bool
	// Solve returns the optimum of p. The optional x0 is a starting point hint.
	Solve(p *Program, x0 []float64) (*Solution, error)
}
