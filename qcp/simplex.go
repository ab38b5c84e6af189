// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qcp

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const simplexTol = 1e-10

// Simplex solves linear programs with the dense simplex method of gonum.
//
// The general program is rewritten as
//
//	minimize 𝐜ᵀ𝐱 s.t. 𝐆𝐱 ≤ 𝐡, 𝐀𝐱 = 𝐛
//
// where 𝐆 stacks the ≤ rows followed by -𝐈 for finite lower bounds and 𝐈 for finite upper bounds.
// The standard form conversion splits 𝐱 = 𝐱⁺ - 𝐱⁻ and adds one slack per row of 𝐆.
//
// Simplex reports no dual values.
type Simplex struct {
	// Tol is the reduced cost tolerance, 1e-10 when zero.
	Tol float64
}

func (Simplex) Name() string { return "simplex" }

func (Simplex) Quadratic() bool { return false }

func (s Simplex) Solve(p *Program, _ []float64) (*Solution, error) {

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(p.Quad) > 0 {
		return nil, errors.Wrapf(ErrUnsupported, "simplex: %d quadratic constraints", len(p.Quad))
	}

	n := p.N
	var gData, h, aData, b []float64
	for _, r := range p.Rows {
		if r.Sense == Equal {
			aData = append(aData, r.Coef...)
			b = append(b, r.RHS)
		} else {
			gData = append(gData, r.Coef...)
			h = append(h, r.RHS)
		}
	}
	for i := 0; i < n; i++ {
		if l := p.Lower[i]; !math.IsInf(l, -1) {
			e := make([]float64, n)
			e[i] = -1
			gData = append(gData, e...)
			h = append(h, -l)
		}
		if u := p.Upper[i]; !math.IsInf(u, 1) {
			e := make([]float64, n)
			e[i] = 1
			gData = append(gData, e...)
			h = append(h, u)
		}
	}

	// Convert treats an untyped nil as an absent block.
	var g, a mat.Matrix
	if len(h) > 0 {
		g = mat.NewDense(len(h), n, gData)
	}
	if len(b) > 0 {
		a = mat.NewDense(len(b), n, aData)
	}

	c, aStd, bStd := lp.Convert(p.Objective, g, h, a, b)

	tol := s.Tol
	if tol <= 0 {
		tol = simplexTol
	}
	_, xStd, err := lp.Simplex(c, aStd, bStd, tol, nil)
	if err != nil {
		return nil, errors.Wrapf(ErrSolve, "simplex: %v", err)
	}

	x := make([]float64, n)
	floats.SubTo(x, xStd[:n], xStd[n:2*n])
	return &Solution{
		X:         x,
		Objective: floats.Dot(p.Objective, x),
		Slack:     p.Slack(x),
	}, nil
}
