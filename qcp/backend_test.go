// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package qcp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendLinear(t *testing.T) {
	for _, b := range []Backend{Simplex{}, SQP{}} {
		t.Run(b.Name(), func(t *testing.T) {
			p := twoVarLP()
			sol, err := b.Solve(p, []float64{0, 0})
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{1.6, 1.2}, sol.X, 1e-6)
			assert.InDelta(t, -2.8, sol.Objective, 1e-6)
			require.Len(t, sol.Slack, 2)
			for _, s := range sol.Slack {
				assert.InDelta(t, 0, s, 1e-6)
			}
		})
	}
}

func TestBackendEquality(t *testing.T) {
	for _, b := range []Backend{Simplex{}, SQP{}} {
		t.Run(b.Name(), func(t *testing.T) {
			p := NewProgram(3)
			p.Objective = []float64{1, 2, 3}
			for i := range p.Lower {
				p.Lower[i], p.Upper[i] = 0, 1
			}
			p.AddRow(Row{Coef: []float64{1, 1, 1}, Sense: Equal, RHS: 1})
			// x₀ ≤ 0.25 forces the remaining mass onto x₁
			p.AddRow(Row{Coef: []float64{1, 0, 0}, RHS: 0.25})
			sol, err := b.Solve(p, []float64{1. / 3, 1. / 3, 1. / 3})
			require.NoError(t, err)
			assert.InDeltaSlice(t, []float64{0.25, 0.75, 0}, sol.X, 1e-6)
			assert.InDelta(t, 1.75, sol.Objective, 1e-6)
		})
	}
}

func TestSimplexRejects(t *testing.T) {
	p := twoVarLP()
	p.Quad = []Quadratic{{Lin: make([]float64, 2), Diag: []float64{1, 1}, RHS: 1}}
	_, err := Simplex{}.Solve(p, nil)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.False(t, Simplex{}.Quadratic())

	p = twoVarLP()
	p.AddRow(Row{Coef: []float64{1, 1}, RHS: -1})
	_, err = Simplex{}.Solve(p, nil)
	assert.ErrorIs(t, err, ErrSolve)

	p = twoVarLP()
	p.Lower = nil
	_, err = Simplex{}.Solve(p, nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestSQPDisc(t *testing.T) {
	// max x + 2y on the unit disc, the far cut x + y ≤ 10 stays inactive
	p := NewProgram(2)
	p.Objective = []float64{-1, -2}
	p.Lower = []float64{0, 0}
	p.Upper = []float64{1, 1}
	p.Quad = []Quadratic{{Lin: make([]float64, 2), Diag: []float64{1, 1}, RHS: 1}}
	p.AddRow(Row{Coef: []float64{1, 1}, RHS: 10})

	b := SQP{}
	assert.True(t, b.Quadratic())
	sol, err := b.Solve(p, []float64{0.1, 0.1})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1 / math.Sqrt(5), 2 / math.Sqrt(5)}, sol.X, 1e-6)
	assert.InDelta(t, -math.Sqrt(5), sol.Objective, 1e-6)
	require.Len(t, sol.Dual, 1)
	assert.InDelta(t, 0, sol.Dual[0], 1e-8)
	assert.Greater(t, sol.Slack[0], 1.)
}

func TestSQPDual(t *testing.T) {
	p := twoVarLP()
	sol, err := SQP{}.Solve(p, []float64{0, 0})
	require.NoError(t, err)
	require.Len(t, sol.Dual, 2)
	// ∇f = -(λ₀𝐚₀ + λ₁𝐚₁) at the vertex gives λ = (0.4, 0.2)
	assert.InDeltaSlice(t, []float64{0.4, 0.2}, sol.Dual, 1e-5)
}

func TestSQPInfeasible(t *testing.T) {
	p := NewProgram(1)
	p.Objective = []float64{1}
	p.Lower[0], p.Upper[0] = 0, 1
	p.AddRow(Row{Coef: []float64{1}, RHS: -1})
	_, err := SQP{MaxIterations: 50}.Solve(p, nil)
	assert.ErrorIs(t, err, ErrSolve)
}
