// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewtonTraceNonIncreasing(t *testing.T) {
	rnd := rand.New(rand.NewSource(3))
	for _, logSpace := range []bool{false, true} {
		for _, p := range []float64{1.5, 2, 3} {
			for trial := 0; trial < 20; trial++ {
				k := 2 + rnd.Intn(6)
				old := randomWeights(rnd, k, p)
				sumw := make([]float64, k)
				for i := range sumw {
					sumw[i] = 0.1 + 5*rnd.Float64()
				}
				out, err := Newton{Norm: p, LogSpace: logSpace}.Solve(old, sumw, 0.3)
				require.NoError(t, err)
				for i := 1; i < len(out.Trace); i++ {
					assert.LessOrEqual(t, out.Trace[i], out.Trace[i-1], "p=%g log=%v", p, logSpace)
				}
				assert.InDelta(t, 1, powSum(out.Beta, p), 1e-9)
				assert.Equal(t, -1, inUnitBox(out.Beta))
			}
		}
	}
}

func TestNewtonObjective(t *testing.T) {
	old := []float64{0.6, 0.8}
	sumw := []float64{3, 1}
	out, err := Newton{Norm: 2}.Solve(old, sumw, 0.5)
	require.NoError(t, err)

	rho := -0.5
	for i, b := range out.Beta {
		rho += sumw[i] * old[i] * old[i] / b
	}
	assert.InDelta(t, rho, out.Rho, 1e-12)
	// the accepted objective never exceeds the one at the old weights
	if n := len(out.Trace); n > 0 {
		assert.InDelta(t, out.Trace[n-1], rho+0.5, 1e-12)
		assert.Less(t, out.Trace[n-1], 3*0.6+1*0.8)
	}
}

func TestNewtonNormalizesInput(t *testing.T) {
	out, err := Newton{Norm: 2}.Solve([]float64{0.3, 0.4}, []float64{1, 2}, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, powSum(out.Beta, 2), 1e-9)

	// a vanished weight is lifted to the floor instead of dividing by zero
	out, err = Newton{Norm: 2}.Solve([]float64{0, 1}, []float64{1, 2}, 0)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(out.Rho))
}

func TestNewtonNegativeContribution(t *testing.T) {
	out, err := Newton{Norm: 2}.Solve([]float64{0.6, 0.8}, []float64{-1e-3, 2}, 0)
	require.NoError(t, err)
	assert.Equal(t, -1, inUnitBox(out.Beta))
}

func TestNewtonInvariants(t *testing.T) {
	_, err := Newton{Norm: 2}.Solve([]float64{1.5, 0.2}, []float64{1, 1}, 0)
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = Newton{Norm: 2}.Solve([]float64{0.6, 0.8}, []float64{1}, 0)
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = Newton{Norm: 1}.Solve([]float64{0.5, 0.5}, []float64{1, 1}, 0)
	assert.ErrorIs(t, err, ErrConfig)
}
