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

func TestAnalyticNormalized(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for _, p := range []float64{1, 1.25, 2, 3, 4.5} {
		for trial := 0; trial < 20; trial++ {
			k := 2 + rnd.Intn(8)
			old := randomWeights(rnd, k, p)
			sumw := make([]float64, k)
			for i := range sumw {
				sumw[i] = 10 * rnd.Float64()
			}
			if trial%5 == 0 {
				sumw[0] = 0
			}
			out, err := Analytic{Norm: p}.Solve(old, sumw, rnd.Float64())
			require.NoError(t, err)
			require.Len(t, out.Beta, k)
			assert.InDelta(t, 1, powSum(out.Beta, p), 1e-9, "p=%g", p)
			assert.Equal(t, -1, inUnitBox(out.Beta))
			assert.False(t, math.IsNaN(out.Rho))
		}
	}
}

func TestAnalyticPrefersLargerContribution(t *testing.T) {
	old := []float64{0.5, 0.5}
	out, err := Analytic{Norm: 2}.Solve(old, []float64{3, 1}, 0.5)
	require.NoError(t, err)
	assert.Greater(t, out.Beta[0], out.Beta[1])
	assert.InDelta(t, 1, powSum(out.Beta, 2), 1e-9)

	rho := -0.5 + 3*0.25/out.Beta[0] + 1*0.25/out.Beta[1]
	assert.InDelta(t, rho, out.Rho, 1e-12)
}

func TestAnalyticNegativeContribution(t *testing.T) {
	// kernels with a negative contribution only keep the regularization share
	out, err := Analytic{Norm: 2}.Solve([]float64{0.6, 0.8}, []float64{-1, 2}, 0)
	require.NoError(t, err)
	assert.Greater(t, out.Beta[0], 0.)
	assert.Less(t, out.Beta[0], out.Beta[1])
	assert.InDelta(t, 1, powSum(out.Beta, 2), 1e-9)
}

func TestAnalyticDegenerate(t *testing.T) {
	// all contributions vanish, regularization restores uniform weights
	old := []float64{0.6, 0.8}
	out, err := Analytic{Norm: 2}.Solve(old, []float64{0, 0}, 1)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{math.Sqrt2 / 2, math.Sqrt2 / 2}, out.Beta, 1e-12)
	assert.InDelta(t, -1, out.Rho, 1e-15)

	_, err = Analytic{Norm: 2}.Solve([]float64{0, 0}, []float64{1, 1}, 0)
	assert.ErrorIs(t, err, ErrInvariant)

	_, err = Analytic{Norm: 2}.Solve(old, []float64{1}, 0)
	assert.ErrorIs(t, err, ErrInvariant)
}
