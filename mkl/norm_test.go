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

// powSum returns ∑ 𝐯ᵢᵖ.
func powSum(v []float64, p float64) (s float64) {
	for _, x := range v {
		s += math.Pow(x, p)
	}
	return
}

// randomWeights draws k positive weights of unit p-norm.
func randomWeights(rnd *rand.Rand, k int, p float64) []float64 {
	v := make([]float64, k)
	for i := range v {
		v[i] = 0.05 + rnd.Float64()
	}
	Project(v, p)
	return v
}

func TestProjectRoundTrip(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for _, p := range []float64{1, 1.5, 2, 3, 6} {
		v := randomWeights(rnd, 5, p)
		require.InDelta(t, 1, powSum(v, p), 1e-12)
		u := append([]float64(nil), v...)
		require.True(t, Project(u, p))
		assert.InDeltaSlice(t, v, u, 1e-12, "p=%g", p)
	}
}

func TestProjectDegenerate(t *testing.T) {
	v := []float64{0, 0, 0}
	assert.False(t, Project(v, 2))
	assert.Equal(t, []float64{0, 0, 0}, v)

	v = []float64{math.Inf(1), 1}
	assert.False(t, Project(v, 2))
	assert.True(t, math.IsInf(v[0], 1))

	assert.Zero(t, Norm(nil, 2))
}

func TestProjectScale(t *testing.T) {
	v := []float64{3, 4}
	require.True(t, Project(v, 2))
	assert.InDeltaSlice(t, []float64{0.6, 0.8}, v, 1e-15)

	v = []float64{1, 3}
	require.True(t, Project(v, 1))
	assert.InDeltaSlice(t, []float64{0.25, 0.75}, v, 1e-15)
}

func TestUnitBox(t *testing.T) {
	assert.Equal(t, -1, inUnitBox([]float64{0, 0.5, 1}))
	assert.Equal(t, 1, inUnitBox([]float64{0, 1.5, 1}))
	assert.Equal(t, 0, inUnitBox([]float64{math.NaN()}))

	v := []float64{0.2, 1 + 1e-12}
	clampUnit(v)
	assert.Equal(t, []float64{0.2, 1}, v)
}
