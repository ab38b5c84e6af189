// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// WeightStore holds the subkernel weights of a combined kernel.
type WeightStore interface {
	// NumSubkernels returns the number of subkernels.
	NumSubkernels() int
	// SubkernelWeights returns the current weights. Callers must not modify them.
	SubkernelWeights() []float64
	// SetSubkernelWeights replaces the weights and takes ownership of beta.
	SetSubkernelWeights(beta []float64)
}

// CombinedWeights is an in-memory WeightStore.
type CombinedWeights struct {
	beta []float64
}

// NewCombinedWeights starts with k equal weights of unit p-norm.
func NewCombinedWeights(k int, p float64) *CombinedWeights {
	beta := make([]float64, k)
	for i := range beta {
		beta[i] = math.Pow(float64(k), -1/p)
	}
	return &CombinedWeights{beta: beta}
}

// WeightsOf wraps explicit initial weights.
func WeightsOf(beta ...float64) *CombinedWeights {
	return &CombinedWeights{beta: beta}
}

func (w *CombinedWeights) NumSubkernels() int { return len(w.beta) }

func (w *CombinedWeights) SubkernelWeights() []float64 { return w.beta }

func (w *CombinedWeights) SetSubkernelWeights(beta []float64) { w.beta = beta }

// Subkernel evaluates one kernel of the combination on example indices.
type Subkernel interface {
	Kernel(i, j int) float64
}

// KernelFunc adapts a plain function as a Subkernel.
type KernelFunc func(i, j int) float64

func (f KernelFunc) Kernel(i, j int) float64 { return f(i, j) }

// Gram is a precomputed kernel matrix.
type Gram struct {
	mat.Symmetric
}

func (g Gram) Kernel(i, j int) float64 { return g.At(i, j) }

// quadForm returns 𝛂ᵀ𝐊ₛ𝛂 where 𝐊ₛ is the block of the support vectors.
func (g Gram) quadForm(alphas []float64, sv []int) float64 {
	n := len(sv)
	block := mat.NewSymDense(n, nil)
	for i, ii := range sv {
		for j := i; j < n; j++ {
			block.SetSym(i, j, g.At(ii, sv[j]))
		}
	}
	a := mat.NewVecDense(n, alphas)
	return mat.Inner(a, block, a)
}
