// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Outcome is a recomputed weight vector together with the dual bound 𝛒.
type Outcome struct {
	Beta       []float64
	Rho        float64
	InnerIters int       // q-norm refinements of the cutting-plane program
	Trace      []float64 // accepted Newton objectives
}

// BetaSolver recomputes kernel weights from one set of dual contributions.
// oldBeta and sumw are read only and never retained.
type BetaSolver interface {
	Name() string
	Solve(oldBeta, sumw []float64, suma float64) (*Outcome, error)
}

const analyticRegul = 0.01 // fraction of the root mean squared deviation

// Analytic is the closed form update
//
//	𝛃ᵢ ∝ (𝐰ᵢ𝛃ᵢ⁰²/p)^(1/(p+1))
//
// regularized towards uniform weights by a small fraction of the deviation from 𝛃⁰.
type Analytic struct {
	Norm float64
}

func (Analytic) Name() string { return "analytic" }

func (a Analytic) Solve(oldBeta, sumw []float64, suma float64) (*Outcome, error) {

	p, k := a.Norm, len(oldBeta)
	if len(sumw) != k {
		return nil, errors.Wrapf(ErrInvariant, "%d contributions for %d kernels", len(sumw), k)
	}

	beta := make([]float64, k)
	for i, w := range sumw {
		if w >= 0 && oldBeta[i] >= 0 {
			beta[i] = math.Pow(w*oldBeta[i]*oldBeta[i]/p, 1/(p+1))
		}
	}

	if !Project(beta, p) {
		glog.Warningf("analytic: %v, weights vanished before regularization", ErrDegenerate)
	}

	var r float64
	for i, b := range beta {
		if b < 0 {
			return nil, errors.Wrapf(ErrInvariant, "analytic: beta[%d] = %g", i, b)
		}
		d := oldBeta[i] - b
		r += d * d
	}
	r = math.Sqrt(r/p) * analyticRegul
	for i := range beta {
		beta[i] += r
	}

	if !Project(beta, p) {
		return nil, errors.Wrap(ErrInvariant, "analytic: weights vanished after regularization")
	}

	obj := -suma
	for i, b := range beta {
		if num := sumw[i] * oldBeta[i] * oldBeta[i]; num != 0 {
			obj += num / b
		}
	}
	return &Outcome{Beta: beta, Rho: obj}, nil
}
