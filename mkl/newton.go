// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"math"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

const (
	epsBeta   = 1e-32 // floor of weights
	epsGamma  = 1e-12 // floor of 𝛄 and normalization tolerance
	epsWsq    = 1e-12 // tolerated negative contribution
	epsNewt   = 1e-4  // sufficient decrease factor
	epsStep   = 1e-9  // smallest line search step
	newtRound = 3     // Newton rounds per call
	hessRidge = 1e-6  // ridge of the log-space direction
)

// Newton minimizes ∑ 𝐰ᵢ𝛃ᵢ⁰²/𝛃ᵢ over the unit p-sphere with a few diagonal Newton steps.
//
// The direction per kernel is 𝐝ᵢ = 𝐭₁/𝐭₂ where
//   - 𝐭₁ = 𝚖𝚊𝚡[0, 𝐡ᵢ𝛃ᵢ - p𝛄𝛃ᵢᵖ⁺²]
//   - 𝐭₂ = 2𝐡ᵢ + p(p-1)𝛄𝛃ᵢᵖ⁺¹
//   - 𝐡ᵢ = 𝐰ᵢ𝛃ᵢ⁰² for nonnegative 𝐰ᵢ and 0 otherwise
//
// A backtracking search halves the step until the objective decreases sufficiently.
// When no step above epsStep is accepted the remaining rounds are skipped.
type Newton struct {
	Norm float64
	// LogSpace moves 𝛃ᵢ𝚎𝚡𝚙(α𝐝ᵢ) with the damped direction 𝐭₁/(𝐭₁ + 𝐭₂𝛃ᵢ + ridge).
	LogSpace bool
}

func (Newton) Name() string { return "newton" }

func (nt Newton) Solve(oldBeta, sumw []float64, suma float64) (*Outcome, error) {

	p, k := nt.Norm, len(oldBeta)
	if len(sumw) != k {
		return nil, errors.Wrapf(ErrInvariant, "%d contributions for %d kernels", len(sumw), k)
	}
	if !(p > 1) {
		return nil, errors.Wrapf(ErrConfig, "newton: norm %g must greater than 1", p)
	}

	beta := make([]float64, k)
	copy(beta, oldBeta)
	for i, b := range beta {
		if !(b >= epsBeta) {
			beta[i] = epsBeta
		}
	}
	if i := inUnitBox(beta); i >= 0 {
		return nil, errors.Wrapf(ErrInvariant, "newton: old beta[%d] = %g", i, beta[i])
	}
	if z := Norm(beta, p); math.Abs(1/z-1) > epsGamma {
		glog.Warningf("newton: old beta not normalized (diff=%e), forcing normalization", 1/z-1)
		Project(beta, p)
	}

	// 𝛄 = (∑ (𝐰ᵢ𝛃ᵢ²/p)ʳ)^(1/r) / p with r = p/(p-1)
	r := p / (p - 1)
	gamma := 0.0
	for i, w := range sumw {
		if !(w >= 0) {
			if !(w >= -epsWsq) {
				glog.Warningf("newton: sumw[%d] = %e treated as 0", i, w)
			}
			continue
		}
		gamma += math.Pow(w*beta[i]*beta[i]/p, r)
	}
	gamma = math.Pow(gamma, 1/r) / p
	if gamma < -1e-9 || math.IsNaN(gamma) {
		return nil, errors.Wrapf(ErrInvariant, "newton: gamma = %g", gamma)
	}
	if !(gamma > epsGamma) {
		glog.Warningf("newton: %v, bad gamma %e set to %e", ErrDegenerate, gamma, epsGamma)
		gamma = epsGamma
	}

	obj := 0.0
	for i, b := range beta {
		obj += b * sumw[i]
	}
	if !(obj >= 0) {
		glog.Warningf("newton: negative objective %e", obj)
	}

	dir := make([]float64, k)
	trial := make([]float64, k)
	var trace []float64

	gqq1 := p * (p - 1) * gamma
	for round := 0; round < newtRound; round++ {

		for i, b := range beta {
			h := 0.0
			if sumw[i] >= 0 {
				h = sumw[i] * oldBeta[i] * oldBeta[i]
			}
			t1 := math.Max(h*b-p*gamma*math.Pow(b, p+2), 0)
			t2 := 2*h + gqq1*math.Pow(b, p+1)
			switch {
			case nt.LogSpace:
				dir[i] = t1 / (t1 + t2*b + hessRidge)
			case t1 == 0:
				dir[i] = 0
			default:
				dir[i] = t1 / t2
			}
			if math.IsNaN(dir[i]) || math.IsInf(dir[i], 0) {
				return nil, errors.Wrapf(ErrInvariant, "newton: direction[%d] = %g", i, dir[i])
			}
		}

		step := 1.0
		for step >= epsStep {

			for !nt.move(beta, dir, step, trial) {
				if step /= 2; step < epsStep {
					return nil, errors.Wrap(ErrInvariant, "newton: normalizer vanished for every step")
				}
			}

			newtObj := 0.0
			for i, b := range trial {
				newtObj += sumw[i] * oldBeta[i] * oldBeta[i] / b
			}
			if glog.V(2) {
				glog.Infof("newton: round %d step %.8f obj %e -> %e", round, step, obj, newtObj)
			}
			if newtObj < obj-epsNewt*step*obj {
				copy(beta, trial)
				obj = newtObj
				trace = append(trace, obj)
				break
			}
			step /= 2
		}

		if step < epsStep {
			break
		}
	}

	rho := -suma
	for i, b := range beta {
		rho += sumw[i] * oldBeta[i] * oldBeta[i] / b
	}
	return &Outcome{Beta: beta, Rho: rho, Trace: trace}, nil
}

// move writes the normalized point 𝛃 + α𝐝 into trial.
// It fails when the normalizer is zero so the caller can shorten the step.
func (nt Newton) move(beta, dir []float64, step float64, trial []float64) bool {
	for i, b := range beta {
		if nt.LogSpace {
			trial[i] = b * math.Exp(step*dir[i])
		} else {
			trial[i] = b + step*dir[i]
		}
		if !(trial[i] >= epsBeta) {
			trial[i] = epsBeta
		}
	}
	return Project(trial, nt.Norm)
}
