// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// DualObjective evaluates the MKL dual objective of a trained machine.
//
// For each kernel 𝐒ₖ = ∑ᵢ∑ⱼ 𝛂ᵢ𝛂ⱼ𝐊ₖ(svᵢ,svⱼ). The kernels combine as
//   - p = 1 : 𝚖𝚊𝚡ₖ 𝐒ₖ
//   - p > 1 : (∑ 𝐒ₖ^(p/(p-1)))^((p-1)/p)
//
// and the result is -(-½ combined + ∑ 𝛂ᵢ𝐲(svᵢ)).
// labels is indexed by example, alphas and sv by support vector.
func DualObjective(p float64, alphas []float64, sv []int, labels []float64, kernels []Subkernel) (float64, error) {

	switch {
	case !(p >= 1) || math.IsInf(p, 1):
		return 0, errors.Wrapf(ErrConfig, "norm %g not in [1,∞)", p)
	case len(alphas) != len(sv):
		return 0, errors.Wrapf(ErrInvariant, "%d alphas for %d support vectors", len(alphas), len(sv))
	case len(kernels) == 0:
		return 0, errors.Wrap(ErrInvariant, "no subkernels")
	}
	for _, ii := range sv {
		if ii < 0 || ii >= len(labels) {
			return 0, errors.Wrapf(ErrInvariant, "support vector %d has no label", ii)
		}
	}

	combined := 0.0
	for _, kn := range kernels {
		var sum float64
		if g, ok := kn.(Gram); ok && len(sv) > 0 {
			sum = g.quadForm(alphas, sv)
		} else {
			for i, ii := range sv {
				for j, jj := range sv {
					sum += alphas[i] * alphas[j] * kn.Kernel(ii, jj)
				}
			}
		}
		if p == 1 {
			combined = math.Max(combined, sum)
		} else {
			combined += math.Pow(sum, p/(p-1))
		}
	}

	if p == 1 {
		combined *= -0.5
	} else {
		combined = -0.5 * math.Pow(combined, (p-1)/p)
	}

	y := make([]float64, len(sv))
	for i, ii := range sv {
		y[i] = labels[ii]
	}
	return -(combined + floats.Dot(alphas, y)), nil
}
