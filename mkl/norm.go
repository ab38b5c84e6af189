// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Norm returns (∑ |𝐯ᵢ|ᵖ)^(1/p).
func Norm(v []float64, p float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, p)
}

// Project scales 𝐯 onto the unit sphere of the p-norm and clamps entries above 1.
// When the norm is zero or not finite 𝐯 is left untouched and false is returned.
func Project(v []float64, p float64) bool {
	z := Norm(v, p)
	if z == 0 || math.IsNaN(z) || math.IsInf(z, 0) {
		return false
	}
	floats.Scale(1/z, v)
	clampUnit(v)
	return true
}

// clampUnit caps every entry at 1.
func clampUnit(v []float64) {
	for i, b := range v {
		if b > 1 {
			v[i] = 1
		}
	}
}

// inUnitBox reports the first entry outside [0,1], or -1.
func inUnitBox(v []float64) int {
	for i, b := range v {
		if !(b >= 0 && b <= 1) {
			return i
		}
	}
	return -1
}
