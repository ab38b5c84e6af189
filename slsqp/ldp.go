// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

// ldp solves the least distance program 𝚖𝚒𝚗‖ 𝐱 ‖₂ subject to 𝐆𝐱 ≥ 𝐡 through the dual
// non-negative least squares 𝚖𝚒𝚗‖ [𝐆:𝐡]ᵀ𝐮 - 𝐞ₙ₊₁ ‖₂, 𝐮 ≥ 0 (Lawson & Hanson, Algorithm 23.27).
// With the residual 𝐫 the solution is 𝐱 = 𝐆ᵀ𝐮/(-𝐫ₙ₊₁) and the multipliers 𝐮/(-𝐫ₙ₊₁)
// are left in w[:m]. A vanishing residual means the constraints are incompatible.
func ldp(
	m, n int,
	g []float64, mdg int,
	h []float64,
	x []float64,
	// (n+1)×(m+2)+2m
	w []float64,
	// m
	jw []int,
	maxIter int,
) (xnorm float64, mode sqpMode) {

	if n <= 0 {
		return math.NaN(), BadArgument
	}
	if m <= 0 {
		return 0, OK
	}

	if m > mdg || mdg*n > len(g) || m > len(h) || n > len(x) || (n+1)*(m+2)+2*m > len(w) || m > len(jw) {
		panic("bound check error")
	}

	// w = [ 𝐀 (n+1)×m | 𝐛 | 𝐳 | 𝐮 | 𝐰 ]
	iw := 0
	a := w[iw : iw+m*(n+1)]
	iw += len(a)
	b := w[iw : iw+(n+1)]
	iw += len(b)
	z := w[iw : iw+(n+1)]
	iw += len(z)
	u := w[iw : iw+m]
	iw += len(u)
	dv := w[iw : iw+m]

	for j := 0; j < m; j++ {
		dcopy(n, g[j:], mdg, a[j*(n+1):], 1)
		a[j*(n+1)+n] = h[j]
	}
	dzero(b[:n])
	b[n] = one

	var rnorm float64
	rnorm, mode = nnls(n+1, m, a, n+1, b, u, dv, z, jw, maxIter)

	var fac float64
	if mode == HasSolution {
		fac = one - ddot(m, h, 1, u, 1) // -𝐫ₙ₊₁
		if rnorm <= zero || math.IsNaN(fac) || fac < eps {
			mode = ConsIncompatible
		}
	}
	if mode != HasSolution {
		return math.NaN(), mode
	}

	fac = one / fac
	for j := 0; j < n; j++ {
		x[j] = ddot(m, g[mdg*j:], 1, u, 1) * fac
	}
	for j := 0; j < m; j++ {
		w[j] = u[j] * fac
	}

	xnorm = dnrm2(n, x, 1)
	return
}
