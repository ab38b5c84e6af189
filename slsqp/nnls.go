// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

// nnls solves 𝚖𝚒𝚗‖ 𝐀𝐱 - 𝐛 ‖₂ subject to 𝐱 ≥ 0 with the active-set method of
// Lawson & Hanson (Solving Least Squares Problems, Algorithm 23.10).
//
// Variables are split between the zero set ℤ, held at 0, and the positive set ℙ.
// Each outer round moves the ℤ index with the largest dual 𝐰 = 𝐀ᵀ(𝐛 - 𝐀𝐱) into ℙ,
// and the inner loop interpolates back towards feasibility whenever the
// unconstrained solution on ℙ turns a coefficient non-positive.
//
// 𝐀 is m × n column-major with leading dimension mda. On return a and b hold 𝐐𝐀 and 𝐐𝐛,
// x holds the solution and w the dual vector. z and index are scratch.
func nnls(
	m, n int,
	a []float64, mda int,
	b []float64,
	x []float64,
	w []float64,
	z []float64, index []int,
	maxIter int) (float64, sqpMode) {

	const factor = 0.01

	if m <= 0 || n <= 0 || mda < m ||
		len(a) < mda*n || len(b) < m || len(x) < n || len(w) < n || len(z) < m || len(index) < n {
		return math.NaN(), BadArgument
	}

	if maxIter <= 0 {
		maxIter = 3 * n
	}

	// index[:np] is ℙ, index[z1:] is ℤ
	np, z1 := 0, 0
	index = index[:n]
	for i := range index {
		index[i] = i
	}
	dzero(x[:n])

	iter := 0
	finish := func() (rnorm float64, mode sqpMode) {
		if np < m {
			rnorm = dnrm2(m-np, b[np:], 1)
		} else {
			dzero(w[:n])
		}
		mode = HasSolution
		if iter > maxIter {
			mode = NNLSExceedMaxIter
		}
		return
	}

	for {
		if z1 >= n || np >= m {
			return finish()
		}

		// 𝐱ⱼ = 0 on ℤ so the dual reduces to the transformed 𝐀ᵀ𝐛
		for _, j := range index[z1:] {
			w[j] = ddot(m-np, a[np+mda*j:], 1, b[np:], 1)
		}

		for {
			wmax, izmax := zero, 0
			for i, j := range index[z1:] {
				if w[j] > wmax {
					wmax, izmax = w[j], z1+i
				}
			}
			// Kuhn-Tucker conditions hold
			if wmax <= zero {
				return finish()
			}

			j := index[izmax]
			aj := a[mda*j : mda*j+m : mda*j+m]
			pivot := aj[np]
			up := h1(np, np+1, m, aj, 1)

			// reject a column that is nearly dependent on ℙ or would enter with 𝐱ⱼ ≤ 0
			accept := false
			if unorm := dnrm2(np, aj, 1); math.Abs(aj[np])*factor >= unorm*eps {
				copy(z[:m], b[:m])
				h2(np, np+1, m, aj, 1, up, z, 1, 1, 1)
				accept = z[np]/aj[np] > zero
			}
			if !accept {
				aj[np] = pivot
				w[j] = zero
				continue
			}

			copy(b[:m], z[:m])
			index[izmax] = index[z1]
			index[z1] = j
			z1++
			np++

			for _, jj := range index[z1:] {
				h2(np-1, np, m, aj, 1, up, a[jj*mda:], 1, mda, 1)
			}
			if np < m {
				dzero(aj[np:m])
			}
			w[j] = zero
			break
		}

		for {
			// back substitution on the triangular factor of ℙ
			for ip, jj := np-1, -1; ip >= 0; ip-- {
				if jj >= 0 {
					daxpy(ip+1, -z[ip+1], a[jj*mda:], 1, z, 1)
				}
				jj = index[ip]
				z[ip] /= a[ip+jj*mda]
			}

			if iter++; iter > maxIter {
				return finish()
			}

			// largest step towards 𝐳 keeping ℙ non-negative
			alpha, jj := two, -1
			for ip, l := range index[:np] {
				if z[ip] <= zero {
					if t := -x[l] / (z[ip] - x[l]); alpha > t {
						alpha, jj = t, ip
					}
				}
			}

			if jj < 0 {
				for ip, idx := range index[:np] {
					x[idx] = z[ip]
				}
				break
			}

			for ip, l := range index[:np] {
				x[l] += alpha * (z[ip] - x[l])
			}

			// drop the blocking coefficient back to ℤ and retriangularize with Givens rotations
			i := index[jj]
			x[i] = zero
			for j := jj + 1; j < np; j++ {
				ii := index[j]
				ci := a[ii*mda:]
				index[j-1] = ii
				var cc, ss float64
				cc, ss, ci[j-1] = g1(ci[j-1], ci[j])
				ci[j] = zero
				for l := 0; l < n; l++ {
					if l != ii {
						cl := a[l*mda : l*mda+j+1 : l*mda+j+1]
						cl[j-1], cl[j] = g2(cc, ss, cl[j-1], cl[j])
					}
				}
				b[j-1], b[j] = g2(cc, ss, b[j-1], b[j])
			}
			np--
			z1--
			index[z1] = i

			copy(z[:m], b[:m])
		}
	}
}
