// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// lsei solves 𝚖𝚒𝚗‖ 𝐄𝐱 - 𝐟 ‖₂ subject to 𝐂𝐱 = 𝐝 and 𝐆𝐱 ≥ 𝐡 (Lawson & Hanson, Chapters 20 and 23).
//
// Householder transformations 𝐊 triangularize 𝐂 so that
//
//	⎡ 𝐂 ⎤ 𝐊 = ⎡ 𝐂߬₁  ೦  ⎤    𝐱 = 𝐊⎡ 𝐲₁ ⎤
//	⎥ 𝐄 ⎥     ⎥ 𝐄߬₁  𝐄߬₂ ⎥        ⎣ 𝐲₂ ⎦
//	⎣ 𝐆 ⎦     ⎣ 𝐆߬₁  𝐆߬₂ ⎦
//
// 𝐲₁ comes from the triangular system 𝐂߬₁𝐲₁ = 𝐝 and 𝐲₂ from the reduced problem
// 𝚖𝚒𝚗‖ 𝐄߬₂𝐲₂ - (𝐟 - 𝐄߬₁𝐲₁) ‖₂ subject to 𝐆߬₂𝐲₂ ≥ 𝐡 - 𝐆߬₁𝐲₁, which is an LSI
// when mg > 0 and a plain least squares otherwise.
//
// On success w[:mc] holds the equality multipliers 𝛍 = (𝐂ᵀ)⁻¹[𝐄ᵀ(𝐄𝐱 - 𝐟) - 𝐆ᵀ𝛌]
// followed by the inequality multipliers 𝛌 of the LDP.
// c, d, e, f, g and h are column-major and overwritten.
func lsei(
	c, d []float64, // mc × n, leading dimension lc
	e, f []float64, // me × n, leading dimension le
	g, h []float64, // mg × n, leading dimension lg
	lc, mc, le, me, lg, mg, n int,
	x []float64,
	// 2mc + me + (me+mg)(n-mc) + (n-mc+1)(mg+2) + 2mg
	w []float64,
	// max(mg, min(me, n-mc))
	jw []int,
	maxIterLs int,
) (norm float64, mode sqpMode) {

	if n < 1 || mc > n {
		return math.NaN(), BadArgument
	}

	if n > len(x) || mc > len(x) ||
		mc < 0 || mc > len(c) || mc > len(d) ||
		me < 0 || me > len(e) || me > len(f) ||
		mg < 0 || mg > len(g) || mg > len(h) {
		panic("bound check error")
	}

	l := n - mc
	// w = [ 𝛍 | lsi scratch (𝛌 first) | pivots of 𝐊 | 𝐄߬₂ | 𝐟 - 𝐄߬₁𝐲₁ | 𝐆߬₂ ]
	iw := mc
	ws := w[iw : iw+(l+1)*(mg+2)+2*mg]
	iw += len(ws)
	wp := w[iw : iw+mc]
	iw += len(wp)
	we := w[iw : iw+me*l]
	iw += len(we)
	wf := w[iw : iw+me]
	iw += len(wf)
	wg := w[iw : iw+mg*l]

	if mc > len(wp) || me > len(wf) {
		panic("bound check error")
	}

	// 𝐂𝐊 = [𝐂߬₁ ೦], 𝐄𝐊 = [𝐄߬₁ 𝐄߬₂], 𝐆𝐊 = [𝐆߬₁ 𝐆߬₂]
	for i := 0; i < mc; i++ {
		j := min(i+1, lc-1)
		wp[i] = h1(i, i+1, n, c[i:], lc)
		h2(i, i+1, n, c[i:], lc, wp[i], c[j:], lc, 1, mc-i-1)
		h2(i, i+1, n, c[i:], lc, wp[i], e, le, 1, me)
		h2(i, i+1, n, c[i:], lc, wp[i], g, lg, 1, mg)
	}

	// 𝐂߬₁𝐲₁ = 𝐝
	for i := 0; i < mc; i++ {
		diag := c[i+lc*i]
		if math.Abs(diag) < eps {
			return math.NaN(), LSEISingularC
		}
		x[i] = (d[i] - ddot(i, c[i:], lc, x, 1)) / diag
	}

	dzero(ws[:mg])

	if mc < n {
		for i := 0; i < me; i++ {
			wf[i] = f[i] - ddot(mc, e[i:], le, x, 1)
		}

		if l > 0 {
			if me > len(we) || mg > len(wg) {
				panic("bound check error")
			}
			for i := 0; i < me; i++ {
				dcopy(l, e[i+le*mc:], le, we[i:], me)
			}
			for i := 0; i < mg; i++ {
				dcopy(l, g[i+lg*mc:], lg, wg[i:], mg)
			}
		}

		if mg > 0 {
			for i := 0; i < mg; i++ {
				h[i] -= ddot(mc, g[i:], lg, x, 1)
			}
			norm, mode = lsi(we, wf, wg, h, me, me, mg, mg, l, x[mc:n], ws, jw, maxIterLs)
			if mc == 0 {
				// no equality multipliers to recover
				return
			}
			if mode != HasSolution {
				return math.NaN(), mode
			}
			t := dnrm2(mc, x, 1)
			norm = math.Sqrt(norm*norm + t*t)
		} else {
			var full bool
			if norm, full = lstsq(we, wf, me, l, x[mc:n]); !full {
				return norm, LSEIRankDefect
			}
		}
	}
	// multipliers from 𝐄ᵀ(𝐄𝐱 - 𝐟) - 𝐂ᵀ𝛍 - 𝐆ᵀ𝛌 = 0
	for i := 0; i < me; i++ {
		f[i] = ddot(n, e[i:], le, x, 1) - f[i]
	}
	for i := 0; i < mc; i++ {
		d[i] = ddot(me, e[i*le:], 1, f, 1) -
			ddot(mg, g[i*lg:], 1, ws[:mg], 1)
	}
	for i := mc - 1; i >= 0; i-- { // 𝐱 = 𝐊𝐲
		h2(i, i+1, n, c[i:], lc, wp[i], x, 1, 1, 1)
	}
	for i := mc - 1; i >= 0; i-- {
		j := min(i+1, lc-1)
		w[i] = (d[i] - ddot(mc-i-1, c[j+lc*i:], 1, w[j:], 1)) / c[i+lc*i]
	}
	mode = HasSolution
	return
}

// lsi solves 𝚖𝚒𝚗‖ 𝐄𝐱 - 𝐟 ‖₂ subject to 𝐆𝐱 ≥ 𝐡 for 𝐄 of full column rank.
// With the QR factor 𝐐𝐄 = [𝐑:೦] and 𝐐𝐟 = [𝐟߫₁:𝐟߫₂] the substitution 𝐳 = 𝐑𝐱 - 𝐟߫₁ turns it into the LDP
// 𝚖𝚒𝚗‖ 𝐳 ‖₂ subject to 𝐆𝐑⁻¹𝐳 ≥ 𝐡 - 𝐆𝐑⁻¹𝐟߫₁, and the residual norm is (‖ 𝐳 ‖₂² + ‖ 𝐟߫₂ ‖₂²)¹ᐟ².
func lsi(
	e, f []float64, // me × n, leading dimension le
	g, h []float64, // mg × n, leading dimension lg
	le, me, lg, mg, n int,
	x []float64,
	// (n+1)(mg+2) + 2mg
	w []float64,
	jw []int,
	maxIterLs int) (xnorm float64, mode sqpMode) {

	if n < 1 {
		return 0, BadArgument
	}

	// 𝐐𝐄 = 𝐑, 𝐐𝐟 = [𝐟߫₁:𝐟߫₂]
	for i := 0; i < n; i++ {
		j := min(i+1, n-1)
		t := h1(i, i+1, me, e[i*le:], 1)
		h2(i, i+1, me, e[i*le:], 1, t, e[j*le:], 1, le, n-i-1)
		h2(i, i+1, me, e[i*le:], 1, t, f, 1, 1, 1)
	}

	// 𝐆 ← 𝐆𝐑⁻¹, 𝐡 ← 𝐡 - 𝐆𝐑⁻¹𝐟߫₁
	for i := 0; i < mg; i++ {
		for j := 0; j < n; j++ {
			diag := e[j+le*j]
			if math.Abs(diag) < eps || math.IsNaN(diag) {
				return math.NaN(), LSISingularE
			}
			g[i+lg*j] = (g[i+lg*j] - ddot(j, g[i:], lg, e[j*le:], 1)) / diag
		}
		h[i] -= ddot(n, g[i:], lg, f, 1)
	}

	if xnorm, mode = ldp(mg, n, g, lg, h, x, w, jw, maxIterLs); mode == HasSolution {
		// 𝐱 = 𝐑⁻¹(𝐳 + 𝐟߫₁)
		daxpy(n, one, f, 1, x, 1)
		for i := n - 1; i >= 0; i-- {
			j := min(i+1, n-1)
			x[i] = (x[i] - ddot(n-i-1, e[i+le*j:], le, x[j:], 1)) / e[i+le*i]
		}
		j := min(n, me-1)
		t := dnrm2(me-n, f[j:], 1)
		xnorm = math.Sqrt(xnorm*xnorm + t*t)
	}
	return
}

// lstsq writes the minimal length solution of 𝐀𝐲 ≅ 𝐛 into y using a truncated SVD,
// where 𝐀 is stored column-wise in a with leading dimension m.
// It reports the residual norm and whether 𝐀 has full column rank.
func lstsq(a, b []float64, m, n int, y []float64) (float64, bool) {
	if m == 0 {
		dzero(y[:n])
		return 0, false
	}
	A := mat.NewDense(m, n, nil)
	for j := 0; j < n; j++ {
		for i := 0; i < m; i++ {
			A.Set(i, j, a[i+m*j])
		}
	}
	var svd mat.SVD
	if !svd.Factorize(A, mat.SVDThin) {
		return math.NaN(), false
	}
	rhs := mat.NewVecDense(m, b[:m])
	rank := svd.Rank(sqrtEps)
	if rank == 0 {
		dzero(y[:n])
		return dnrm2(m, b, 1), false
	}
	var sol, res mat.VecDense
	svd.SolveVecTo(&sol, rhs, rank)
	for i := 0; i < n; i++ {
		y[i] = sol.AtVec(i)
	}
	res.MulVec(A, &sol)
	res.SubVec(&res, rhs)
	return mat.Norm(&res, 2), rank == n
}
