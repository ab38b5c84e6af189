// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

var sqrtEps = math.Sqrt(eps)

// h1 builds the Householder transformation 𝐐 = 𝐈 - b⁻¹𝐮𝐮ᵀ (b = s·uₚ) that maps the
// elements l..m-1 of v onto its pivot p, with v strided by ive.
// On return v[p] holds s and the remaining elements hold 𝐮; uₚ is returned.
// The call is an identity when p ≥ l or l ≥ m.
func h1(p, l, m int, v []float64, ive int) (up float64) {
	if p < 0 || p >= l || l >= m {
		return
	}
	vp := &v[p*ive]

	scale := math.Abs(*vp)
	for i := l; i < m; i++ {
		scale = math.Max(scale, math.Abs(v[i*ive]))
	}
	if scale <= zero {
		return
	}

	sum := (*vp / scale) * (*vp / scale)
	for i := l; i < m; i++ {
		r := v[i*ive] / scale
		sum += r * r
	}

	// s takes the sign opposite to the pivot
	s := scale * math.Sqrt(sum)
	if *vp > zero {
		s = -s
	}
	up = *vp - s
	*vp = s
	return
}

// h2 applies the transformation built by h1 to ncv vectors stored in c.
// Elements of one vector are ice apart, consecutive vectors start icv apart.
func h2(p, l, m int,
	u []float64,
	iue int,
	up float64,
	c []float64,
	ice, icv, ncv int) {

	if p < 0 || p >= l || l >= m || ncv <= 0 {
		return
	}

	b := u[p*iue] * up
	if b >= zero {
		return
	}
	b = one / b

	for k := 0; k < ncv; k++ {
		j := p*ice + k*icv
		sm := c[j] * up
		for i := l; i < m; i++ {
			sm += c[j+(i-p)*ice] * u[i*iue]
		}
		if sm == zero {
			continue
		}
		sm *= b
		c[j] += sm * up
		for i := l; i < m; i++ {
			c[j+(i-p)*ice] += sm * u[i*iue]
		}
	}
}

// g1 computes the Givens rotation that maps (a, b) onto (sig, 0) with sig ≥ 0.
func g1(a, b float64) (c, s, sig float64) {
	xa, xb := math.Abs(a), math.Abs(b)
	switch {
	case xa > xb:
		r := b / a
		q := math.Sqrt(1 + r*r)
		c = math.Copysign(1/q, a)
		s = c * r
		sig = xa * q
	case xb > 0:
		r := a / b
		q := math.Sqrt(1 + r*r)
		s = math.Copysign(1/q, b)
		c = s * r
		sig = xb * q
	default:
		s = 1
	}
	return
}

// g2 rotates (x, y) with the pair computed by g1.
func g2(c, s float64, x, y float64) (float64, float64) {
	return c*x + s*y, -s*x + c*y
}

// compositeT updates the 𝐋𝐃𝐋ᵀ factor stored row-wise in a with the rank one
// modification σ𝐳𝐳ᵀ, keeping 𝐃 positive. z is overwritten and w is scratch for σ < 0.
//
// See Fletcher & Powell, 'On the modification of LDLᵀ factorizations', 1974 (composite t-method).
func compositeT(n uint, a, z []float64, sigma float64, w []float64) {
	if sigma == zero {
		return
	}
	if n == 0 || n > uint(len(z)) {
		panic("bound check error")
	}

	t := one / sigma
	ij := uint(0)

	if sigma < zero {
		if n > uint(len(w)) {
			panic("bound check error")
		}
		// forward solve 𝐋𝐯 = 𝐳 accumulating tᵢ₊₁ = tᵢ + vᵢ²/dᵢ
		copy(w, z)
		for i := uint(0); i < n; i++ {
			v := w[i]
			t += v * v / a[ij]
			for j := i + 1; j < n; j++ {
				ij++
				w[j] -= v * a[ij]
			}
			ij++
		}
		if t >= zero {
			t = eps / sigma
		}
		// w now holds the t sequence, walked backwards
		for j := int(n) - 1; j >= 0; j-- {
			u := w[j]
			w[j] = t
			ij -= n - uint(j)
			t -= u * u / a[ij]
		}
	}

	ij = 0
	for i := uint(0); i < n; i++ {
		v := z[i]
		delta := v / a[ij]

		var tp float64
		if sigma < zero {
			tp = w[i]
		} else {
			tp = t + delta*v
		}

		alpha := tp / t
		a[ij] *= alpha
		if i == n-1 {
			break
		}

		beta := delta / tp
		if alpha > four {
			gamma := t / tp
			for j := i + 1; j < n; j++ {
				ij++
				u := a[ij]
				a[ij] = gamma*u + beta*z[j]
				z[j] -= v * u
			}
		} else {
			for j := i + 1; j < n; j++ {
				ij++
				z[j] -= v * a[ij]
				a[ij] += beta * z[j]
			}
		}
		ij++
		t = tp
	}
}
