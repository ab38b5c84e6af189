// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
)

// maxResets bounds how often the Hessian may fall back to the identity.
const maxResets = 5

// sqpSolver runs Kraft's sequential least squares programming iteration
// (DFVLR-FB 88-28, 1988) for
//
//	minimize 𝒇(𝐱) subject to 𝒄ⱼ(𝐱) = 0 (j < mₑ), 𝒄ⱼ(𝐱) ≥ 0 (j ≥ mₑ), 𝒍 ≤ 𝐱 ≤ 𝒖.
//
// Each iteration linearizes the constraints around 𝐱ᵏ and solves the quadratic model
// ½𝐝ᵀ𝐁𝐝 + 𝜵𝒇ᵀ𝐝 as the least squares ‖ 𝐃¹ᐟ²𝐋ᵀ𝐝 + 𝐃⁻¹ᐟ²𝐋⁻¹𝜵𝒇 ‖₂ through lsq, where
// 𝐁 = 𝐋𝐃𝐋ᵀ is kept positive definite by the damped BFGS update of Powell.
// An inconsistent linearization is relaxed by a slack 𝛅 ∈ [0,1] penalized by 𝛒.
// The step along 𝐝 is an Armijo backtracking on the L1 merit 𝒇 + ∑𝛒ⱼ‖𝒄ⱼ‖₁ with
// penalties 𝛒ⱼ ← max(½(𝛒ⱼ+|𝛍ⱼ|), |𝛍ⱼ|).
//
// Convergence is declared when the objective change, the step norm and the total
// constraint violation are all within the accuracy.
type sqpSolver struct {
	optimizer *Optimizer
	workspace *Workspace
	location  *sqpLoc
}

// violation is the L1 infeasibility of one constraint value.
func violation(c float64, eq bool) float64 {
	if eq {
		return math.Abs(c)
	}
	return math.Max(-c, zero)
}

// evalLoc fills loc.f and loc.c (evalFunc) or loc.g and loc.a (evalGrad).
// A panicking callback is reported as BadArgument.
func (ss *sqpSolver) evalLoc(what sqpMode) (mode sqpMode) {
	o, loc := ss.optimizer, ss.location
	defer func() {
		if r := recover(); r != nil {
			mode = BadArgument
		}
	}()
	switch what {
	case evalFunc:
		loc.f = o.Object(loc.x, nil)
		for j, cons := range o.EqCons {
			loc.c[j] = cons(loc.x, nil)
		}
		for j, cons := range o.NeqCons {
			loc.c[o.meq+j] = cons(loc.x, nil)
		}
	case evalGrad:
		// constraint normals are rows of the column-major a
		grad, lda := loc.g[:o.n], max(o.m, 1)
		for j, cons := range o.EqCons {
			cons(loc.x, grad)
			dcopy(o.n, grad, 1, loc.a[j:], lda)
		}
		for j, cons := range o.NeqCons {
			cons(loc.x, grad)
			dcopy(o.n, grad, 1, loc.a[o.meq+j:], lda)
		}
		o.Object(loc.x, grad)
	default:
		return BadArgument
	}
	return OK
}

func (ss *sqpSolver) initCtx() (mode sqpMode) {
	if mode = ss.evalLoc(evalFunc); mode != OK {
		return
	}
	if mode = ss.evalLoc(evalGrad); mode != OK {
		return
	}

	ctx := &ss.workspace.sqpCtx
	ctx.acc = ss.optimizer.Stop.Accuracy
	ctx.tol = ten * ctx.acc
	ctx.iter, ctx.reset = 0, 0
	dzero(ctx.s)
	dzero(ctx.mu)
	return ss.resetBFGS()
}

// resetBFGS restarts from 𝐁 = 𝐈. After too many restarts it gives up,
// returning OK only when the relaxed convergence test passes.
func (ss *sqpSolver) resetBFGS() sqpMode {
	ctx := &ss.workspace.sqpCtx
	if ctx.reset++; ctx.reset > maxResets {
		if ss.converged(ss.totalViolation(), ctx.tol) {
			return OK
		}
		return SearchNotDescent
	}
	n := ss.optimizer.n
	l := ctx.l[:(n+1)*n/2]
	dzero(l)
	for i, d := 0, 0; i < n; i++ {
		l[d] = one
		d += n - i
	}
	return OK
}

func (ss *sqpSolver) totalViolation() (sum float64) {
	meq := ss.optimizer.meq
	for j, c := range ss.location.c {
		sum += violation(c, j < meq)
	}
	return
}

// converged applies the stopping tests after a step given the total violation.
func (ss *sqpSolver) converged(vio, tol float64) bool {
	spec, ctx, loc := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx, ss.location
	if vio >= tol || ctx.bad || math.IsNaN(loc.f) {
		return false
	}
	stop, df := spec.Stop, math.Abs(loc.f-ctx.f0)
	switch {
	case df < tol:
		return true
	case dnrm2(spec.n, ctx.s, 1) < tol:
		return true
	case stop.FEvalTolerance >= zero && math.Abs(loc.f) < stop.FEvalTolerance:
		return true
	case stop.FDiffTolerance >= zero && df < stop.FDiffTolerance:
		return true
	case stop.XDiffTolerance >= zero:
		n, dx := spec.n, ctx.u
		dcopy(n, loc.x, 1, dx, 1)
		daxpy(n, -one, ctx.x0, 1, dx, 1)
		return dnrm2(n, dx, 1) < stop.XDiffTolerance
	}
	return false
}

// updateBFGS evaluates the gradients at the accepted point and applies Powell's
// damped update 𝐁 + 𝐪𝐪ᵀ/𝐬ᵀ𝐪 - 𝐁𝐬𝐬ᵀ𝐁/𝐬ᵀ𝐁𝐬 to the 𝐋𝐃𝐋ᵀ factor.
// On entry v holds the Lagrangian gradient of the previous point.
func (ss *sqpSolver) updateBFGS() (mode sqpMode) {
	if mode = ss.evalLoc(evalGrad); mode != OK {
		return
	}

	spec, ctx, loc := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx, ss.location
	m, n, lda := spec.m, spec.n, max(spec.m, 1)
	eta, bs, l, s := ctx.u[:n], ctx.v[:n], ctx.l, ctx.s

	// 𝛈 = 𝜵ℒ(𝐱ᵏ⁺¹) - 𝜵ℒ(𝐱ᵏ)
	for i, g := range loc.g[:n] {
		eta[i] = g - ddot(m, loc.a[i*lda:(i+1)*lda], 1, ctx.r, 1) - bs[i]
	}

	// 𝐁𝐬 = 𝐋(𝐃(𝐋ᵀ𝐬)) with 𝐋 packed column-wise below the diagonal of 𝐃
	for i, k := 0, 0; i < n; i++ {
		k++
		sum := zero
		for _, sj := range s[i+1 : n] {
			sum += l[k] * sj
			k++
		}
		bs[i] = s[i] + sum
	}
	for i, d := 0, 0; i < n; i++ {
		bs[i] *= l[d]
		d += n - i
	}
	for i := n - 1; i >= 0; i-- {
		k, sum := i, zero
		for j, vj := range bs[:i] {
			sum += l[k] * vj
			k += n - 1 - j
		}
		bs[i] += sum
	}

	sEta := ddot(n, s, 1, eta, 1)
	sBs := ddot(n, s, 1, bs, 1)
	if floor := 0.2 * sBs; sEta < floor {
		// 𝐪 = θ𝛈 + (1-θ)𝐁𝐬 with θ = ⅘𝐬ᵀ𝐁𝐬 / (𝐬ᵀ𝐁𝐬 - 𝐬ᵀ𝛈)
		theta := (sBs - floor) / (sBs - sEta)
		sEta = floor
		dscal(n, theta, eta, 1)
		daxpy(n, one-theta, bs, 1, eta, 1)
	}

	if sEta == zero || sBs == zero {
		return ss.resetBFGS()
	}
	compositeT(uint(n), l, eta, one/sEta, nil)
	compositeT(uint(n), l, bs, -one/sBs, ctx.u)
	return OK
}

// mainLoop iterates until convergence or failure and returns the final mode.
func (ss *sqpSolver) mainLoop() (mode sqpMode) {
	loc := ss.location
	ctx := &ss.workspace.sqpCtx
	spec := &ss.optimizer.sqpSpec

	m, meq, n, lda := spec.m, spec.meq, spec.n, max(spec.m, 1)
	n1 := n + 1
	nl := n * n1 / 2
	lower, upper, l, s, mult := ctx.u, ctx.v, ctx.l, ctx.s, ctx.r
	nnlsIter, inf := spec.Stop.NNLSIterations, spec.BndInf

	mode = ss.initCtx()
	for mode == OK {
		if ctx.iter++; ctx.iter > spec.Stop.MaxIterations {
			ctx.iter--
			return SQPExceedMaxIter
		}

		// search direction 𝐝 in s and multipliers in r, with bounds shifted to 𝐝
		for i, b := range spec.Bounds {
			lower[i] = b.Lower - loc.x[i]
			upper[i] = b.Upper - loc.x[i]
		}
		_, mode = lsq(m, meq, n, nl+1, l, loc.g, loc.a, loc.c, lower, upper, s, mult, ctx.w, ctx.jw, nnlsIter, inf)
		if mode == LSEISingularC && n == meq {
			mode = ConsIncompatible
		}

		// an inconsistent linearization is retried with the slack 𝛅 as extra variable,
		// and the iteration may not be declared converged
		relax := one
		if ctx.bad = mode == ConsIncompatible; ctx.bad {
			a := loc.a[n*lda : n1*lda]
			for j, c := range loc.c[:m] {
				if j < meq {
					a[j] = -c
				} else {
					a[j] = math.Max(-c, zero)
				}
			}
			loc.g[n] = zero
			l[nl] = hun
			dzero(s[:n])
			s[n] = one
			lower[n], upper[n] = zero, one

			for try := 0; try <= 5; try++ {
				_, mode = lsq(m, meq, n1, nl+1, l, loc.g, loc.a, loc.c, lower, upper, s, mult, ctx.w, ctx.jw, nnlsIter, inf)
				relax = one - s[n]
				if mode != ConsIncompatible {
					break
				}
				l[nl] *= ten
			}
		}
		if mode != HasSolution {
			return
		}

		// keep 𝜵ℒ(𝐱ᵏ) for the BFGS update
		for i, g := range loc.g[:n] {
			upper[i] = g - ddot(m, loc.a[i*lda:(i+1)*lda], 1, mult, 1)
		}
		ctx.f0 = loc.f
		copy(ctx.x0, loc.x)

		slope := ddot(n, loc.g, 1, s, 1)
		kkt, vio := math.Abs(slope), zero
		for j, c := range loc.c[:m] {
			vio += violation(c, j < meq)
			lambda := math.Abs(mult[j])
			kkt += lambda * math.Abs(c)
			ctx.mu[j] = math.Max(lambda, (ctx.mu[j]+lambda)/2)
		}
		if kkt < ctx.acc && vio < ctx.acc && !ctx.bad && !math.IsNaN(loc.f) {
			return OK
		}

		penalty := zero
		for j, c := range loc.c[:m] {
			penalty += ctx.mu[j] * violation(c, j < meq)
		}
		ctx.t0 = loc.f + penalty

		// directional derivative of the merit function
		deriv := slope - penalty*relax
		if deriv >= zero {
			if mode = ss.resetBFGS(); ctx.reset > maxResets {
				return
			}
			continue
		}

		ctx.line = 0
		ctx.alpha = spec.Line.Alpha.Upper
		ss.armijoStep()
		deriv *= ctx.alpha

		for mode = evalFunc; mode == evalFunc; {
			mode = ss.lineSearch(&deriv)
		}
		if mode == OK {
			return
		}
		if mode == evalGrad {
			mode = ss.updateBFGS()
		}
	}
	return
}

// armijoStep moves 𝐱ᵏ⁺¹ = 𝐱ᵏ + 𝛂𝐝 and clips the trial point back into the bounds.
func (ss *sqpSolver) armijoStep() {
	s, c, x := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx, ss.location.x
	c.line++
	dscal(s.n, c.alpha, c.s, 1)
	dcopy(s.n, c.x0, 1, x, 1)
	daxpy(s.n, one, c.s, 1, x, 1)
	b, inf := s.Bounds, s.BndInf
	for i, v := range x {
		l, u := b[i].Lower, b[i].Upper
		if !math.IsNaN(l) && l > -inf && v < l {
			x[i] = l
		} else if !math.IsNaN(u) && u < inf && v > u {
			x[i] = u
		}
	}
}

// lineSearch evaluates the trial point and either accepts it (evalGrad, or OK when
// converged) or shrinks the step by quadratic interpolation (evalFunc).
func (ss *sqpSolver) lineSearch(deriv *float64) (mode sqpMode) {
	if mode = ss.evalLoc(evalFunc); mode != OK {
		return
	}

	spec, ctx, loc := &ss.optimizer.sqpSpec, &ss.workspace.sqpCtx, ss.location
	merit := loc.f
	for j, c := range loc.c[:spec.m] {
		merit += ctx.mu[j] * violation(c, j < spec.meq)
	}

	dm := merit - ctx.t0
	if dm <= *deriv/10 || ctx.line > 10 {
		if ss.converged(ss.totalViolation(), ctx.acc) {
			return OK
		}
		return evalGrad
	}

	lo, hi := spec.Line.Alpha.Lower, spec.Line.Alpha.Upper
	ctx.alpha = math.Min(math.Max(*deriv/(2*(*deriv-dm)), lo), hi)
	if math.IsNaN(ctx.alpha) {
		ctx.alpha = lo
	}
	ss.armijoStep()
	*deriv *= ctx.alpha
	return evalFunc
}

// lsq solves the direction sub-problem
//
//	minimize ‖ 𝐃¹ᐟ²𝐋ᵀ𝐱 + 𝐃⁻¹ᐟ²𝐋⁻¹𝐠 ‖₂ subject to 𝐀ⱼ𝐱 + 𝐛ⱼ = 0 (j < mₑ), 𝐀ⱼ𝐱 + 𝐛ⱼ ≥ 0 (j ≥ mₑ), 𝒍 ≤ 𝐱 ≤ 𝒖
//
// by handing lsei the triangular 𝐄 = 𝐃¹ᐟ²𝐋ᵀ, 𝐟 = -𝐃⁻¹ᐟ²𝐋⁻¹𝐠 and the bounds as ±𝐈 rows of 𝐆.
// A packed factor l one element longer than n(n+1)/2 marks the relaxed problem whose
// last variable is the slack with weight l[nl-1].
// y receives the multipliers of the general constraints followed by the bound rows.
func lsq(m, meq, n, nl int,
	l, g, a, b, xl, xu []float64,
	x, y []float64,
	w []float64, jw []int,
	maxIter int, infBnd float64) (float64, sqpMode) {

	mineq := m - meq
	m1 := mineq + n + n
	lda := max(m, 1)

	n1 := n + 1
	aug, nn := 0, n
	if (n+1)*n/2+1 != nl {
		aug, nn = 1, n-1
	}

	// w = [ 𝐄 n×n | 𝐟 | 𝐂 | 𝐝 | 𝐆 | 𝐡 | lsei scratch ]
	e0, f0 := 0, n*n
	c0, d0 := f0+n, f0+n+meq*n
	g0, h0 := d0+meq, d0+meq+m1*n
	w0 := h0 + m1

	// rows of 𝐄 from the packed 𝐋𝐃 and 𝐟 by forward substitution
	il, ie, ir := 0, 0, 0
	for j := 0; j < nn; j++ {
		k := n - j
		diag := math.Sqrt(l[il])
		dzero(w[ie : ie+k])
		dcopy(k-aug, l[il:], 1, w[ie:], n)
		dscal(k-aug, diag, w[ie:], n)
		w[ie] = diag
		w[f0+j] = (g[j] - ddot(j, w[ir:], 1, w[f0:], 1)) / diag
		il += k - aug
		ie += n1
		ir += n
	}
	if aug == 1 {
		w[ie] = l[nl-1]
		dzero(w[ir : ir+nn])
		w[f0+nn] = zero
	}
	dscal(n, -one, w[f0:f0+n], 1)

	for i := 0; i < meq; i++ {
		dcopy(n, a[i:], lda, w[c0+i:], meq)
	}
	dcopy(meq, b, 1, w[d0:], 1)
	dscal(meq, -one, w[d0:], 1)

	for i := 0; i < mineq; i++ {
		dcopy(n, a[meq+i:], lda, w[g0+i:], m1)
	}
	dcopy(mineq, b[meq:], 1, w[h0:], 1)
	dscal(mineq, -one, w[h0:], 1)

	xl, xu = xl[:n], xu[:n]
	lowerOn := func(i int) bool { return !math.IsNaN(xl[i]) && xl[i] > -infBnd }
	upperOn := func(i int) bool { return !math.IsNaN(xu[i]) && xu[i] < infBnd }

	rows := mineq
	bound := func(i int, sign, rhs float64) {
		ip := g0 + rows
		w[h0+rows] = rhs
		w[ip] = zero
		dcopy(n, w[ip:], 0, w[ip:], m1)
		w[ip+m1*i] = sign
		rows++
	}
	for i := range xl {
		if lowerOn(i) {
			bound(i, one, xl[i])
		}
	}
	for i := range xu {
		if upperOn(i) {
			bound(i, -one, -xu[i])
		}
	}

	norm, mode := lsei(w[c0:d0], w[d0:g0], w[e0:f0], w[f0:c0], w[g0:h0], w[h0:w0],
		max(1, meq), meq, n, n, m1, rows, n, x, w[w0:], jw, maxIter)
	if mode != HasSolution {
		return norm, mode
	}

	dcopy(m, w[w0:], 1, y, 1)
	if nn > 0 {
		y[m] = math.NaN()
		dcopy(nn+nn, y[m:], 0, y[m:], 1)
	}
	for i := range xl {
		if lowerOn(i) && x[i] < xl[i] {
			x[i] = xl[i]
		}
	}
	for i := range xu {
		if upperOn(i) && x[i] > xu[i] {
			x[i] = xu[i]
		}
	}
	return norm, mode
}
