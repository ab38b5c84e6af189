// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import "fmt"

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
	four = 4.0
	ten  = 10.0
	hun  = 100.0
	eps  = float64(7)/3 - float64(4)/3 - 1.
)

type sqpMode int

const (
	OK sqpMode = iota
	HasSolution
	BadArgument // a callback panicked or dimensions are inconsistent
	NNLSExceedMaxIter
	ConsIncompatible // the linearized constraints admit no point
	LSISingularE
	LSEISingularC
	LSEIRankDefect
	SearchNotDescent // no descent direction after repeated Hessian resets
	SQPExceedMaxIter
)

var modeNames = [...]string{
	OK:                "ok",
	HasSolution:       "has solution",
	BadArgument:       "bad argument",
	NNLSExceedMaxIter: "nnls exceed max iterations",
	ConsIncompatible:  "inequality constraints incompatible",
	LSISingularE:      "matrix E singular in LSI",
	LSEISingularC:     "matrix C singular in LSEI",
	LSEIRankDefect:    "rank-deficient least-squares in LSEI",
	SearchNotDescent:  "positive directional derivative in line-search",
	SQPExceedMaxIter:  "sqp exceed max iterations",
}

func (m sqpMode) String() string {
	if m >= 0 && int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("sqpMode(%d)", int(m))
}

// requests passed to sqpSolver.evalLoc
const (
	evalGrad sqpMode = -1
	evalFunc sqpMode = -2
)

type sqpSpec struct {
	n, m, meq int // variables, constraints, equality constraints
	Problem
}

type sqpLoc struct {
	f float64
	x []float64 // n
	c []float64 // constraint values, max(1,m)
	g []float64 // objective gradient, n+1
	a []float64 // constraint normals, max(1,m) × (n+1) column-major
}

type sqpCtx struct {
	acc, tol float64 // accuracy and the relaxed accuracy after repeated resets
	f0, t0   float64 // objective and merit at the start of the line search
	alpha    float64 // step length
	line     int     // line search trials
	iter     int
	reset    int  // Hessian resets
	bad      bool // the linearization was inconsistent this iteration

	x0 []float64 // n
	mu []float64 // merit penalties, max(1,m)
	r  []float64 // multipliers of the sub-problem, m + 2n
	// packed 𝐋𝐃𝐋ᵀ of the Hessian approximation, 𝐃 on the diagonal
	l []float64 // n(n+1)/2 + 1
	s []float64 // direction, n+1
	u []float64 // n+1
	v []float64 // n+1
	w  []float64
	jw []int
}
