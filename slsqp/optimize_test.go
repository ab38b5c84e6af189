// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

type real interface {
	float64 | []float64
}

// almostEqual compares scalars or vectors with a mixed absolute/relative tolerance.
func almostEqual[T real](a, b T, tol float64) bool {
	switch x := any(a).(type) {
	case float64:
		y := any(b).(float64)
		return math.Abs(x-y) <= tol*math.Max(one, math.Max(math.Abs(x), math.Abs(y)))
	case []float64:
		y := any(b).([]float64)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !almostEqual(x[i], y[i], tol) {
				return false
			}
		}
		return true
	}
	return false
}

// evaluation joins a function and its derivative into the Evaluation callback,
// the derivative is only requested when g is not nil.
func evaluation(f func(x []float64) float64, d func(x, g []float64)) Evaluation {
	return func(x []float64, g []float64) float64 {
		if g != nil {
			d(x, g)
			return 0
		}
		return f(x)
	}
}

// Case Sources : https://github.com/jacobwilliams/slsqp/blob/master/test/slsqp_test.f90
func TestRosenbrock(t *testing.T) {

	const n = 2

	objective := evaluation(
		func(x []float64) float64 {
			return 100.0*math.Pow(x[1]-math.Pow(x[0], 2), 2) + math.Pow(1.0-x[0], 2)
		},
		func(x []float64, d []float64) {
			d[0] = -400.0*(x[1]-math.Pow(x[0], 2))*x[0] - 2.0*(1.0-x[0]) // ∂f/∂x1
			d[1] = 200.0 * (x[1] - math.Pow(x[0], 2))                    // ∂f/∂x2
		},
	)
	constraint := evaluation(
		func(x []float64) float64 {
			return 1.0 - math.Pow(x[0], 2) - math.Pow(x[1], 2)
		},
		func(x []float64, d []float64) {
			d[0] = -2.0 * x[0] // ∂c/∂x1
			d[1] = -2.0 * x[1] // ∂c/∂x2
		},
	)

	p := Problem{
		N:       n,
		Object:  objective,
		NeqCons: []Evaluation{constraint},
		Stop: Termination{
			Accuracy:      1e-8,
			MaxIterations: 50,
		},
		Bounds: []Bound{{-1, 1}, {-1, 1}},
	}

	s, e := p.New()
	if e != nil {
		t.Fatal(e)
	}
	r := s.Fit([]float64{0.1, 0.1}, s.Init())

	wantX := []float64{0.7864151509718389, 0.6176983165954114}
	wantF := 0.0456748087191604

	switch {
	case !r.OK:
		t.Fatal("TestRosenbrock: Not Converge")
	case r.F > wantF+1e-8:
		t.Fatal("TestRosenbrock: Object Too Large")
	case !almostEqual(r.X, wantX, 1e-6):
		t.Fatal("TestRosenbrock: Bad Solution")
	case len(r.Multipliers) != 1 || r.Multipliers[0] <= zero:
		t.Fatal("TestRosenbrock: Active Constraint Without Multiplier")
	}
}

// Case Sources : https://github.com/jacobwilliams/slsqp/blob/master/test/slsqp_test_71.f90
func TestProb71(t *testing.T) {

	const n = 5

	obj := evaluation(
		func(x []float64) float64 {
			return x[0]*x[3]*(x[0]+x[1]+x[2]) + x[2]
		},
		func(x []float64, d []float64) {
			d[0] = x[3] * (2.0*x[0] + x[1] + x[2])
			d[1] = x[0] * x[3]
			d[2] = x[0]*x[3] + 1.0
			d[3] = x[0] * (x[0] + x[1] + x[2])
			d[4] = 0.0
		},
	)
	cons1 := evaluation(
		func(x []float64) float64 {
			return x[0]*x[1]*x[2]*x[3] - x[4] - 25
		},
		func(x []float64, d []float64) {
			d[0] = x[1] * x[2] * x[3]
			d[1] = x[0] * x[2] * x[3]
			d[2] = x[0] * x[1] * x[3]
			d[3] = x[0] * x[1] * x[2]
			d[4] = -1
		},
	)
	cons2 := evaluation(
		func(x []float64) float64 {
			return x[0]*x[0] + x[1]*x[1] + x[2]*x[2] + x[3]*x[3] - 40
		},
		func(x []float64, d []float64) {
			d[0] = 2 * x[0]
			d[1] = 2 * x[1]
			d[2] = 2 * x[2]
			d[3] = 2 * x[3]
			d[4] = 0
		},
	)

	p := Problem{
		N:      n,
		Object: obj,
		EqCons: []Evaluation{cons1, cons2},
		Stop: Termination{
			Accuracy:      1e-8,
			MaxIterations: 50,
		},
		Bounds: []Bound{{1, 5}, {1, 5}, {1, 5}, {1, 5}, {0, 1e10}},
	}

	s, e := p.New()
	if e != nil {
		t.Fatal(e)
	}
	r := s.Fit([]float64{1, 5, 5, 1, -24}, s.Init())

	wantX := []float64{1, 4.7429996586260321, 3.8211499562762130, 1.3794082970345380, 0}
	wantF := 17.0140172891520542

	switch {
	case !r.OK:
		t.Fatal("TestProb71: Not Converge")
	case r.F > wantF+1e-8:
		t.Fatal("TestProb71: Object Too Large")
	case !almostEqual(r.X, wantX, 1e-6):
		t.Fatal("TestProb71: Bad Solution")
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test_slsqp.py (test_bounds_clipping)
func TestBoundClip(t *testing.T) {

	obj := evaluation(
		func(x []float64) float64 { return (x[0] - 1) * (x[0] - 1) },
		func(x []float64, d []float64) { d[0] = 2*x[0] - 2 },
	)

	tests := []struct {
		init    float64
		bnd     []Bound
		desired float64
	}{
		{10, []Bound{{math.NaN(), 0}}, 0},
		{-10, []Bound{{2, math.NaN()}}, 2},
		{-10, []Bound{{math.NaN(), 0}}, 0},
		{10, []Bound{{2, math.NaN()}}, 2},
		{-0.5, []Bound{{-1, 0}}, 0},
		{10, []Bound{{-1, 0}}, 0},
	}

	for _, tt := range tests {
		p := Problem{
			N:      1,
			Object: obj,
			Bounds: tt.bnd,
			Stop:   Termination{Accuracy: 1e-6, MaxIterations: 50},
		}
		s, e := p.New()
		if e != nil {
			t.Fatal(e)
		}
		r := s.Fit([]float64{tt.init}, s.Init())
		switch {
		case !r.OK:
			t.Fatal("TestBoundClip: Not Converge")
		case !almostEqual(r.X[0], tt.desired, 1e-6):
			t.Fatalf("TestBoundClip: got %g want %g", r.X[0], tt.desired)
		}
	}
}

// Case Sources : https://github.com/scipy/scipy/blob/main/scipy/optimize/tests/test_slsqp.py (test_inconsistent_inequalities)
func TestInconsistentCons(t *testing.T) {

	obj := evaluation(
		func(x []float64) float64 { return -1*x[0] + 4*x[1] },
		func(x []float64, d []float64) { d[0], d[1] = -1, 4 },
	)
	cons1 := evaluation(
		func(x []float64) float64 { return x[1] - x[0] - 1 },
		func(x []float64, d []float64) { d[0], d[1] = -1, 1 },
	)
	cons2 := evaluation(
		func(x []float64) float64 { return x[0] - x[1] },
		func(x []float64, d []float64) { d[0], d[1] = 1, -1 },
	)

	p := Problem{
		N:       2,
		Object:  obj,
		NeqCons: []Evaluation{cons1, cons2},
		Stop:    Termination{Accuracy: 1e-6, MaxIterations: 50},
		Bounds:  []Bound{{-5, 5}, {-5, 5}},
	}

	s, e := p.New()
	if e != nil {
		t.Fatal(e)
	}
	r := s.Fit([]float64{1, 5}, s.Init())
	if r.OK {
		t.Fatalf("TestInconsistentCons: unexpected convergence (%v)", r.Status)
	}
}

// A linear objective over the unit disc, the shape of a 2-norm kernel weight program.
func TestLinearOverDisc(t *testing.T) {

	obj := evaluation(
		func(x []float64) float64 { return -x[0] - 2*x[1] },
		func(x []float64, d []float64) { d[0], d[1] = -1, -2 },
	)
	disc := evaluation(
		func(x []float64) float64 { return one - x[0]*x[0] - x[1]*x[1] },
		func(x []float64, d []float64) { d[0], d[1] = -2*x[0], -2*x[1] },
	)
	// never binding
	far := evaluation(
		func(x []float64) float64 { return 10 - x[0] - x[1] },
		func(x []float64, d []float64) { d[0], d[1] = -1, -1 },
	)

	p := Problem{
		N:       2,
		Object:  obj,
		NeqCons: []Evaluation{disc, far},
		Stop:    Termination{Accuracy: 1e-10, MaxIterations: 100},
		Bounds:  []Bound{{0, 1}, {0, 1}},
	}

	s, e := p.New()
	if e != nil {
		t.Fatal(e)
	}
	r := s.Fit([]float64{0.5, 0.5}, s.Init())

	want := []float64{1 / math.Sqrt(5), 2 / math.Sqrt(5)}
	switch {
	case !r.OK:
		t.Fatalf("TestLinearOverDisc: Not Converge (%v)", r.Status)
	case !almostEqual(r.X, want, 1e-5):
		t.Fatalf("TestLinearOverDisc: Bad Solution %v", r.X)
	case r.Multipliers[0] <= zero:
		t.Fatal("TestLinearOverDisc: Active Constraint Without Multiplier")
	case math.Abs(r.Multipliers[1]) > 1e-8:
		t.Fatal("TestLinearOverDisc: Inactive Constraint With Multiplier")
	}
}

func TestProblemValidation(t *testing.T) {

	obj := evaluation(
		func(x []float64) float64 { return x[0] * x[0] },
		func(x []float64, d []float64) { d[0] = 2 * x[0] },
	)

	tests := []struct {
		name string
		p    Problem
	}{
		{"dimension", Problem{N: 0, Object: obj, Stop: Termination{Accuracy: 1e-6, MaxIterations: 10}}},
		{"objective", Problem{N: 1, Stop: Termination{Accuracy: 1e-6, MaxIterations: 10}}},
		{"iterations", Problem{N: 1, Object: obj, Stop: Termination{Accuracy: 1e-6}}},
		{"accuracy", Problem{N: 1, Object: obj, Stop: Termination{MaxIterations: 10}}},
		{"bounds", Problem{N: 1, Object: obj, Stop: Termination{Accuracy: 1e-6, MaxIterations: 10}, Bounds: []Bound{{1, 0}}}},
		{"constraint", Problem{N: 1, Object: obj, Stop: Termination{Accuracy: 1e-6, MaxIterations: 10}, NeqCons: []Evaluation{nil}}},
	}

	for _, tt := range tests {
		if _, err := tt.p.New(); !errors.Is(err, ErrProblem) {
			t.Fatalf("TestProblemValidation: %s gave %v", tt.name, err)
		}
	}
}
