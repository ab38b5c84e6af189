// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package slsqp

import "gonum.org/v1/gonum/blas/blas64"

// strided views the n elements of x spaced inc apart as a BLAS vector.
func strided(n int, x []float64, inc int) blas64.Vector {
	return blas64.Vector{N: n, Data: x, Inc: inc}
}

// daxpy performs constant times a vector plus a vector operation.
func daxpy(n int, da float64, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 || da == 0.0 {
		return
	}
	blas64.Axpy(da, strided(n, dx, incx), strided(n, dy, incy))
}

// ddot computes the dot product of two vectors.
func ddot(n int, dx []float64, incx int, dy []float64, incy int) float64 {
	if n <= 0 {
		return zero
	}
	return blas64.Dot(strided(n, dx, incx), strided(n, dy, incy))
}

// dcopy copies a vector, x, to a vector, y.
// A zero incx broadcasts dx[0] into every element of y.
func dcopy(n int, dx []float64, incx int, dy []float64, incy int) {
	if n <= 0 {
		return
	}
	if incx != 0 {
		blas64.Copy(strided(n, dx, incx), strided(n, dy, incy))
		return
	}
	if ly := incy * (n - 1); ly < 0 || ly >= len(dy) || len(dx) == 0 {
		panic("bound check error")
	}
	v := dx[0]
	for i, iy := 0, 0; i < n; i, iy = i+1, iy+incy {
		dy[iy] = v
	}
}

// dscal scales a vector by a constant.
func dscal(n int, da float64, dx []float64, incx int) {
	if n <= 0 || incx <= 0 {
		return
	}
	blas64.Scal(da, strided(n, dx, incx))
}

// dnrm2 computes the Euclidean norm of a vector x.
func dnrm2(n int, x []float64, incx int) float64 {
	if n < 1 || incx < 1 {
		return zero
	}
	return blas64.Nrm2(strided(n, x, incx))
}

// dzero fills vector x with zero.
func dzero(dx []float64) {
	clear(dx)
}
