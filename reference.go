// Package jacobi single-device reference implementation for verification
package jacobi

import "math"

// ReferenceSweep performs one Jacobi sweep of the whole grid on the host,
// writing every interior point of next from cur. n is the global extent.
func ReferenceSweep(f, cur, next *Grid, n int) (sumSq float64) {
	h := 2.0 / float64(n)
	h2 := h * h
	cur.ForEachInterior(func(i, j, k int) {
		v := (1.0 / 6.0) * (cur.At(i-1, j, k) + cur.At(i+1, j, k) +
			cur.At(i, j-1, k) + cur.At(i, j+1, k) +
			cur.At(i, j, k-1) + cur.At(i, j, k+1) +
			h2*f.At(i, j, k))
		d := v - cur.At(i, j, k)
		sumSq += d * d
		next.Set(i, j, k, v)
	})
	return sumSq
}

// ReferenceSolve is the plain single-device iteration, sequential and
// unpartitioned. It follows the same stopping rule as Solver.Solve and
// updates u in place.
func ReferenceSolve(f, u *Grid, n int, opts SolveOptions) (Result, error) {
	if err := validate(f, u, n, opts); err != nil {
		return Result{}, err
	}

	cur, next := u.Clone(), u.Clone()
	points := float64(n) * float64(n) * float64(n)
	track := opts.Tolerance > 0

	res := Result{State: StateMaxIterReached}
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		sumSq := ReferenceSweep(f, cur, next, n)
		cur, next = next, cur
		res.Iterations = iter
		if track {
			res.Residual = math.Sqrt(sumSq / points)
			if res.Residual < opts.Tolerance {
				res.State = StateConverged
				break
			}
		}
	}
	copy(u.Data, cur.Data)
	return res, nil
}
