package jacobi

// ApplyBoundary sets every ghost cell of u to t and every interior cell
// to zero, the starting state of the heat problem.
func ApplyBoundary(u *Grid, t float64) {
	for i := 0; i <= u.Nx+1; i++ {
		for j := 0; j <= u.Ny+1; j++ {
			for k := 0; k <= u.Nz+1; k++ {
				v := 0.0
				if i == 0 || i == u.Nx+1 || j == 0 || j == u.Ny+1 || k == 0 || k == u.Nz+1 {
					v = t
				}
				u.Set(i, j, k, v)
			}
		}
	}
}

// Radiator box in fractions of N, per axis
const (
	radiatorXLo, radiatorXHi = 0.125, 0.375
	radiatorYLo, radiatorYHi = 0.25, 0.5
	radiatorZLo, radiatorZHi = 0.333, 0.666
)

// RadiatorSource returns an n³ source field that is value inside the
// radiator box and zero elsewhere. Indices are compared in ghost
// coordinates, matching the grid's storage.
func RadiatorSource(n int, value float64) (*Grid, error) {
	f, err := NewCubeGrid(n)
	if err != nil {
		return nil, err
	}
	nf := float64(n)
	inside := func(x int, lo, hi float64) bool {
		return float64(x) >= nf*lo && float64(x) <= nf*hi
	}
	for i := 0; i <= n+1; i++ {
		for j := 0; j <= n+1; j++ {
			for k := 0; k <= n+1; k++ {
				if inside(i, radiatorXLo, radiatorXHi) &&
					inside(j, radiatorYLo, radiatorYHi) &&
					inside(k, radiatorZLo, radiatorZHi) {
					f.Set(i, j, k, value)
				}
			}
		}
	}
	return f, nil
}
