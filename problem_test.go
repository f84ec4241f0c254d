package jacobi

import "testing"

func TestApplyBoundary(t *testing.T) {
	const n = 4
	u, _ := NewCubeGrid(n)
	fill(u, -1)
	ApplyBoundary(u, 20)

	for i := 0; i <= n+1; i++ {
		for j := 0; j <= n+1; j++ {
			for k := 0; k <= n+1; k++ {
				ghost := i == 0 || i == n+1 || j == 0 || j == n+1 || k == 0 || k == n+1
				want := 0.0
				if ghost {
					want = 20
				}
				if got := u.At(i, j, k); got != want {
					t.Fatalf("u(%d,%d,%d) = %v, want %v", i, j, k, got, want)
				}
			}
		}
	}
}

func TestRadiatorSource(t *testing.T) {
	const n = 16
	f, err := RadiatorSource(n, 200)
	if err != nil {
		t.Fatalf("RadiatorSource failed: %v", err)
	}

	tests := []struct {
		i, j, k int
		want    float64
	}{
		{2, 4, 6, 200}, // lower corner of the box
		{6, 8, 10, 200},
		{4, 6, 8, 200},
		{1, 4, 6, 0}, // x below
		{7, 6, 8, 0}, // x above
		{4, 3, 8, 0}, // y below
		{4, 6, 11, 0},
	}
	for _, tt := range tests {
		if got := f.At(tt.i, tt.j, tt.k); got != tt.want {
			t.Errorf("f(%d,%d,%d) = %v, want %v", tt.i, tt.j, tt.k, got, tt.want)
		}
	}
}
