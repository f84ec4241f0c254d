package jacobi

import "testing"

// newTestDevices opens two contexts that are destroyed when the test ends
func newTestDevices(t testing.TB, opts ...ContextOption) [NumDevices]*Context {
	t.Helper()
	devs, err := OpenDevices([NumDevices]int{0, 1}, opts...)
	if err != nil {
		t.Fatalf("OpenDevices failed: %v", err)
	}
	t.Cleanup(func() { CloseDevices(devs) })
	return devs
}

// heatProblem returns the radiator source and a boundary-initialised
// estimate for an n³ grid
func heatProblem(t testing.TB, n int) (f, u *Grid) {
	t.Helper()
	f, err := RadiatorSource(n, DefaultRadiatorValue)
	if err != nil {
		t.Fatalf("RadiatorSource(%d) failed: %v", n, err)
	}
	u, err = NewCubeGrid(n)
	if err != nil {
		t.Fatalf("NewCubeGrid(%d) failed: %v", n, err)
	}
	ApplyBoundary(u, DefaultBoundaryValue)
	return f, u
}

func fill(g *Grid, v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}
