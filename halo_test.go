package jacobi

import (
	"math/rand"
	"testing"
)

// loadedSlabs allocates both slabs of an n³ problem and fills them from u
func loadedSlabs(t *testing.T, devs [NumDevices]*Context, n int, f, u *Grid) [NumDevices]*Slab {
	t.Helper()
	part, err := NewPartition(n, NumDevices)
	if err != nil {
		t.Fatalf("NewPartition failed: %v", err)
	}
	var slabs [NumDevices]*Slab
	for d := range slabs {
		slab, err := newSlab(devs[d], d, part.Ranges[d], n)
		if err != nil {
			t.Fatalf("newSlab failed: %v", err)
		}
		t.Cleanup(func() { slab.release() })
		if err := slab.load(f, u); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		slabs[d] = slab
	}
	return slabs
}

func checkHalo(t *testing.T, slabs [NumDevices]*Slab, u *Grid) {
	t.Helper()
	lower, upper := slabs[0], slabs[1]
	n := lower.Interior()
	plane := u.PlaneLen()

	// upper's lower ghost = global plane n (last interior of lower)
	gotUpper := upper.Plane(upper.Next(), 0).Float64()[:plane]
	wantUpper := u.Planes(n, 1)
	// lower's upper ghost = global plane n+1 (first interior of upper)
	gotLower := lower.Plane(lower.Next(), n+1).Float64()[:plane]
	wantLower := u.Planes(n+1, 1)

	for i := 0; i < plane; i++ {
		if gotUpper[i] != wantUpper[i] {
			t.Fatalf("upper ghost[%d] = %v, want %v", i, gotUpper[i], wantUpper[i])
		}
		if gotLower[i] != wantLower[i] {
			t.Fatalf("lower ghost[%d] = %v, want %v", i, gotLower[i], wantLower[i])
		}
	}
}

// scrambleGhosts overwrites the inter-slab ghost planes of the next buffers
func scrambleGhosts(slabs [NumDevices]*Slab) {
	lower, upper := slabs[0], slabs[1]
	for _, p := range [][]float64{
		upper.Plane(upper.Next(), 0).Float64()[:upper.PlaneLen()],
		lower.Plane(lower.Next(), lower.Interior()+1).Float64()[:lower.PlaneLen()],
	} {
		for i := range p {
			p[i] = -999
		}
	}
}

func TestHaloExchangers(t *testing.T) {
	const n = 6
	rng := rand.New(rand.NewSource(3))
	f := randomGrid(t, n, rng)
	u := randomGrid(t, n, rng)

	tests := []struct {
		name      string
		exchanger HaloExchanger
		peer      bool
	}{
		{"Staged", NewStagedExchanger(), false},
		{"PeerWithAccess", NewPeerExchanger(), true},
		{"PeerFallback", NewPeerExchanger(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devs := newTestDevices(t)
			if tt.peer {
				devs[0].EnablePeerAccess(devs[1])
				devs[1].EnablePeerAccess(devs[0])
			}
			slabs := loadedSlabs(t, devs, n, f, u)
			scrambleGhosts(slabs)

			if err := tt.exchanger.Exchange(slabs[0], slabs[1]); err != nil {
				t.Fatalf("Exchange failed: %v", err)
			}
			checkHalo(t, slabs, u)
		})
	}
}

func TestStagedExchangerReusesBuffer(t *testing.T) {
	const n = 4
	rng := rand.New(rand.NewSource(5))
	f := randomGrid(t, n, rng)
	u := randomGrid(t, n, rng)
	devs := newTestDevices(t)
	slabs := loadedSlabs(t, devs, n, f, u)

	x := NewStagedExchanger()
	if err := x.Exchange(slabs[0], slabs[1]); err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	first := &x.staging[0]
	if len(x.staging) != slabs[0].PlaneLen() {
		t.Errorf("staging holds %d values, want one plane of %d", len(x.staging), slabs[0].PlaneLen())
	}
	if err := x.Exchange(slabs[0], slabs[1]); err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if &x.staging[0] != first {
		t.Error("staging buffer reallocated between exchanges")
	}
}

func TestHaloExchangeFailsOnDeadDevice(t *testing.T) {
	const n = 4
	rng := rand.New(rand.NewSource(9))
	f := randomGrid(t, n, rng)
	u := randomGrid(t, n, rng)
	devs := newTestDevices(t)
	slabs := loadedSlabs(t, devs, n, f, u)

	devs[1].Destroy()
	if err := NewStagedExchanger().Exchange(slabs[0], slabs[1]); !IsDeviceError(err) {
		t.Errorf("Exchange with destroyed device: got %v, want device failure", err)
	}
}
