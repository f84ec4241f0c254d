package jacobi

import (
	"math"
	"math/rand"
	"testing"
)

func randomGrid(t testing.TB, n int, rng *rand.Rand) *Grid {
	t.Helper()
	g, err := NewCubeGrid(n)
	if err != nil {
		t.Fatalf("NewCubeGrid failed: %v", err)
	}
	for i := range g.Data {
		g.Data[i] = rng.Float64()*10 - 5
	}
	return g
}

func TestStencilKernelSpacing(t *testing.T) {
	k := NewStencilKernel(8)
	if want := 0.0625; k.H2 != want {
		t.Errorf("H2 = %v, want %v", k.H2, want)
	}
}

func TestStencilMatchesReferenceOnSlab(t *testing.T) {
	const n = 6
	rng := rand.New(rand.NewSource(1))
	f := randomGrid(t, n, rng)
	u := randomGrid(t, n, rng)

	want := u.Clone()
	ReferenceSweep(f, u, want, n)

	devs := newTestDevices(t, WithWorkers(3))
	part, _ := NewPartition(n, NumDevices)
	kernel := NewStencilKernel(n)

	for d, track := range []bool{false, true} {
		slab, err := newSlab(devs[d], d, part.Ranges[d], n)
		if err != nil {
			t.Fatalf("newSlab failed: %v", err)
		}
		defer slab.release()
		if err := slab.load(f, u); err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if err := kernel.Launch(slab, track); err != nil {
			t.Fatalf("Launch failed: %v", err)
		}
		if err := devs[d].Synchronize(); err != nil {
			t.Fatalf("Synchronize failed: %v", err)
		}

		next := slab.Next().Float64()
		cur := slab.Current().Float64()
		var sumSq float64
		for p := 1; p <= slab.Interior(); p++ {
			gi := slab.Range.Lo + p
			for j := 1; j <= n; j++ {
				for k := 1; k <= n; k++ {
					idx := p*slab.PlaneLen() + j*(n+2) + k
					if !Float64NearEqual(next[idx], want.At(gi, j, k), StrictTolerance()) {
						t.Fatalf("slab %d (%d,%d,%d) = %v, want %v", d, gi, j, k, next[idx], want.At(gi, j, k))
					}
					if cur[idx] != u.At(gi, j, k) {
						t.Fatalf("slab %d wrote its current buffer at (%d,%d,%d)", d, gi, j, k)
					}
					diff := next[idx] - cur[idx]
					sumSq += diff * diff
				}
			}
		}

		if track && !Float64NearEqual(slab.partial, sumSq, DefaultTolerance()) {
			t.Errorf("slab %d partial = %v, want %v", d, slab.partial, sumSq)
		}
	}
}

func TestPencilDiffMatchesPencil(t *testing.T) {
	const n = 4
	rng := rand.New(rand.NewSource(7))
	f := randomGrid(t, n, rng)
	u := randomGrid(t, n, rng)
	a := make([]float64, u.Len())
	b := make([]float64, u.Len())
	k := NewStencilKernel(n)

	var total float64
	for i := 1; i <= n; i++ {
		for j := 1; j <= n; j++ {
			k.Pencil(u.Data, a, f.Data, n, n, i, j)
			total += k.PencilDiff(u.Data, b, f.Data, n, n, i, j)
		}
	}
	for idx := range a {
		if a[idx] != b[idx] {
			t.Fatalf("Pencil and PencilDiff differ at %d: %v vs %v", idx, a[idx], b[idx])
		}
	}

	var want float64
	u.ForEachInterior(func(i, j, kk int) {
		d := a[u.Index(i, j, kk)] - u.At(i, j, kk)
		want += d * d
	})
	if math.Abs(total-want) > 1e-9*want {
		t.Errorf("PencilDiff sum = %v, want %v", total, want)
	}
}

func BenchmarkStencilSweep(b *testing.B) {
	const n = 64
	rng := rand.New(rand.NewSource(1))
	f := randomGrid(b, n, rng)
	u := randomGrid(b, n, rng)

	ctx, err := NewContext(0)
	if err != nil {
		b.Fatalf("NewContext failed: %v", err)
	}
	defer ctx.Destroy()

	slab, err := newSlab(ctx, 0, Range{Lo: 0, Hi: n / 2}, n)
	if err != nil {
		b.Fatalf("newSlab failed: %v", err)
	}
	defer slab.release()
	slab.load(f, u)
	kernel := NewStencilKernel(n)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		kernel.Launch(slab, true)
		ctx.Synchronize()
		slab.swap()
	}
	b.ReportMetric(float64(n*n*n/2)*float64(b.N)/b.Elapsed().Seconds()/1e6, "MLUPS")
}
