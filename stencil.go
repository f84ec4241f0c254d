package jacobi

// StencilKernel performs one Jacobi sweep of the 7-point discretisation of
// -∇²u = f over the cube [-1,1]^3:
//
//	next = (u[i±1] + u[j±1] + u[k±1] + h²·f) / 6,   h = 2/N
//
// N is the global interior extent, never the slab's, so both slabs share
// the same h.
type StencilKernel struct {
	N  int
	H2 float64
}

// NewStencilKernel returns the kernel for a global extent of n
func NewStencilKernel(n int) StencilKernel {
	h := 2.0 / float64(n)
	return StencilKernel{N: n, H2: h * h}
}

// Pencil updates next along k for the interior point column (i, j). The
// layout is (ny+2) x (nz+2) per plane. cur and f are only read.
func (sk StencilKernel) Pencil(cur, next, f []float64, ny, nz, i, j int) {
	sj := nz + 2
	si := (ny + 2) * sj
	base := i*si + j*sj
	for k := 1; k <= nz; k++ {
		idx := base + k
		next[idx] = (1.0 / 6.0) * (cur[idx-si] + cur[idx+si] +
			cur[idx-sj] + cur[idx+sj] +
			cur[idx-1] + cur[idx+1] +
			sk.H2*f[idx])
	}
}

// PencilDiff is Pencil that also returns Σ(next-cur)² over the column
func (sk StencilKernel) PencilDiff(cur, next, f []float64, ny, nz, i, j int) float64 {
	sj := nz + 2
	si := (ny + 2) * sj
	base := i*si + j*sj
	var sum float64
	for k := 1; k <= nz; k++ {
		idx := base + k
		v := (1.0 / 6.0) * (cur[idx-si] + cur[idx+si] +
			cur[idx-sj] + cur[idx+sj] +
			cur[idx-1] + cur[idx+1] +
			sk.H2*f[idx])
		d := v - cur[idx]
		sum += d * d
		next[idx] = v
	}
	return sum
}

// dims returns the launch shape for nx interior planes: one thread per
// (i, j) column, StencilBlockSize columns per block along j.
func (sk StencilKernel) dims(nx int) (grid, block Dim3) {
	grid = Dim3{X: (sk.N + StencilBlockSize - 1) / StencilBlockSize, Y: nx, Z: 1}
	block = Dim3{X: StencilBlockSize, Y: 1, Z: 1}
	return grid, block
}

// Launch queues one sweep of s on its context, reading s.Current() and
// writing s.Next(). With track set the launch also reduces the squared
// update into the slab's residual partial. The sweep is complete once the
// context is synchronized.
func (sk StencilKernel) Launch(s *Slab, track bool) error {
	cur := s.Current().Float64()
	next := s.Next().Float64()
	f := s.Source().Float64()
	if &cur[0] == &next[0] {
		return NewInvalidArgError("Stencil", "current and next buffers alias")
	}

	ny, nz := sk.N, sk.N
	grid, block := sk.dims(s.Interior())

	if !track {
		return s.ctx.LaunchFunc(func(tid ThreadID) {
			j := tid.GlobalX() + 1
			if j > ny {
				return
			}
			sk.Pencil(cur, next, f, ny, nz, tid.GlobalY()+1, j)
		}, grid, block)
	}

	s.partial = 0
	return s.ctx.LaunchReduce(func(tid ThreadID) float64 {
		j := tid.GlobalX() + 1
		if j > ny {
			return 0
		}
		return sk.PencilDiff(cur, next, f, ny, nz, tid.GlobalY()+1, j)
	}, grid, block, &s.partial)
}
