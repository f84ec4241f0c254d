package jacobi

import "github.com/pkg/errors"

// Slab is one device's share of the global grid: Range.Len() interior
// planes plus one ghost plane on each side, double buffered, with the
// matching planes of the source field. All three buffers live in the
// owning context's memory.
type Slab struct {
	Index int   // position along the split axis, 0 or 1
	Range Range // interior planes owned, global 0-based
	N     int   // global interior extent

	ctx    *Context
	bufs   [2]DevicePtr
	source DevicePtr
	cur    int

	// residual partial written by the reduction launch
	partial float64
}

// newSlab allocates the slab's buffers on ctx. Nothing is copied yet.
func newSlab(ctx *Context, index int, r Range, n int) (*Slab, error) {
	s := &Slab{Index: index, Range: r, N: n, ctx: ctx}

	size := (r.Len() + 2) * (n + 2) * (n + 2)
	for b := range s.bufs {
		ptr, err := ctx.Malloc(size)
		if err != nil {
			s.release()
			return nil, err
		}
		s.bufs[b] = ptr
	}
	src, err := ctx.Malloc(size)
	if err != nil {
		s.release()
		return nil, err
	}
	s.source = src
	return s, nil
}

// Context returns the owning device context
func (s *Slab) Context() *Context {
	return s.ctx
}

// Interior is the number of interior planes
func (s *Slab) Interior() int {
	return s.Range.Len()
}

// PlaneLen is the number of values in one plane, ghosts included
func (s *Slab) PlaneLen() int {
	return (s.N + 2) * (s.N + 2)
}

// Current is the buffer holding the latest committed estimate
func (s *Slab) Current() DevicePtr {
	return s.bufs[s.cur]
}

// Next is the buffer the following sweep writes
func (s *Slab) Next() DevicePtr {
	return s.bufs[1-s.cur]
}

// Source is the slab's read-only copy of its source planes
func (s *Slab) Source() DevicePtr {
	return s.source
}

// Plane returns the view of local plane p in buf
func (s *Slab) Plane(buf DevicePtr, p int) DevicePtr {
	return buf.Offset(p * s.PlaneLen())
}

// swap flips which buffer is current. No data moves.
func (s *Slab) swap() {
	s.cur = 1 - s.cur
}

// load copies global planes Lo .. Hi+1 of u into both buffers, so ghost
// planes on the outer faces hold boundary values in either role, and the
// same planes of f into the source buffer.
func (s *Slab) load(f, u *Grid) error {
	planes := s.Interior() + 2
	n := planes * s.PlaneLen()

	for _, buf := range s.bufs {
		if err := s.ctx.Memcpy(buf, u.Planes(s.Range.Lo, planes), n, MemcpyHostToDevice); err != nil {
			return errors.Wrapf(err, "load estimate into slab %d", s.Index)
		}
	}
	if err := s.ctx.Memcpy(s.source, f.Planes(s.Range.Lo, planes), n, MemcpyHostToDevice); err != nil {
		return errors.Wrapf(err, "load source into slab %d", s.Index)
	}
	return nil
}

// fetch copies the interior planes of the current buffer to a new host
// slice laid out like the matching planes of the global grid
func (s *Slab) fetch() ([]float64, error) {
	n := s.Interior() * s.PlaneLen()
	host := make([]float64, n)
	if err := s.ctx.Memcpy(host, s.Plane(s.Current(), 1), n, MemcpyDeviceToHost); err != nil {
		return nil, errors.Wrapf(err, "fetch slab %d", s.Index)
	}
	return host, nil
}

// commit writes planes returned by fetch into u
func (s *Slab) commit(u *Grid, host []float64) {
	copy(u.Planes(s.Range.Lo+1, s.Interior()), host)
}

// release frees whatever buffers were allocated. The first error wins.
func (s *Slab) release() error {
	var first error
	for _, ptr := range append(s.bufs[:], s.source) {
		if err := s.ctx.Free(ptr); err != nil && first == nil {
			first = err
		}
	}
	s.bufs = [2]DevicePtr{}
	s.source = DevicePtr{}
	return first
}
