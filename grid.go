package jacobi

import "fmt"

// Grid is a 3-D scalar field with one ghost layer on every face. Nx, Ny
// and Nz are interior extents; Data holds (Nx+2)(Ny+2)(Nz+2) values in
// row-major order, so an i-plane is one contiguous run of PlaneLen values.
type Grid struct {
	Nx, Ny, Nz int
	Data       []float64
}

// NewGrid allocates a zeroed grid with the given interior extents
func NewGrid(nx, ny, nz int) (*Grid, error) {
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, NewInvalidArgError("NewGrid", fmt.Sprintf("extents must be positive, got %dx%dx%d", nx, ny, nz))
	}
	return &Grid{
		Nx:   nx,
		Ny:   ny,
		Nz:   nz,
		Data: make([]float64, (nx+2)*(ny+2)*(nz+2)),
	}, nil
}

// NewCubeGrid allocates an n x n x n grid
func NewCubeGrid(n int) (*Grid, error) {
	return NewGrid(n, n, n)
}

// Index returns the offset of (i, j, k) in Data. Indices include the
// ghost layer: 0 and Nx+1 are ghost planes.
func (g *Grid) Index(i, j, k int) int {
	return i*(g.Ny+2)*(g.Nz+2) + j*(g.Nz+2) + k
}

func (g *Grid) At(i, j, k int) float64 {
	return g.Data[g.Index(i, j, k)]
}

func (g *Grid) Set(i, j, k int, v float64) {
	g.Data[g.Index(i, j, k)] = v
}

// PlaneLen is the number of values in one i-plane, ghosts included
func (g *Grid) PlaneLen() int {
	return (g.Ny + 2) * (g.Nz + 2)
}

// Len is the total number of stored values
func (g *Grid) Len() int {
	return len(g.Data)
}

// Planes returns the contiguous run of count i-planes starting at plane i
func (g *Grid) Planes(i, count int) []float64 {
	p := g.PlaneLen()
	return g.Data[i*p : (i+count)*p]
}

// IsCube reports whether all interior extents equal n and Data holds
// exactly the (n+2)³ values they need
func (g *Grid) IsCube(n int) bool {
	return g.Nx == n && g.Ny == n && g.Nz == n && len(g.Data) == (n+2)*(n+2)*(n+2)
}

// Clone returns a deep copy of g
func (g *Grid) Clone() *Grid {
	c := *g
	c.Data = append([]float64(nil), g.Data...)
	return &c
}

// ForEachInterior calls fn for every interior point in storage order
func (g *Grid) ForEachInterior(fn func(i, j, k int)) {
	for i := 1; i <= g.Nx; i++ {
		for j := 1; j <= g.Ny; j++ {
			for k := 1; k <= g.Nz; k++ {
				fn(i, j, k)
			}
		}
	}
}
