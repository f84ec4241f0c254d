// Package jacobi configuration constants
package jacobi

// Launch geometry
const (
	// Pencils per block along j for the stencil launch. Each thread walks
	// one (i, j) pencil over k.
	StencilBlockSize = 16
)

// Memory pool parameters
const (
	// Allocation granularity in float64 elements (one 64-byte cache line)
	MemoryAlignment = 8

	// Default per-device memory budget when the host size cannot be read
	DefaultDeviceMemory = 16 * 1024 * 1024 * 1024
)

// Decomposition
const (
	// Number of device contexts the solver splits the grid across
	NumDevices = 2
)

// Problem defaults, matching the reference heat problem on [-1,1]^3
const (
	DefaultGridSize      = 100
	DefaultMaxIterations = 1000
	DefaultBoundaryValue = 20.0
	DefaultRadiatorValue = 200.0
)
