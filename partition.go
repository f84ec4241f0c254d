package jacobi

import "fmt"

// Range is a half-open interval [Lo, Hi) of interior planes along the
// first axis, counted from 0.
type Range struct {
	Lo, Hi int
}

// Len returns the number of interior planes in the range
func (r Range) Len() int {
	return r.Hi - r.Lo
}

// Partition splits N interior planes between the two devices. Slab s
// stores planes Ranges[s].Lo .. Ranges[s].Hi+1 of the global grid (ghost
// indexing), so local plane p is global plane Ranges[s].Lo+p.
type Partition struct {
	N      int
	Ranges [NumDevices]Range
}

// NewPartition splits n planes evenly across devices. Only the two-way
// split is supported and n must be even; uneven extents are rejected
// rather than rounded so both slabs always have identical shape.
func NewPartition(n, devices int) (Partition, error) {
	if devices != NumDevices {
		return Partition{}, NewPartitionError("Partition",
			fmt.Sprintf("unsupported device count %d, want %d", devices, NumDevices))
	}
	if n < devices {
		return Partition{}, NewPartitionError("Partition",
			fmt.Sprintf("grid extent %d smaller than device count %d", n, devices))
	}
	if n%devices != 0 {
		return Partition{}, NewPartitionError("Partition",
			fmt.Sprintf("grid extent %d not divisible by %d", n, devices))
	}

	half := n / devices
	return Partition{
		N: n,
		Ranges: [NumDevices]Range{
			{Lo: 0, Hi: half},
			{Lo: half, Hi: n},
		},
	}, nil
}
