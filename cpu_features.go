package jacobi

import (
	"strings"

	"golang.org/x/sys/cpu"
)

// CPUFeatures tracks instruction set extensions relevant to the stencil
// inner loop. They are reported with each device; the kernel itself is
// portable Go.
type CPUFeatures struct {
	HasSSE4    bool
	HasAVX     bool
	HasAVX2    bool
	HasAVX512F bool
	HasFMA     bool
	HasASIMD   bool // arm64 Advanced SIMD
}

// detectCPUFeatures reads the host's feature bits
func detectCPUFeatures() CPUFeatures {
	return CPUFeatures{
		HasSSE4:    cpu.X86.HasSSE41 || cpu.X86.HasSSE42,
		HasAVX:     cpu.X86.HasAVX,
		HasAVX2:    cpu.X86.HasAVX2,
		HasAVX512F: cpu.X86.HasAVX512F,
		HasFMA:     cpu.X86.HasFMA,
		HasASIMD:   cpu.ARM64.HasASIMD,
	}
}

// String returns a space separated list of the available features
func (f CPUFeatures) String() string {
	features := []string{}

	if f.HasSSE4 {
		features = append(features, "SSE4")
	}
	if f.HasAVX {
		features = append(features, "AVX")
	}
	if f.HasAVX2 {
		features = append(features, "AVX2")
	}
	if f.HasAVX512F {
		features = append(features, "AVX512F")
	}
	if f.HasFMA {
		features = append(features, "FMA")
	}
	if f.HasASIMD {
		features = append(features, "ASIMD")
	}

	if len(features) == 0 {
		return "scalar"
	}
	return strings.Join(features, " ")
}
