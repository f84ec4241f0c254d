//go:build !linux

package jacobi

func systemMemory() uint64 {
	return DefaultDeviceMemory
}
