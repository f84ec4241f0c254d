//go:build linux

package jacobi

import "golang.org/x/sys/unix"

// systemMemory returns total host memory in bytes
func systemMemory() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return DefaultDeviceMemory
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	if total == 0 {
		return DefaultDeviceMemory
	}
	return total
}
