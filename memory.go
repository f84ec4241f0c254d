package jacobi

import (
	"fmt"
	"sync"
)

// MemcpyKind specifies the direction of memory transfer. Memcpy checks the
// operand types against the kind so a misrouted copy fails loudly.
type MemcpyKind int

const (
	MemcpyHostToHost     MemcpyKind = iota // Host to host transfer
	MemcpyHostToDevice                     // Host to device transfer
	MemcpyDeviceToHost                     // Device to host transfer
	MemcpyDeviceToDevice                   // Transfer within one device
)

func (k MemcpyKind) String() string {
	switch k {
	case MemcpyHostToHost:
		return "HostToHost"
	case MemcpyHostToDevice:
		return "HostToDevice"
	case MemcpyDeviceToHost:
		return "DeviceToHost"
	case MemcpyDeviceToDevice:
		return "DeviceToDevice"
	default:
		return fmt.Sprintf("MemcpyKind(%d)", int(k))
	}
}

// DevicePtr refers to float64 storage owned by one device's memory pool.
// Offset views share the underlying allocation.
type DevicePtr struct {
	data   []float64
	device int
	id     uint64
	offset int
}

// Float64 returns the device memory as a slice. Only kernels running on
// the owning context should touch it while work is queued.
func (d DevicePtr) Float64() []float64 {
	return d.data
}

// Len returns the number of float64 elements
func (d DevicePtr) Len() int {
	return len(d.data)
}

// Size returns the size in bytes of the memory region
func (d DevicePtr) Size() int {
	return len(d.data) * 8
}

// Device returns the ID of the owning device
func (d DevicePtr) Device() int {
	return d.device
}

// IsNil reports whether d is the zero DevicePtr
func (d DevicePtr) IsNil() bool {
	return d.data == nil
}

// Offset returns a view starting elems elements into d
func (d DevicePtr) Offset(elems int) DevicePtr {
	return DevicePtr{
		data:   d.data[elems:],
		device: d.device,
		id:     d.id,
		offset: d.offset + elems,
	}
}

// MemoryPool manages device memory with reuse of freed blocks and a hard
// byte budget on memory in use. Exceeding the budget is an allocation
// failure. A freed block is reused only by a request of the same aligned
// size.
type MemoryPool struct {
	mu         sync.Mutex
	device     int
	limit      uint64
	nextID     uint64
	allocated  map[uint64]*allocation
	freeList   []*allocation
	totalAlloc int64
	peakAlloc  int64
}

type allocation struct {
	id   uint64
	data []float64
	used bool
}

// NewMemoryPool creates a pool for device with a budget of limit bytes
func NewMemoryPool(device int, limit uint64) *MemoryPool {
	return &MemoryPool{
		device:    device,
		limit:     limit,
		allocated: make(map[uint64]*allocation),
	}
}

// Malloc allocates n float64 elements of device memory. Contents of a
// block reused from the pool are not cleared.
//
// Example:
//
//	ptr, err := ctx.Malloc(grid.Len())
//	if err != nil {
//		return err
//	}
//	defer ctx.Free(ptr)
func (ctx *Context) Malloc(n int) (DevicePtr, error) {
	if err := ctx.check("Malloc"); err != nil {
		return DevicePtr{}, err
	}
	return ctx.memory.Allocate(n)
}

// Free releases device memory allocated by Malloc.
// It is safe to call Free with a zero DevicePtr.
func (ctx *Context) Free(ptr DevicePtr) error {
	if ptr.IsNil() {
		return nil
	}
	return ctx.memory.Free(ptr)
}

// Allocate allocates memory from the pool
func (mp *MemoryPool) Allocate(n int) (ptr DevicePtr, err error) {
	if n <= 0 {
		return DevicePtr{}, NewInvalidArgError("Malloc", fmt.Sprintf("size must be positive, got %d", n))
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	aligned := (n + MemoryAlignment - 1) &^ (MemoryAlignment - 1)
	bytes := int64(aligned) * 8

	if uint64(mp.totalAlloc+bytes) > mp.limit {
		return DevicePtr{}, NewAllocationError("Malloc", mp.device,
			fmt.Sprintf("requested %d bytes with %d of %d in use", bytes, mp.totalAlloc, mp.limit), nil)
	}

	// Reuse only blocks of the same aligned size, so the charge always
	// equals what the budget check above admitted.
	for i, alloc := range mp.freeList {
		if cap(alloc.data) == aligned {
			mp.freeList = append(mp.freeList[:i], mp.freeList[i+1:]...)
			alloc.used = true
			mp.track(bytes)
			return DevicePtr{data: alloc.data[:n:n], device: mp.device, id: alloc.id}, nil
		}
	}

	defer func() {
		if r := recover(); r != nil {
			ptr = DevicePtr{}
			err = NewAllocationError("Malloc", mp.device,
				fmt.Sprintf("cannot allocate %d bytes", bytes), fmt.Errorf("%v", r))
		}
	}()
	data := make([]float64, aligned)

	mp.nextID++
	alloc := &allocation{id: mp.nextID, data: data, used: true}
	mp.allocated[alloc.id] = alloc
	mp.track(bytes)

	return DevicePtr{data: data[:n:n], device: mp.device, id: alloc.id}, nil
}

func (mp *MemoryPool) track(bytes int64) {
	mp.totalAlloc += bytes
	if mp.totalAlloc > mp.peakAlloc {
		mp.peakAlloc = mp.totalAlloc
	}
}

// Free returns memory to the pool
func (mp *MemoryPool) Free(ptr DevicePtr) error {
	if ptr.device != mp.device {
		return NewInvalidArgError("Free",
			fmt.Sprintf("pointer belongs to device %d, not %d", ptr.device, mp.device))
	}
	if ptr.offset != 0 {
		return NewInvalidArgError("Free", "pointer is an offset view")
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	alloc, ok := mp.allocated[ptr.id]
	if !ok {
		return NewInvalidArgError("Free", "pointer not found in allocation pool")
	}
	if !alloc.used {
		return &SolverError{Type: ErrTypeInvalidArg, Op: "Free", Message: "pointer already released",
			Device: mp.device, Err: ErrDoubleFree}
	}

	alloc.used = false
	mp.freeList = append(mp.freeList, alloc)
	mp.totalAlloc -= int64(cap(alloc.data)) * 8
	return nil
}

// GetStats returns memory pool statistics
func (mp *MemoryPool) GetStats() (allocated, peak int64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return mp.totalAlloc, mp.peakAlloc
}

// Memcpy copies n float64 elements. Device operands are DevicePtr values
// owned by ctx; host operands are []float64. The copy waits for work
// already queued on ctx, so it never observes a half-finished kernel.
func (ctx *Context) Memcpy(dst, src interface{}, n int, kind MemcpyKind) error {
	if err := ctx.check("Memcpy"); err != nil {
		return err
	}
	if n < 0 {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("negative element count %d", n))
	}

	dstDevice := kind == MemcpyHostToDevice || kind == MemcpyDeviceToDevice
	srcDevice := kind == MemcpyDeviceToHost || kind == MemcpyDeviceToDevice
	if kind < MemcpyHostToHost || kind > MemcpyDeviceToDevice {
		return NewInvalidArgError("Memcpy", fmt.Sprintf("unsupported kind %v", kind))
	}

	d, err := ctx.operand("dst", dst, dstDevice, kind)
	if err != nil {
		return err
	}
	s, err := ctx.operand("src", src, srcDevice, kind)
	if err != nil {
		return err
	}

	if err := ctx.stream.Synchronize(); err != nil {
		return NewDeviceError("Memcpy", ctx.ID(), "queued work failed", err)
	}
	return copyElems(ctx.ID(), d, s, n, kind)
}

// MemcpyPeer copies n elements from src, owned by srcCtx, into dst, owned
// by ctx, without staging through host memory. ctx must have peer access
// to srcCtx.
func (ctx *Context) MemcpyPeer(dst DevicePtr, src DevicePtr, srcCtx *Context, n int) error {
	if err := ctx.check("MemcpyPeer"); err != nil {
		return err
	}
	if srcCtx == nil {
		return NewInvalidArgError("MemcpyPeer", "nil source context")
	}
	if err := srcCtx.check("MemcpyPeer"); err != nil {
		return err
	}
	if !ctx.CanAccessPeer(srcCtx) {
		return NewDeviceError("MemcpyPeer", ctx.ID(),
			fmt.Sprintf("peer access to device %d not enabled", srcCtx.ID()), nil)
	}
	if dst.device != ctx.ID() || src.device != srcCtx.ID() {
		return NewInvalidArgError("MemcpyPeer",
			fmt.Sprintf("operands on devices %d<-%d, want %d<-%d", dst.device, src.device, ctx.ID(), srcCtx.ID()))
	}

	if err := srcCtx.stream.Synchronize(); err != nil {
		return NewDeviceError("MemcpyPeer", srcCtx.ID(), "queued work failed", err)
	}
	if err := ctx.stream.Synchronize(); err != nil {
		return NewDeviceError("MemcpyPeer", ctx.ID(), "queued work failed", err)
	}
	return copyElems(ctx.ID(), dst.data, src.data, n, MemcpyDeviceToDevice)
}

// operand resolves a Memcpy argument to its slice, enforcing that device
// operands belong to ctx and host operands are plain slices.
func (ctx *Context) operand(name string, v interface{}, onDevice bool, kind MemcpyKind) ([]float64, error) {
	switch x := v.(type) {
	case DevicePtr:
		if !onDevice {
			return nil, NewInvalidArgError("Memcpy", fmt.Sprintf("%s is device memory for %v", name, kind))
		}
		if x.device != ctx.ID() {
			return nil, NewInvalidArgError("Memcpy",
				fmt.Sprintf("%s belongs to device %d, not %d", name, x.device, ctx.ID()))
		}
		return x.data, nil
	case []float64:
		if onDevice {
			return nil, NewInvalidArgError("Memcpy", fmt.Sprintf("%s is host memory for %v", name, kind))
		}
		return x, nil
	default:
		return nil, NewInvalidArgError("Memcpy", fmt.Sprintf("unsupported %s type: %T", name, v))
	}
}

func copyElems(device int, dst, src []float64, n int, kind MemcpyKind) error {
	if n > len(dst) || n > len(src) {
		return NewDeviceError("Memcpy", device,
			fmt.Sprintf("%v copy of %d elements exceeds buffers (dst %d, src %d)", kind, n, len(dst), len(src)), nil)
	}
	copy(dst[:n], src[:n])
	return nil
}
