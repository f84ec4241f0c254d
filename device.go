package jacobi

import (
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

// Device represents a compute device. Every device is backed by the host
// CPU; devices are distinguished by ID and own disjoint memory pools and
// streams, so two devices behave like two accelerators sharing a host.
type Device struct {
	ID       int         // Device identifier chosen by the caller
	Name     string      // Human-readable device name
	TotalMem uint64      // Memory budget in bytes
	NumCores int         // Worker goroutines used by a kernel launch
	Features CPUFeatures // Instruction set extensions of the host
}

// String returns a one-line description of the device
func (d *Device) String() string {
	return fmt.Sprintf("%s (id %d, %d workers, %d MiB, %s)",
		d.Name, d.ID, d.NumCores, d.TotalMem>>20, d.Features)
}

// Context represents an execution context bound to one device. It owns
// the device's memory pool and its single in-order stream. Contexts are
// explicit values; there is no process-wide current device.
type Context struct {
	device *Device
	memory *MemoryPool
	stream *Stream
	logger *slog.Logger

	mu    sync.Mutex
	peers map[int]bool

	destroyed atomic.Bool
}

// ContextOption configures a Context at creation
type ContextOption func(*contextConfig)

type contextConfig struct {
	memLimit uint64
	workers  int
	logger   *slog.Logger
}

// WithMemoryLimit caps the bytes the device can hand out
func WithMemoryLimit(bytes uint64) ContextOption {
	return func(c *contextConfig) { c.memLimit = bytes }
}

// WithWorkers sets the number of worker goroutines per launch
func WithWorkers(n int) ContextOption {
	return func(c *contextConfig) { c.workers = n }
}

// WithLogger sets the context's logger
func WithLogger(l *slog.Logger) ContextOption {
	return func(c *contextConfig) { c.logger = l }
}

// NewContext creates an execution context for the device with the given ID.
//
// Example:
//
//	ctx, err := jacobi.NewContext(0, jacobi.WithWorkers(8))
//	if err != nil {
//		return err
//	}
//	defer ctx.Destroy()
func NewContext(id int, opts ...ContextOption) (*Context, error) {
	if id < 0 {
		return nil, NewInvalidArgError("NewContext", fmt.Sprintf("invalid device ID: %d", id))
	}

	cfg := contextConfig{
		memLimit: systemMemory(),
		workers:  runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers <= 0 {
		return nil, NewInvalidArgError("NewContext", fmt.Sprintf("invalid worker count: %d", cfg.workers))
	}
	if cfg.logger == nil {
		cfg.logger = discardLogger()
	}

	dev := &Device{
		ID:       id,
		Name:     "CPU",
		TotalMem: cfg.memLimit,
		NumCores: cfg.workers,
		Features: detectCPUFeatures(),
	}

	ctx := &Context{
		device: dev,
		memory: NewMemoryPool(id, cfg.memLimit),
		stream: newStream(id),
		logger: cfg.logger.With("device", id),
		peers:  make(map[int]bool),
	}
	ctx.logger.Info("device context created",
		"name", dev.Name,
		"workers", dev.NumCores,
		"mem_mib", dev.TotalMem>>20,
		"features", dev.Features.String())
	return ctx, nil
}

// Device returns the device the context is bound to
func (ctx *Context) Device() *Device {
	return ctx.device
}

// ID returns the device ID
func (ctx *Context) ID() int {
	return ctx.device.ID
}

// MemoryStats returns bytes currently allocated and the peak
func (ctx *Context) MemoryStats() (allocated, peak int64) {
	return ctx.memory.GetStats()
}

// EnablePeerAccess allows this context to copy directly from peer's memory.
// Access is one-directional, as with cudaDeviceEnablePeerAccess.
func (ctx *Context) EnablePeerAccess(peer *Context) error {
	if err := ctx.check("EnablePeerAccess"); err != nil {
		return err
	}
	if peer == nil || peer.ID() == ctx.ID() {
		return NewInvalidArgError("EnablePeerAccess", "peer must be a different device")
	}
	ctx.mu.Lock()
	ctx.peers[peer.ID()] = true
	ctx.mu.Unlock()
	return nil
}

// CanAccessPeer reports whether EnablePeerAccess was called for peer
func (ctx *Context) CanAccessPeer(peer *Context) bool {
	if peer == nil {
		return false
	}
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return ctx.peers[peer.ID()]
}

// Synchronize waits for all work submitted to the context's stream and
// returns the first failure, if any.
func (ctx *Context) Synchronize() error {
	if err := ctx.check("Synchronize"); err != nil {
		return err
	}
	if err := ctx.stream.Synchronize(); err != nil {
		return NewDeviceError("Synchronize", ctx.ID(), "stream task failed", err)
	}
	return nil
}

// Destroy drains the stream and releases the context. Any later operation
// on the context fails with a device error.
func (ctx *Context) Destroy() error {
	if ctx.destroyed.Swap(true) {
		return nil
	}
	err := ctx.stream.Synchronize()
	ctx.stream.close()
	ctx.logger.Info("device context destroyed")
	if err != nil {
		return NewDeviceError("Destroy", ctx.ID(), "pending work failed", err)
	}
	return nil
}

// check rejects operations on a destroyed context
func (ctx *Context) check(op string) error {
	if ctx.destroyed.Load() {
		return NewDeviceError(op, ctx.ID(), "context is not usable", ErrContextDestroyed)
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenDevices creates one context per device ID, in order. On failure the
// contexts created so far are destroyed.
func OpenDevices(ids [NumDevices]int, opts ...ContextOption) ([NumDevices]*Context, error) {
	var devs [NumDevices]*Context
	for d, id := range ids {
		ctx, err := NewContext(id, opts...)
		if err != nil {
			CloseDevices(devs)
			return [NumDevices]*Context{}, err
		}
		devs[d] = ctx
	}
	return devs, nil
}

// CloseDevices destroys every non-nil context and returns the first error
func CloseDevices(devs [NumDevices]*Context) error {
	var first error
	for _, ctx := range devs {
		if ctx == nil {
			continue
		}
		if err := ctx.Destroy(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
