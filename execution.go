package jacobi

import (
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"
)

// Dim3 represents 3D dimensions for grid and block configurations.
type Dim3 struct {
	X, Y, Z int
}

// Size returns the total number of elements
func (d Dim3) Size() int {
	return d.X * d.Y * d.Z
}

// ThreadID identifies a thread's position within the launch: block index
// within the grid, thread index within the block and both extents.
type ThreadID struct {
	BlockIdx  Dim3
	ThreadIdx Dim3
	BlockDim  Dim3
	GridDim   Dim3
}

// GlobalX returns the global X index
func (tid ThreadID) GlobalX() int {
	return tid.BlockIdx.X*tid.BlockDim.X + tid.ThreadIdx.X
}

// GlobalY returns the global Y index
func (tid ThreadID) GlobalY() int {
	return tid.BlockIdx.Y*tid.BlockDim.Y + tid.ThreadIdx.Y
}

// GlobalZ returns the global Z index
func (tid ThreadID) GlobalZ() int {
	return tid.BlockIdx.Z*tid.BlockDim.Z + tid.ThreadIdx.Z
}

// KernelFunc is executed once per thread of a launch. Implementations are
// called concurrently and must only write memory owned by their thread.
type KernelFunc func(tid ThreadID)

// ReduceKernelFunc is a kernel that also contributes a value to a sum
// reduction over all threads of the launch.
type ReduceKernelFunc func(tid ThreadID) float64

// Stream is an ordered sequence of tasks executed by one goroutine.
// Tasks in a stream run in submission order; tasks in different streams
// run concurrently.
type Stream struct {
	id    int
	tasks chan func() error
	done  chan struct{}
	wg    sync.WaitGroup

	errMu sync.Mutex
	err   error

	mu     sync.Mutex
	closed bool
}

func newStream(id int) *Stream {
	s := &Stream{
		id:    id,
		tasks: make(chan func() error, 64),
		done:  make(chan struct{}),
	}
	go s.worker()
	return s
}

// worker processes tasks for a stream. Once a task fails the remaining
// tasks are skipped until the error is collected by Synchronize.
func (s *Stream) worker() {
	for task := range s.tasks {
		s.errMu.Lock()
		failed := s.err != nil
		s.errMu.Unlock()

		if !failed {
			if err := task(); err != nil {
				s.errMu.Lock()
				s.err = err
				s.errMu.Unlock()
			}
		}
		s.wg.Done()
	}
	close(s.done)
}

// Submit adds a task to the stream
func (s *Stream) Submit(task func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrContextDestroyed
	}
	s.wg.Add(1)
	s.tasks <- task
	return nil
}

// Synchronize waits for all tasks in the stream to complete and returns
// the first task error since the previous Synchronize.
func (s *Stream) Synchronize() error {
	s.wg.Wait()
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.err
	s.err = nil
	return err
}

func (s *Stream) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.tasks)
	s.mu.Unlock()
	<-s.done
}

// LaunchFunc queues fn over grid x block on the context's stream. It
// returns once the launch is queued; use Synchronize to wait for it.
func (ctx *Context) LaunchFunc(fn KernelFunc, grid, block Dim3) error {
	if err := ctx.check("Launch"); err != nil {
		return err
	}
	return ctx.submit("Launch", func() error {
		return ctx.launchInternal(grid, block, func(tid ThreadID, _ *float64) {
			fn(tid)
		}, nil)
	})
}

// LaunchReduce queues fn like LaunchFunc and stores the sum of all values
// returned by the threads into out. out is valid after Synchronize.
func (ctx *Context) LaunchReduce(fn ReduceKernelFunc, grid, block Dim3, out *float64) error {
	if err := ctx.check("LaunchReduce"); err != nil {
		return err
	}
	if out == nil {
		return NewInvalidArgError("LaunchReduce", "nil reduction target")
	}
	return ctx.submit("LaunchReduce", func() error {
		partials := make([]paddedSum, ctx.device.NumCores)
		err := ctx.launchInternal(grid, block, func(tid ThreadID, acc *float64) {
			*acc += fn(tid)
		}, partials)
		if err != nil {
			return err
		}
		var sum float64
		for i := range partials {
			sum += partials[i].v
		}
		*out = sum
		return nil
	})
}

func (ctx *Context) submit(op string, task func() error) error {
	if err := ctx.stream.Submit(task); err != nil {
		return NewDeviceError(op, ctx.ID(), "stream rejected task", err)
	}
	return nil
}

// paddedSum keeps per-worker partial sums on separate cache lines
type paddedSum struct {
	v float64
	_ cpu.CacheLinePad
}

// launchInternal implements the core kernel execution logic. Blocks are
// spread evenly over the context's workers; a worker executes the threads
// of a block sequentially. When partials are given, worker w accumulates
// into partials[w].
func (ctx *Context) launchInternal(
	grid, block Dim3,
	kernel func(tid ThreadID, acc *float64),
	partials []paddedSum,
) error {
	gridSize := grid.Size()
	blockSize := block.Size()
	if gridSize == 0 || blockSize == 0 {
		return nil
	}

	numWorkers := ctx.device.NumCores
	if gridSize < numWorkers {
		numWorkers = gridSize
	}
	blocksPerWorker := (gridSize + numWorkers - 1) / numWorkers

	var (
		wg       sync.WaitGroup
		panicMu  sync.Mutex
		panicErr error
	)
	wg.Add(numWorkers)

	for w := 0; w < numWorkers; w++ {
		startBlock := w * blocksPerWorker
		endBlock := startBlock + blocksPerWorker
		if endBlock > gridSize {
			endBlock = gridSize
		}

		var acc *float64
		if partials != nil {
			acc = &partials[w].v
		} else {
			acc = new(float64)
		}

		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					if panicErr == nil {
						panicErr = errors.Errorf("%v", r)
					}
					panicMu.Unlock()
				}
			}()

			for blockID := startBlock; blockID < endBlock; blockID++ {
				blockIdx := linearTo3D(blockID, grid)
				for threadID := 0; threadID < blockSize; threadID++ {
					kernel(ThreadID{
						BlockIdx:  blockIdx,
						ThreadIdx: linearTo3D(threadID, block),
						BlockDim:  block,
						GridDim:   grid,
					}, acc)
				}
			}
		}()
	}

	wg.Wait()

	if panicErr != nil {
		return NewDeviceError("Launch", ctx.ID(), "kernel panicked", panicErr)
	}
	return nil
}

// linearTo3D converts a linear index to 3D coordinates
func linearTo3D(linear int, dim Dim3) Dim3 {
	z := linear / (dim.X * dim.Y)
	y := (linear % (dim.X * dim.Y)) / dim.X
	x := linear % dim.X
	return Dim3{X: x, Y: y, Z: z}
}
