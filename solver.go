package jacobi

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pkg/errors"
)

// State is the solver's position in its lifecycle
type State int

const (
	StateInitializing State = iota
	StateRunning
	StateConverged
	StateMaxIterReached
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateRunning:
		return "Running"
	case StateConverged:
		return "Converged"
	case StateMaxIterReached:
		return "MaxIterReached"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Result reports how a solve ended. Residual is the RMS update of the
// last sweep, or 0 when convergence tracking was off.
type Result struct {
	Iterations int
	Residual   float64
	State      State
}

// Converged reports whether the tolerance was reached
func (r Result) Converged() bool {
	return r.State == StateConverged
}

// SolveOptions controls a single Solve call
type SolveOptions struct {
	// MaxIterations bounds the number of sweeps. Zero performs none.
	MaxIterations int

	// Tolerance stops the loop once the RMS update of a sweep drops below
	// it. Values <= 0 turn convergence tracking off; +Inf stops after the
	// first sweep.
	Tolerance float64

	// Progress, if set, is called after every committed sweep
	Progress func(iteration int, residual float64)
}

// Solver runs the two-device Jacobi iteration. A Solver drives the
// contexts it was given exclusively for the duration of Solve and is not
// safe for concurrent Solve calls.
type Solver struct {
	devices   [NumDevices]*Context
	exchanger HaloExchanger
	logger    *slog.Logger
	state     State
}

// SolverOption configures a Solver
type SolverOption func(*Solver)

// WithExchanger replaces the default host-staged halo exchanger
func WithExchanger(x HaloExchanger) SolverOption {
	return func(s *Solver) { s.exchanger = x }
}

// WithSolverLogger sets the solver's logger
func WithSolverLogger(l *slog.Logger) SolverOption {
	return func(s *Solver) { s.logger = l }
}

// NewSolver binds a solver to two device contexts. devices[0] owns the
// lower slab, devices[1] the upper one.
func NewSolver(devices [NumDevices]*Context, opts ...SolverOption) (*Solver, error) {
	for d, ctx := range devices {
		if ctx == nil {
			return nil, NewInvalidArgError("NewSolver", fmt.Sprintf("device %d context is nil", d))
		}
	}
	if devices[0].ID() == devices[1].ID() {
		return nil, NewInvalidArgError("NewSolver",
			fmt.Sprintf("both slabs bound to device %d", devices[0].ID()))
	}

	s := &Solver{devices: devices}
	for _, opt := range opts {
		opt(s)
	}
	if s.exchanger == nil {
		s.exchanger = NewStagedExchanger()
	}
	if s.logger == nil {
		s.logger = discardLogger()
	}
	return s, nil
}

// State returns the state reached by the most recent Solve. A Solve that
// returned an error leaves StateFailed.
func (s *Solver) State() State {
	return s.state
}

// Solve relaxes u towards the solution of -∇²u = f on an n³ grid. u must
// carry the boundary values in its ghost layer; its interior is updated in
// place when Solve succeeds and left untouched when it fails.
//
// Example:
//
//	res, err := s.Solve(f, u, 100, jacobi.SolveOptions{MaxIterations: 1000, Tolerance: 1e-4})
func (s *Solver) Solve(f, u *Grid, n int, opts SolveOptions) (_ Result, err error) {
	s.state = StateInitializing
	defer func() {
		if err != nil {
			s.state = StateFailed
		}
	}()

	part, err := NewPartition(n, NumDevices)
	if err != nil {
		return Result{}, err
	}
	if err := validate(f, u, n, opts); err != nil {
		return Result{}, err
	}

	slabs, err := s.allocate(part)
	if err != nil {
		return Result{}, err
	}
	defer s.release(slabs)

	for _, slab := range slabs {
		if err := slab.load(f, u); err != nil {
			return Result{}, err
		}
	}

	kernel := NewStencilKernel(n)
	monitor := NewConvergenceMonitor(n, opts.Tolerance)
	s.state = StateRunning
	s.logger.Debug("solve started",
		"n", n,
		"max_iterations", opts.MaxIterations,
		"tolerance", opts.Tolerance,
		"devices", []int{s.devices[0].ID(), s.devices[1].ID()})

	res := Result{State: StateMaxIterReached}
	for iter := 1; iter <= opts.MaxIterations; iter++ {
		if err := s.sweep(kernel, slabs, monitor.Enabled()); err != nil {
			return Result{}, errors.Wrapf(err, "sweep %d", iter)
		}
		if err := s.exchanger.Exchange(slabs[0], slabs[1]); err != nil {
			return Result{}, errors.Wrapf(err, "sweep %d", iter)
		}
		for _, slab := range slabs {
			slab.swap()
		}
		res.Iterations = iter

		// The sweep is committed; only now decide whether to stop.
		converged := false
		if monitor.Enabled() {
			converged = monitor.Observe(slabs[0].partial, slabs[1].partial)
			res.Residual = monitor.Residual()
		}
		s.logger.Debug("sweep", "iteration", iter, "residual", res.Residual)
		if opts.Progress != nil {
			opts.Progress(iter, res.Residual)
		}
		if converged {
			res.State = StateConverged
			break
		}
	}

	// Read both slabs back before touching u, so a failed copy leaves it
	// as it was.
	var final [NumDevices][]float64
	for d, slab := range slabs {
		if final[d], err = slab.fetch(); err != nil {
			return Result{}, err
		}
	}
	for d, slab := range slabs {
		slab.commit(u, final[d])
	}

	s.state = res.State
	s.logger.Info("solve finished",
		"state", res.State.String(),
		"iterations", res.Iterations,
		"residual", res.Residual)
	return res, nil
}

// sweep launches the stencil on both devices and joins them. Both devices
// are always joined, even when one launch fails, so no kernel outlives the
// sweep.
func (s *Solver) sweep(k StencilKernel, slabs [NumDevices]*Slab, track bool) error {
	var errs [NumDevices]error
	for d, slab := range slabs {
		errs[d] = k.Launch(slab, track)
	}
	for d, slab := range slabs {
		if err := slab.ctx.Synchronize(); err != nil && errs[d] == nil {
			errs[d] = err
		}
	}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Solver) allocate(part Partition) ([NumDevices]*Slab, error) {
	var slabs [NumDevices]*Slab
	for d, ctx := range s.devices {
		slab, err := newSlab(ctx, d, part.Ranges[d], part.N)
		if err != nil {
			s.release(slabs)
			return slabs, errors.Wrapf(err, "allocate slab %d", d)
		}
		slabs[d] = slab
	}
	return slabs, nil
}

func (s *Solver) release(slabs [NumDevices]*Slab) {
	for _, slab := range slabs {
		if slab == nil {
			continue
		}
		if err := slab.release(); err != nil {
			s.logger.Warn("release slab", "slab", slab.Index, "error", err)
		}
	}
}

func validate(f, u *Grid, n int, opts SolveOptions) error {
	if f == nil || u == nil {
		return NewInvalidArgError("Solve", "source and estimate grids are required")
	}
	if !f.IsCube(n) || !u.IsCube(n) {
		return NewInvalidArgError("Solve", fmt.Sprintf("grids must be %d^3 with %d values, got %dx%dx%d (%d) and %dx%dx%d (%d)",
			n, (n+2)*(n+2)*(n+2), f.Nx, f.Ny, f.Nz, len(f.Data), u.Nx, u.Ny, u.Nz, len(u.Data)))
	}
	if opts.MaxIterations < 0 {
		return NewInvalidArgError("Solve", fmt.Sprintf("negative iteration limit %d", opts.MaxIterations))
	}
	if math.IsNaN(opts.Tolerance) {
		return NewInvalidArgError("Solve", "tolerance is NaN")
	}
	return nil
}
