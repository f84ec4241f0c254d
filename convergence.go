package jacobi

import "math"

// ConvergenceMonitor turns the per-device squared-update partials of one
// sweep into an RMS residual and compares it with the tolerance. A nil
// monitor means tracking is off.
type ConvergenceMonitor struct {
	tolerance float64
	points    float64 // N³ interior points
	residual  float64
}

// NewConvergenceMonitor returns a monitor for an n³ grid, or nil when
// tolerance <= 0 disables convergence tracking.
func NewConvergenceMonitor(n int, tolerance float64) *ConvergenceMonitor {
	if tolerance <= 0 {
		return nil
	}
	nf := float64(n)
	return &ConvergenceMonitor{tolerance: tolerance, points: nf * nf * nf}
}

// Observe records a sweep's partial sums and reports convergence
func (m *ConvergenceMonitor) Observe(partials ...float64) bool {
	var sum float64
	for _, p := range partials {
		sum += p
	}
	m.residual = math.Sqrt(sum / m.points)
	return m.residual < m.tolerance
}

// Residual returns the last observed residual, 0 when tracking is off
func (m *ConvergenceMonitor) Residual() float64 {
	if m == nil {
		return 0
	}
	return m.residual
}

// Enabled reports whether the monitor tracks residuals
func (m *ConvergenceMonitor) Enabled() bool {
	return m != nil
}
