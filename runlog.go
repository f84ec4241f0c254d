package jacobi

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RunRecord captures one solve for later comparison
type RunRecord struct {
	N             int           `json:"n"`
	MaxIterations int           `json:"max_iterations"`
	Tolerance     float64       `json:"tolerance,omitempty"`
	Devices       []int         `json:"devices"`
	Exchanger     string        `json:"exchanger"`
	Status        string        `json:"status"` // "converged", "max_iter", "fail"
	Iterations    int           `json:"iterations"`
	Residual      float64       `json:"residual"`
	Duration      time.Duration `json:"duration"`
	MLUPS         float64       `json:"mlups,omitempty"` // million point updates per second
	Error         string        `json:"error,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// NewRunRecord fills the outcome fields of a record from a solve
func NewRunRecord(n int, opts SolveOptions, res Result, elapsed time.Duration, err error) RunRecord {
	rec := RunRecord{
		N:             n,
		MaxIterations: opts.MaxIterations,
		Tolerance:     opts.Tolerance,
		Iterations:    res.Iterations,
		Residual:      res.Residual,
		Duration:      elapsed,
	}
	switch {
	case err != nil:
		rec.Status = "fail"
		rec.Error = err.Error()
	case res.Converged():
		rec.Status = "converged"
	default:
		rec.Status = "max_iter"
	}
	if secs := elapsed.Seconds(); secs > 0 && res.Iterations > 0 {
		points := float64(n) * float64(n) * float64(n)
		rec.MLUPS = points * float64(res.Iterations) / secs / 1e6
	}
	return rec
}

// RunLog appends run records to a JSON session file
type RunLog struct {
	mu      sync.Mutex
	records []RunRecord
	path    string
}

// NewRunLog creates dir if needed and starts a session file named after
// session and the current time.
func NewRunLog(dir, session string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("20060102_150405")
	rl := &RunLog{
		path: filepath.Join(dir, fmt.Sprintf("%s_%s.json", session, timestamp)),
	}
	return rl, rl.flush()
}

// Path returns the session file
func (rl *RunLog) Path() string {
	return rl.path
}

// Record appends rec and rewrites the session file
func (rl *RunLog) Record(rec RunRecord) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	rl.records = append(rl.records, rec)

	// Flush to disk immediately to avoid losing data on crash
	return rl.flush()
}

// Records returns a copy of the records logged so far
func (rl *RunLog) Records() []RunRecord {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return append([]RunRecord(nil), rl.records...)
}

// flush writes records to disk
func (rl *RunLog) flush() error {
	data, err := json.MarshalIndent(rl.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	return os.WriteFile(rl.path, data, 0644)
}

// ReadRunLog loads the records of a session file
func ReadRunLog(path string) ([]RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return records, nil
}
