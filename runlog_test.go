package jacobi

import (
	"math"
	"path/filepath"
	"testing"
	"time"
)

func TestNewRunRecord(t *testing.T) {
	opts := SolveOptions{MaxIterations: 100, Tolerance: 1e-4}
	tests := []struct {
		name   string
		res    Result
		err    error
		status string
	}{
		{"Converged", Result{Iterations: 40, Residual: 5e-5, State: StateConverged}, nil, "converged"},
		{"MaxIter", Result{Iterations: 100, Residual: 1e-3, State: StateMaxIterReached}, nil, "max_iter"},
		{"Fail", Result{}, NewPartitionError("Partition", "odd"), "fail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := NewRunRecord(10, opts, tt.res, time.Second, tt.err)
			if rec.Status != tt.status {
				t.Errorf("Status = %q, want %q", rec.Status, tt.status)
			}
			if (rec.Error != "") != (tt.err != nil) {
				t.Errorf("Error = %q for err %v", rec.Error, tt.err)
			}
			want := 1000 * float64(tt.res.Iterations) / 1e6
			if math.Abs(rec.MLUPS-want) > 1e-12 {
				t.Errorf("MLUPS = %v, want %v", rec.MLUPS, want)
			}
		})
	}
}

func TestRunLogRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "runs")
	rl, err := NewRunLog(dir, "test")
	if err != nil {
		t.Fatalf("NewRunLog failed: %v", err)
	}

	// A fresh session file is valid and empty
	records, err := ReadRunLog(rl.Path())
	if err != nil {
		t.Fatalf("ReadRunLog failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("fresh log holds %d records", len(records))
	}

	opts := SolveOptions{MaxIterations: 10}
	for i := 1; i <= 2; i++ {
		rec := NewRunRecord(4*i, opts, Result{Iterations: 10, State: StateMaxIterReached}, time.Millisecond, nil)
		rec.Devices = []int{0, 1}
		rec.Exchanger = "staged"
		if err := rl.Record(rec); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	records, err = ReadRunLog(rl.Path())
	if err != nil {
		t.Fatalf("ReadRunLog failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("read %d records, want 2", len(records))
	}
	for i, rec := range records {
		if rec.N != 4*(i+1) || rec.Status != "max_iter" || rec.Exchanger != "staged" {
			t.Errorf("record %d = %+v", i, rec)
		}
		if rec.Timestamp.IsZero() {
			t.Errorf("record %d has no timestamp", i)
		}
	}
	if got := len(rl.Records()); got != 2 {
		t.Errorf("Records() returned %d records", got)
	}
}

func TestReadRunLogMissingFile(t *testing.T) {
	if _, err := ReadRunLog(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("ReadRunLog of a missing file succeeded")
	}
}
