// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command poisson runs the two-device Jacobi solver on the radiator heat
// problem and reports the iteration count, residual and throughput.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	jacobi "github.com/LynnColeArt/guda-jacobi"
)

func main() {
	var (
		n        = flag.Int("n", jacobi.DefaultGridSize, "Interior grid points per axis (must be even)")
		iterMax  = flag.Int("iter", jacobi.DefaultMaxIterations, "Maximum number of sweeps")
		tol      = flag.Float64("tol", 0, "Stop when the RMS update drops below this (0 disables)")
		boundary = flag.Float64("t", jacobi.DefaultBoundaryValue, "Boundary temperature on every face")
		radiator = flag.Float64("radiator", jacobi.DefaultRadiatorValue, "Source value inside the radiator")
		devices  = flag.String("devices", "0,1", "Device ID pair for the lower and upper slab")
		workers  = flag.Int("workers", 0, "Worker goroutines per device (0 = all CPUs)")
		peer     = flag.Bool("peer", false, "Copy halo planes directly between devices")
		verify   = flag.Bool("verify", false, "Compare against the single-device reference")
		logDir   = flag.String("log-dir", "", "Append a JSON run record to a session file in this directory")
		verbose  = flag.Bool("v", false, "Log every sweep")
		version  = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *version {
		v, sum := jacobi.Version()
		fmt.Printf("poisson %s %s\n", v, sum)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ids, err := parseDevices(*devices)
	if err != nil {
		log.Fatalf("Invalid -devices: %v", err)
	}

	ctxOpts := []jacobi.ContextOption{jacobi.WithLogger(logger)}
	if *workers > 0 {
		ctxOpts = append(ctxOpts, jacobi.WithWorkers(*workers))
	}
	devs, err := jacobi.OpenDevices(ids, ctxOpts...)
	if err != nil {
		log.Fatalf("Failed to open devices: %v", err)
	}
	defer jacobi.CloseDevices(devs)

	solverOpts := []jacobi.SolverOption{jacobi.WithSolverLogger(logger)}
	exchanger := "staged"
	if *peer {
		if err := devs[0].EnablePeerAccess(devs[1]); err != nil {
			log.Fatalf("Failed to enable peer access: %v", err)
		}
		if err := devs[1].EnablePeerAccess(devs[0]); err != nil {
			log.Fatalf("Failed to enable peer access: %v", err)
		}
		solverOpts = append(solverOpts, jacobi.WithExchanger(jacobi.NewPeerExchanger()))
		exchanger = "peer"
	}

	solver, err := jacobi.NewSolver(devs, solverOpts...)
	if err != nil {
		log.Fatalf("Failed to create solver: %v", err)
	}

	f, err := jacobi.RadiatorSource(*n, *radiator)
	if err != nil {
		log.Fatalf("Failed to build source: %v", err)
	}
	u, err := jacobi.NewCubeGrid(*n)
	if err != nil {
		log.Fatalf("Failed to allocate grid: %v", err)
	}
	jacobi.ApplyBoundary(u, *boundary)

	var initial *jacobi.Grid
	if *verify {
		initial = u.Clone()
	}

	opts := jacobi.SolveOptions{MaxIterations: *iterMax, Tolerance: *tol}
	start := time.Now()
	res, solveErr := solver.Solve(f, u, *n, opts)
	elapsed := time.Since(start)

	if *logDir != "" {
		rec := jacobi.NewRunRecord(*n, opts, res, elapsed, solveErr)
		rec.Devices = []int{ids[0], ids[1]}
		rec.Exchanger = exchanger
		if err := appendRecord(*logDir, rec); err != nil {
			logger.Warn("run record not written", "error", err)
		}
	}
	if solveErr != nil {
		log.Fatalf("Solve failed: %v", solveErr)
	}

	fmt.Printf("State:       %s\n", res.State)
	fmt.Printf("Iterations:  %d\n", res.Iterations)
	fmt.Printf("Residual:    %.6g\n", res.Residual)
	fmt.Printf("Time:        %.6f s\n", elapsed.Seconds())
	fmt.Printf("Center u:    %.6f\n", u.At(*n/2, *n/2, *n/2))

	if *verify {
		ref := initial
		if _, err := jacobi.ReferenceSolve(f, ref, *n, opts); err != nil {
			log.Fatalf("Reference solve failed: %v", err)
		}
		result := jacobi.VerifyFloat64Array(ref.Data, u.Data, jacobi.DefaultTolerance())
		fmt.Println(result)
		if !result.Passed() {
			os.Exit(1)
		}
	}
}

func parseDevices(s string) ([jacobi.NumDevices]int, error) {
	var ids [jacobi.NumDevices]int
	parts := strings.Split(s, ",")
	if len(parts) != jacobi.NumDevices {
		return ids, fmt.Errorf("want %d comma-separated IDs, got %q", jacobi.NumDevices, s)
	}
	for i, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return ids, err
		}
		ids[i] = id
	}
	return ids, nil
}

func appendRecord(dir string, rec jacobi.RunRecord) error {
	rl, err := jacobi.NewRunLog(dir, "poisson")
	if err != nil {
		return err
	}
	return rl.Record(rec)
}
