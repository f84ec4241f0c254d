// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package jacobi solves the 3-D Poisson problem -∇²u = f on [-1,1]^3 by
// Jacobi relaxation split across two device contexts.
//
// Each device owns a contiguous slab of the grid along the first axis.
// Every sweep runs the 7-point stencil on both slabs concurrently, joins
// both devices, exchanges the two planes adjacent to the split and flips
// the role of the slabs' current and next buffers. An optional RMS
// residual stops the loop early.
//
// Devices are CPU-backed contexts modelled on the CUDA runtime: each has
// its own memory pool, an in-order stream and explicit host/device copies.
//
// Example usage:
//
//	devs, err := jacobi.OpenDevices([2]int{0, 1})
//	if err != nil {
//		return err
//	}
//	defer jacobi.CloseDevices(devs)
//
//	f, _ := jacobi.RadiatorSource(n, jacobi.DefaultRadiatorValue)
//	u, _ := jacobi.NewCubeGrid(n)
//	jacobi.ApplyBoundary(u, jacobi.DefaultBoundaryValue)
//
//	s, _ := jacobi.NewSolver(devs)
//	res, err := s.Solve(f, u, n, jacobi.SolveOptions{MaxIterations: 1000, Tolerance: 1e-3})
package jacobi
