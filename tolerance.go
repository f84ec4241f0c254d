// Package jacobi tolerance-based verification for floating-point comparisons
package jacobi

import (
	"fmt"
	"math"
)

// ToleranceConfig defines tolerance parameters for floating-point comparison
type ToleranceConfig struct {
	// AbsTol is the absolute tolerance for values near zero
	AbsTol float64

	// RelTol is the relative tolerance as a fraction of the larger value
	RelTol float64

	// ULPTol is the maximum allowed difference in ULPs (Units in Last Place)
	ULPTol int64
}

// DefaultTolerance suits results that went through the same arithmetic in
// a different order, such as parallel reductions.
func DefaultTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 1e-12,
		RelTol: 1e-10,
		ULPTol: 8,
	}
}

// StrictTolerance accepts only values a few ULPs apart
func StrictTolerance() ToleranceConfig {
	return ToleranceConfig{
		AbsTol: 0,
		RelTol: 0,
		ULPTol: 2,
	}
}

// Float64NearEqual checks if two float64 values are equal within tolerance
func Float64NearEqual(a, b float64, tol ToleranceConfig) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}

	// Handles ±0 and equal infinities
	if a == b {
		return true
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return false
	}

	diff := math.Abs(a - b)
	if diff <= tol.AbsTol {
		return true
	}

	larger := math.Max(math.Abs(a), math.Abs(b))
	if diff <= larger*tol.RelTol {
		return true
	}

	if tol.ULPTol > 0 && Float64ULPDiff(a, b) <= tol.ULPTol {
		return true
	}
	return false
}

// Float64ULPDiff computes the difference in ULPs between two float64 values
func Float64ULPDiff(a, b float64) int64 {
	aBits := math.Float64bits(a)
	bBits := math.Float64bits(b)

	// Different signs, can't use simple subtraction
	if (aBits^bBits)&(1<<63) != 0 {
		return math.MaxInt64
	}

	if aBits > bBits {
		return int64(aBits - bBits)
	}
	return int64(bBits - aBits)
}

// VerificationResult summarises an element-wise comparison
type VerificationResult struct {
	MaxAbsError float64
	MaxRelError float64
	MaxULPError int64
	NumErrors   int
	TotalItems  int
	FirstError  int // Index of first error, -1 if none
}

// VerifyFloat64Array compares two float64 arrays and returns detailed results
func VerifyFloat64Array(expected, actual []float64, tol ToleranceConfig) VerificationResult {
	result := VerificationResult{
		TotalItems: len(expected),
		FirstError: -1,
	}

	if len(expected) != len(actual) {
		result.NumErrors = len(expected)
		return result
	}

	for i := range expected {
		if Float64NearEqual(expected[i], actual[i], tol) {
			continue
		}
		result.NumErrors++
		if result.FirstError == -1 {
			result.FirstError = i
		}

		absDiff := math.Abs(expected[i] - actual[i])
		if absDiff > result.MaxAbsError {
			result.MaxAbsError = absDiff
		}
		if expected[i] != 0 {
			if relDiff := absDiff / math.Abs(expected[i]); relDiff > result.MaxRelError {
				result.MaxRelError = relDiff
			}
		}
		if ulp := Float64ULPDiff(expected[i], actual[i]); ulp > result.MaxULPError {
			result.MaxULPError = ulp
		}
	}

	return result
}

// Passed reports whether every element matched
func (r VerificationResult) Passed() bool {
	return r.NumErrors == 0
}

// String formats the verification result for display
func (r VerificationResult) String() string {
	if r.NumErrors == 0 {
		return "PASS: All values match within tolerance"
	}

	errorRate := float64(r.NumErrors) / float64(r.TotalItems) * 100
	return fmt.Sprintf("FAIL: %d/%d values differ (%.2f%%)\n"+
		"  Max absolute error: %e\n"+
		"  Max relative error: %e\n"+
		"  Max ULP error: %d\n"+
		"  First error at index: %d",
		r.NumErrors, r.TotalItems, errorRate,
		r.MaxAbsError, r.MaxRelError, r.MaxULPError, r.FirstError)
}
