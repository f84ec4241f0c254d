// Package jacobi structured error types for the solver and device runtime
package jacobi

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Host or device buffer could not be obtained
	ErrTypeAllocation ErrorType = iota
	// Grid extent incompatible with the two-way split
	ErrTypeInvalidPartition
	// Compute or copy operation on a device context failed
	ErrTypeDevice
	// Invalid argument errors
	ErrTypeInvalidArg
)

// noDevice marks errors that are not tied to a single device context.
const noDevice = -1

// SolverError represents a structured error with context
type SolverError struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Device  int    // Device ID, or -1 when not device specific
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *SolverError) Error() string {
	where := e.Op
	if e.Device != noDevice {
		where = fmt.Sprintf("%s on device %d", e.Op, e.Device)
	}
	if e.Err != nil {
		return fmt.Sprintf("jacobi %s error in %s: %s (caused by: %v)",
			e.Type, where, e.Message, e.Err)
	}
	return fmt.Sprintf("jacobi %s error in %s: %s", e.Type, where, e.Message)
}

// Unwrap allows error chain inspection
func (e *SolverError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind sentinel for this error's type.
func (e *SolverError) Is(target error) bool {
	t, ok := target.(*SolverError)
	if !ok || t.Op != "" {
		return false
	}
	return t.Type == e.Type
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeAllocation:
		return "AllocationFailure"
	case ErrTypeInvalidPartition:
		return "InvalidPartition"
	case ErrTypeDevice:
		return "DeviceFailure"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	default:
		return "Unknown"
	}
}

// Kind sentinels. errors.Is matches any SolverError of the same type.
var (
	ErrAllocationFailure = &SolverError{Type: ErrTypeAllocation, Message: "allocation failure", Device: noDevice}
	ErrInvalidPartition  = &SolverError{Type: ErrTypeInvalidPartition, Message: "invalid partition", Device: noDevice}
	ErrDeviceFailure     = &SolverError{Type: ErrTypeDevice, Message: "device failure", Device: noDevice}
	ErrInvalidArgument   = &SolverError{Type: ErrTypeInvalidArg, Message: "invalid argument", Device: noDevice}
)

// Common pre-defined errors
var (
	// ErrContextDestroyed is returned by any operation on a destroyed context
	ErrContextDestroyed = errors.New("context destroyed")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = errors.New("double free detected")
)

// NewAllocationError creates an allocation error
func NewAllocationError(op string, device int, message string, err error) error {
	return &SolverError{
		Type:    ErrTypeAllocation,
		Op:      op,
		Message: message,
		Device:  device,
		Err:     err,
	}
}

// NewPartitionError creates an invalid partition error
func NewPartitionError(op string, message string) error {
	return &SolverError{
		Type:    ErrTypeInvalidPartition,
		Op:      op,
		Message: message,
		Device:  noDevice,
	}
}

// NewDeviceError creates a device failure error
func NewDeviceError(op string, device int, message string, err error) error {
	return &SolverError{
		Type:    ErrTypeDevice,
		Op:      op,
		Message: message,
		Device:  device,
		Err:     err,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &SolverError{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
		Device:  noDevice,
	}
}

// IsAllocationError checks if an error is an allocation failure
func IsAllocationError(err error) bool {
	return errors.Is(err, ErrAllocationFailure)
}

// IsPartitionError checks if an error is an invalid partition error
func IsPartitionError(err error) bool {
	return errors.Is(err, ErrInvalidPartition)
}

// IsDeviceError checks if an error is a device failure
func IsDeviceError(err error) bool {
	return errors.Is(err, ErrDeviceFailure)
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}
