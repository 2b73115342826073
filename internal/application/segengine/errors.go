// Package segengine implements the geographic segmentation pipeline: scope
// resolution, atomic-unit construction, spatial partitioning (grid-based
// region growing or geohash tile packing), validation and persistence,
// wrapped by a strategy dispatcher that runs the whole pipeline inside one
// database transaction.
package segengine

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error into the taxonomy from the error-handling
// design: scope, input, algorithm, validation, persistence or lease errors.
type Kind string

const (
	KindScope       Kind = "scope"
	KindInput       Kind = "input"
	KindAlgorithm   Kind = "algorithm"
	KindValidation  Kind = "validation"
	KindPersistence Kind = "persistence"
	KindLease       Kind = "lease"
)

// Code enumerates the specific failure reasons named in the error taxonomy.
type Code string

const (
	CodeUnknownScope       Code = "UNKNOWN_SCOPE"
	CodeBoothNotFound      Code = "BOOTH_NOT_FOUND"
	CodeBoundaryViolation  Code = "BOUNDARY_VIOLATION"
	CodeNoVoters           Code = "NO_VOTERS"
	CodeNoUnits            Code = "NO_UNITS"
	CodeNoBoundary         Code = "NO_BOUNDARY"
	CodeAssignmentFailed   Code = "ASSIGNMENT_FAILED"
	CodeGeometryBuildFail  Code = "GEOMETRY_BUILD_FAILED"
	CodeEmptySegment       Code = "EMPTY_SEGMENT"
	CodeVoterCountMismatch Code = "VOTER_COUNT_MISMATCH"
	CodeDuplicateVoter     Code = "DUPLICATE_VOTER"
	CodeUnassignedFamily   Code = "UNASSIGNED_FAMILY"
	CodeInteriorOverlap    Code = "INTERIOR_OVERLAP"
	CodeInvalidGeometry    Code = "INVALID_GEOMETRY"
	CodeEmptyGeometry      Code = "EMPTY_GEOMETRY"
	CodeJobFailed          Code = "JOB_FAILED"
)

// EngineError is a structured, machine-readable error raised anywhere in the
// pipeline. Its Kind groups it into the taxonomy; its Code is the specific
// reason.
type EngineError struct {
	Kind    Kind
	Code    Code
	Message string
	Err     error
}

func (e *EngineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error { return e.Err }

// Is supports errors.Is comparisons keyed on Code.
func (e *EngineError) Is(target error) bool {
	var other *EngineError
	if errors.As(target, &other) {
		return e.Code == other.Code
	}
	return false
}

func newErr(kind Kind, code Code, message string) *EngineError {
	return &EngineError{Kind: kind, Code: code, Message: message}
}

func wrapErr(kind Kind, code Code, message string, err error) *EngineError {
	return &EngineError{Kind: kind, Code: code, Message: message, Err: err}
}

// Sentinel errors for the common, code-independent checks.
var (
	ErrUnknownScope      = newErr(KindScope, CodeUnknownScope, "hierarchy level is neither a constituency nor a booth level")
	ErrBoothNotFound     = newErr(KindScope, CodeBoothNotFound, "scope resolves to zero booths")
	ErrBoundaryViolation = newErr(KindScope, CodeBoundaryViolation, "in-scope booths span more than one constituency")
	ErrNoVoters          = newErr(KindInput, CodeNoVoters, "scope contains no voters")
	ErrNoUnits           = newErr(KindInput, CodeNoUnits, "scope contains no atomic units")
	ErrNoBoundary        = newErr(KindInput, CodeNoBoundary, "cannot compute a boundary with zero units")
	ErrAssignmentFailed  = newErr(KindAlgorithm, CodeAssignmentFailed, "one or more units could not be assigned to a cell")
	ErrGeometryBuild     = newErr(KindAlgorithm, CodeGeometryBuildFail, "failed to build segment geometry")
)

// LeaseError marks a recoverable condition where a job vanished between the
// lease's select and update; the caller should simply continue polling.
type LeaseError struct {
	Message string
}

func (e *LeaseError) Error() string { return e.Message }
