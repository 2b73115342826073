package rest

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/voteops/segengine/internal/application/segengine"
)

// APIError is the JSON error envelope every handler returns on failure.
type APIError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
}

func (e *APIError) Error() string { return e.Message }

func NewAPIError(code, message string, httpStatus int) *APIError {
	return &APIError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func NewAPIErrorWithDetails(code, message string, httpStatus int, details map[string]interface{}) *APIError {
	return &APIError{Code: code, Message: message, Details: details, HTTPStatus: httpStatus}
}

var (
	ErrBadRequest       = NewAPIError("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrNotFound         = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrValidationFailed = NewAPIError("VALIDATION_FAILED", "Validation failed", http.StatusBadRequest)
	ErrInternalServer   = NewAPIError("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrInvalidJSON      = NewAPIError("INVALID_JSON", "Invalid JSON in request body", http.StatusBadRequest)
	ErrInvalidID        = NewAPIError("INVALID_ID", "Invalid ID format", http.StatusBadRequest)
)

// engineCodeStatus maps the engine's error taxonomy to HTTP status: an
// unknown scope is a 400 and a missing booth a 404; the other input codes,
// the algorithm codes and the validation codes are 422; JOB_FAILED is a 500.
var engineCodeStatus = map[segengine.Code]int{
	segengine.CodeUnknownScope:      http.StatusBadRequest,
	segengine.CodeBoothNotFound:     http.StatusNotFound,
	segengine.CodeBoundaryViolation: http.StatusUnprocessableEntity,
	segengine.CodeNoVoters:          http.StatusUnprocessableEntity,
	segengine.CodeNoUnits:           http.StatusUnprocessableEntity,
	segengine.CodeNoBoundary:        http.StatusUnprocessableEntity,
	segengine.CodeAssignmentFailed:  http.StatusUnprocessableEntity,
	segengine.CodeGeometryBuildFail: http.StatusUnprocessableEntity,
	segengine.CodeEmptySegment:      http.StatusUnprocessableEntity,
	segengine.CodeVoterCountMismatch: http.StatusUnprocessableEntity,
	segengine.CodeDuplicateVoter:    http.StatusUnprocessableEntity,
	segengine.CodeUnassignedFamily:  http.StatusUnprocessableEntity,
	segengine.CodeInteriorOverlap:   http.StatusUnprocessableEntity,
	segengine.CodeInvalidGeometry:   http.StatusUnprocessableEntity,
	segengine.CodeEmptyGeometry:     http.StatusUnprocessableEntity,
	segengine.CodeJobFailed:         http.StatusInternalServerError,
}

// TranslateError maps any error the handlers see into an APIError, so the
// response envelope is consistent regardless of which layer raised it.
func TranslateError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var engineErr *segengine.EngineError
	if errors.As(err, &engineErr) {
		status, ok := engineCodeStatus[engineErr.Code]
		if !ok {
			status = http.StatusUnprocessableEntity
		}
		return NewAPIError(string(engineErr.Code), engineErr.Message, status)
	}

	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	if strings.Contains(strings.ToLower(err.Error()), "not found") {
		return ErrNotFound
	}

	return NewAPIError("INTERNAL_ERROR", "An unexpected error occurred", http.StatusInternalServerError)
}
