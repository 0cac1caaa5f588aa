// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrAuthFailure          = errors.New("authentication failed")
	ErrUpstreamRequest      = errors.New("upstream request failed")
	ErrZeroAcquisitionPrice = errors.New("acquisition price is zero")
	ErrSnapshotMissing      = errors.New("snapshot entry missing")
	ErrInvalidPortfolio     = errors.New("invalid portfolio")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrStoreUnavailable     = errors.New("portfolio store unavailable")
)

// AuthError represents a failed credential issuance.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error [%d]: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("auth error [%d]: %s", e.StatusCode, e.Message)
}

// Unwrap exposes both the cause and ErrAuthFailure to errors.Is.
func (e *AuthError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrAuthFailure, e.Err}
	}
	return []error{ErrAuthFailure}
}

// NewAuthError creates a new AuthError.
func NewAuthError(statusCode int, message string, err error) *AuthError {
	return &AuthError{
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// APIError represents a non-success answer from the quote API.
type APIError struct {
	StatusCode int
	TrID       string
	Endpoint   string
	Code       string // upstream msg_cd, when present
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error [%s %s] status %d: %s: %s", e.TrID, e.Endpoint, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error [%s %s] status %d: %s", e.TrID, e.Endpoint, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrUpstreamRequest
}

// NewAPIError creates a new APIError.
func NewAPIError(statusCode int, trID, endpoint, code, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		TrID:       trID,
		Endpoint:   endpoint,
		Code:       code,
		Message:    message,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidPortfolio
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string, err error) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
		Err:     err,
	}
}

// DataError represents a missing or malformed field in an upstream payload.
type DataError struct {
	DataType string
	Symbol   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Symbol, e.Message)
}

func (e *DataError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrUpstreamRequest, e.Err}
	}
	return []error{ErrUpstreamRequest}
}

// NewDataError creates a new DataError.
func NewDataError(dataType, symbol, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Symbol:   symbol,
		Message:  message,
		Err:      err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
