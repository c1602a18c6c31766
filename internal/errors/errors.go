// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrNotFound         = errors.New("company not found")
	ErrTransport        = errors.New("transport failure")
	ErrShapeMismatch    = errors.New("unrecognized payload shape")
	ErrInsufficientData = errors.New("insufficient data")
	ErrRateLimited      = errors.New("rate limited")
	ErrCircuitOpen      = errors.New("circuit breaker is open")
	ErrConfigInvalid    = errors.New("invalid configuration")
	ErrInputValidation  = errors.New("input validation failed")
)

// TransportError represents a network or HTTP level failure talking to the upstream API.
type TransportError struct {
	Kind       string // company, chart, metrics, analysis
	Ticker     string
	Endpoint   string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("transport error [%s] %s", e.Kind, e.Ticker)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Endpoint != "" {
		msg += " " + e.Endpoint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrTransport) match any TransportError.
func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// NewTransportError creates a new TransportError.
func NewTransportError(kind, ticker, endpoint string, statusCode int, err error) *TransportError {
	return &TransportError{
		Kind:       kind,
		Ticker:     ticker,
		Endpoint:   endpoint,
		StatusCode: statusCode,
		Err:        err,
	}
}

// DataError represents a data-quality problem in a payload that was received intact.
type DataError struct {
	DataType string
	Ticker   string
	Message  string
	Err      error
}

func (e *DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data error [%s] %s: %s: %v", e.DataType, e.Ticker, e.Message, e.Err)
	}
	return fmt.Sprintf("data error [%s] %s: %s", e.DataType, e.Ticker, e.Message)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError creates a new DataError.
func NewDataError(dataType, ticker, message string, err error) *DataError {
	return &DataError{
		DataType: dataType,
		Ticker:   ticker,
		Message:  message,
		Err:      err,
	}
}

// ComputationGapError reports a statistic that cannot be computed from the data at hand.
// It always unwraps to ErrInsufficientData.
type ComputationGapError struct {
	Statistic  string
	WindowDays int
	Reason     string
}

func (e *ComputationGapError) Error() string {
	return fmt.Sprintf("cannot compute %s over %d days: %s", e.Statistic, e.WindowDays, e.Reason)
}

func (e *ComputationGapError) Unwrap() error {
	return ErrInsufficientData
}

// NewComputationGapError creates a new ComputationGapError.
func NewComputationGapError(statistic string, windowDays int, reason string) *ComputationGapError {
	return &ComputationGapError{
		Statistic:  statistic,
		WindowDays: windowDays,
		Reason:     reason,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInputValidation
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
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

// IsNotFound reports whether err means the ticker has no company record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTransport reports whether err is an upstream transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}
