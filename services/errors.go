package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeCompliance     ErrorType = "compliance"
	ErrorTypeProvider       ErrorType = "provider"
	ErrorTypeCacheIntegrity ErrorType = "cache_integrity"
	ErrorTypeCircuitOpen    ErrorType = "circuit_open"
	ErrorTypeNoProvider     ErrorType = "no_provider"
	ErrorTypeAggregate      ErrorType = "aggregate"
	ErrorTypeInternal       ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Validation errors are rejected before any provider contact and never retried.
	ErrInvalidRequest       = NewDomainError(ErrorTypeValidation, "invalid routing request", nil)
	ErrEmptyPrompt          = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)
	ErrPromptSanitizedEmpty = NewDomainError(ErrorTypeValidation, "prompt is empty after sanitization", nil)
	ErrUnknownStrategy      = NewDomainError(ErrorTypeValidation, "unknown routing strategy", nil)
	ErrUnknownProvider      = NewDomainError(ErrorTypeValidation, "unknown provider", nil)
	ErrInvalidModel         = NewDomainError(ErrorTypeValidation, "invalid model specified", nil)

	// Compliance errors are rejected and audit-logged, never silently downgraded.
	ErrMissingIsolationKey   = NewDomainError(ErrorTypeCompliance, "sensitive content requires a patient isolation key", nil)
	ErrMissingComplianceTag  = NewDomainError(ErrorTypeCompliance, "mandatory compliance tag absent", nil)
	ErrIsolationMismatch     = NewDomainError(ErrorTypeCompliance, "isolation key mismatch", nil)
	ErrEmergencyNotCacheable = NewDomainError(ErrorTypeCompliance, "emergency content must not be cached", nil)

	// Provider errors are retried via the fallback chain.
	ErrProviderTimeout     = NewDomainError(ErrorTypeProvider, "provider timeout", nil)
	ErrProviderFailure     = NewDomainError(ErrorTypeProvider, "provider call failed", nil)
	ErrProviderRateLimited = NewDomainError(ErrorTypeProvider, "provider rate limited", nil)

	// Cache integrity errors purge the offending entry and count as a miss.
	ErrCacheIntegrity = NewDomainError(ErrorTypeCacheIntegrity, "cache entry integrity hash mismatch", nil)

	// Circuit/availability errors
	ErrCircuitOpen         = NewDomainError(ErrorTypeCircuitOpen, "circuit breaker open", nil)
	ErrNoProviderAvailable = NewDomainError(ErrorTypeNoProvider, "no provider available", nil)
)

// NewAggregateProviderFailure wraps the last underlying error after every
// candidate in the fallback chain has failed.
func NewAggregateProviderFailure(attempts int, lastErr error) *DomainError {
	return NewDomainError(ErrorTypeAggregate,
		fmt.Sprintf("all %d provider candidates failed", attempts), lastErr).
		WithDetail("attempts", attempts)
}

// GetErrorType returns the type of a domain error, or internal for
// anything else.
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails returns the details map of a domain error, if any.
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsComplianceError checks if an error is a compliance error
func IsComplianceError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCompliance
	}
	return false
}

// IsProviderError checks if an error is a provider error
func IsProviderError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeProvider
	}
	return false
}

// IsCacheIntegrityError checks if an error is a cache integrity error
func IsCacheIntegrityError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCacheIntegrity
	}
	return false
}

// IsNoProviderError checks if an error reports an empty eligible set
func IsNoProviderError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNoProvider
	}
	return false
}

// IsCircuitOpenError checks if an error reports an open circuit breaker
func IsCircuitOpenError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeCircuitOpen
	}
	return false
}

// IsAggregateError checks if an error is an aggregate provider failure
func IsAggregateError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeAggregate
	}
	return false
}

// IsRetryable reports whether the fallback chain should continue past err.
// Only provider-class failures are retried; everything else fails fast.
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeProvider
	}
	return false
}
