// Package errors provides standardized error handling for mayara's core:
// an internal Transient/Invalid/Fatal classification for session-local
// failures, and a closed set of caller-facing error kinds returned
// synchronously from the control API.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MarineYachtRadar/mayara-server/pkg/retry"
)

// ErrorClass classifies an internal error for retry/escalation purposes.
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried.
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration.
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing.
	ErrorFatal
)

// String returns the string representation of ErrorClass.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for session-local conditions.
var (
	ErrAlreadyStarted = errors.New("component already started")
	ErrNotStarted     = errors.New("component not started")
	ErrAlreadyStopped = errors.New("component already stopped")
	ErrShuttingDown   = errors.New("component is shutting down")

	ErrNoConnection      = errors.New("no connection available")
	ErrConnectionLost    = errors.New("connection lost")
	ErrConnectionTimeout = errors.New("connection timeout")
	ErrBindFailed        = errors.New("socket bind failed")

	ErrInvalidData    = errors.New("invalid data format")
	ErrParsingFailed  = errors.New("parsing failed")
	ErrChecksumFailed = errors.New("checksum validation failed")
)

// ClassifiedError wraps an error with its classification and call-site context.
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface.
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error.
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsTransient checks if an error is transient and should be retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	if errors.Is(err, ErrConnectionTimeout) ||
		errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrBindFailed) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"timeout", "connection", "network", "temporary", "unavailable", "reset"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// Classify returns the error class for an error, defaulting unknown errors
// to transient so callers retry rather than give up.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class
	}
	if IsTransient(err) {
		return ErrorTransient
	}
	if errors.Is(err, ErrInvalidData) || errors.Is(err, ErrParsingFailed) || errors.Is(err, ErrChecksumFailed) {
		return ErrorInvalid
	}
	return ErrorTransient
}

func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{Class: class, Err: err, Message: message, Component: component, Operation: operation}
}

// Wrap creates a standardized error with context: "component.method: action failed: %w".
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context.
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrapped, component, method, wrapped.Error())
}

// WrapFatal wraps an error as fatal with context.
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrapped, component, method, wrapped.Error())
}

// WrapInvalid wraps an error as invalid with context.
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrapped := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrapped, component, method, wrapped.Error())
}

// BackoffConfig mirrors retry.Config for components that compute their own
// delay schedule (Locator listener rebind, RadarSession reconnect) outside
// of retry.Do's blocking loop.
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// ToRetryConfig converts to the retry package's Config for use with retry.Do.
func (bc BackoffConfig) ToRetryConfig(maxAttempts int) retry.Config {
	return retry.Config{
		MaxAttempts:  maxAttempts,
		InitialDelay: bc.InitialDelay,
		MaxDelay:     bc.MaxDelay,
		Multiplier:   bc.Multiplier,
		AddJitter:    true,
	}
}

// NextDelay computes the next backoff delay given the previous one, capped
// at MaxDelay. Used by listeners/sessions driving their own retry loop so
// they can log/observe each attempt (retry.Do does not expose that).
func (bc BackoffConfig) NextDelay(prev time.Duration) time.Duration {
	if prev <= 0 {
		return bc.InitialDelay
	}
	next := time.Duration(float64(prev) * bc.Multiplier)
	if next > bc.MaxDelay {
		return bc.MaxDelay
	}
	return next
}
