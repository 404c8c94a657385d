// Package errtaxonomy implements a small closed set of classified
// failure kinds carrying retryability and severity defaults, plus a
// classifier that promotes arbitrary failures (including third-party
// errors that can't carry a kind) into this taxonomy.
//
// The shape generalizes the bare sentinel errors of
// internal/domain/errors.go (alanyoungcy-polymarketbot) into an
// attributed type, since the copy-trading pipeline needs
// {code, retryability, severity} on every classified failure to drive
// retry/breaker/shutdown decisions.
package errtaxonomy

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the closed set of failure classes.
type Kind string

const (
	Network            Kind = "NETWORK"
	API                Kind = "API"
	Validation         Kind = "VALIDATION"
	Execution          Kind = "EXECUTION"
	Database           Kind = "DATABASE"
	InsufficientFunds  Kind = "INSUFFICIENT_FUNDS"
	CircuitBreakerKind Kind = "CIRCUIT_BREAKER"
	Configuration      Kind = "CONFIGURATION"
)

// Severity is the operational severity of a classified error.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

type defaults struct {
	retryable bool
	severity  Severity
}

// defaultsByKind is the kind-to-defaults table.
var defaultsByKind = map[Kind]defaults{
	Network:            {retryable: true, severity: SeverityMedium},
	API:                {retryable: true, severity: SeverityMedium},
	Validation:         {retryable: false, severity: SeverityHigh},
	Execution:          {retryable: false, severity: SeverityHigh},
	Database:           {retryable: true, severity: SeverityHigh},
	InsufficientFunds:  {retryable: false, severity: SeverityCritical},
	CircuitBreakerKind: {retryable: true, severity: SeverityHigh},
	Configuration:      {retryable: false, severity: SeverityCritical},
}

// Error is the taxonomy's attributed error value.
type Error struct {
	Kind        Kind
	Code        string
	IsRetryable bool
	Severity    Severity
	Message     string
	Context     map[string]any
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// WithContext attaches structured logging context and returns the same
// error for chaining at the call site.
func (e *Error) WithContext(kv map[string]any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any, len(kv))
	}
	for k, v := range kv {
		e.Context[k] = v
	}
	return e
}

func newError(kind Kind, code, message string, cause error) *Error {
	d := defaultsByKind[kind]
	return &Error{
		Kind:        kind,
		Code:        code,
		IsRetryable: d.retryable,
		Severity:    d.severity,
		Message:     message,
		cause:       cause,
	}
}

// Constructors for each kind, matching the defaults table above.
// Each accepts an optional wrapped cause.

func NewNetwork(code, message string, cause error) *Error {
	return newError(Network, code, message, cause)
}

func NewAPI(code, message string, cause error) *Error {
	return newError(API, code, message, cause)
}

func NewValidation(code, message string, cause error) *Error {
	return newError(Validation, code, message, cause)
}

func NewExecution(code, message string, cause error) *Error {
	return newError(Execution, code, message, cause)
}

func NewDatabase(code, message string, cause error) *Error {
	return newError(Database, code, message, cause)
}

func NewInsufficientFunds(code, message string, cause error) *Error {
	return newError(InsufficientFunds, code, message, cause)
}

func NewCircuitBreaker(code, message string, cause error) *Error {
	return newError(CircuitBreakerKind, code, message, cause)
}

func NewConfiguration(code, message string, cause error) *Error {
	return newError(Configuration, code, message, cause)
}

// As reports whether err is (or wraps) a taxonomy *Error and returns it.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Classify promotes an arbitrary failure to a typed *Error. Already-typed
// errors pass through unchanged. Opaque failures are classified by
// lowercased substring rules, applied in the order below; anything that
// matches nothing becomes a non-retryable EXECUTION error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	if typed, ok := As(err); ok {
		return typed
	}

	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "mongo", "database") || (strings.Contains(msg, "connection") && strings.Contains(msg, "failed")):
		return NewDatabase("CLASSIFIED_DATABASE", err.Error(), err)
	case containsAny(msg, "timeout", "network", "connection", "enotfound", "econnrefused"):
		return NewNetwork("CLASSIFIED_NETWORK", err.Error(), err)
	case containsAny(msg, "api", "http") || (strings.Contains(msg, "request") && strings.Contains(msg, "failed")):
		return NewAPI("CLASSIFIED_API", err.Error(), err)
	case strings.Contains(msg, "insufficient") && strings.Contains(msg, "balance"):
		return NewInsufficientFunds("CLASSIFIED_INSUFFICIENT_FUNDS", err.Error(), err)
	case containsAny(msg, "validation", "invalid"):
		return NewValidation("CLASSIFIED_VALIDATION", err.Error(), err)
	default:
		return NewExecution("CLASSIFIED_EXECUTION", err.Error(), err)
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// RecoveryStrategy is the action the engine should take upon a
// classified error.
type RecoveryStrategy string

const (
	RecoveryRetry        RecoveryStrategy = "retry"
	RecoveryCircuitBreak RecoveryStrategy = "circuit_break"
	RecoveryShutdown     RecoveryStrategy = "shutdown"
	RecoverySkip         RecoveryStrategy = "skip"
)

// Recover selects a recovery strategy for a classified error: retry for
// NETWORK/API, a circuit-break signal for DATABASE, shutdown for any
// non-retryable error of critical severity, skip otherwise.
func Recover(e *Error) RecoveryStrategy {
	if e == nil {
		return RecoverySkip
	}
	switch e.Kind {
	case Network, API:
		return RecoveryRetry
	case Database:
		return RecoveryCircuitBreak
	}
	if !e.IsRetryable && e.Severity == SeverityCritical {
		return RecoveryShutdown
	}
	return RecoverySkip
}
