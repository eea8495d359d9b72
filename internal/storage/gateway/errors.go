package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors callers may test with errors.Is.
var (
	// Configuration / connection errors
	ErrNoDriverAvailable = errors.New("no database driver candidate could connect")
	ErrConnectionFailed  = errors.New("failed to connect to database")
	ErrGatewayClosed     = errors.New("gateway is closed")

	// Transaction errors
	ErrTxClosed = errors.New("transaction is closed")
	ErrDeadlock = errors.New("database deadlock detected")

	// Data errors
	ErrInvoiceNotFound  = errors.New("invoice not found")
	ErrMovementNotFound = errors.New("movement not found")
	ErrBalanceNotFound  = errors.New("ledger balance row not found")

	// Constraint errors
	ErrDuplicateFolio = errors.New("duplicate folio")
)

// ErrorType categorises gateway errors.
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConnection
	ErrorTypeTransaction
	ErrorTypeData
	ErrorTypeConstraint
	ErrorTypeQuery
)

// GatewayError carries the failed operation, a category, and whether the
// enclosing plan is worth retrying.
type GatewayError struct {
	Type      ErrorType
	Operation string
	Message   string
	Cause     error
	Code      string
	Retryable bool
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is reports whether the error matches one of the sentinels.
func (e *GatewayError) Is(target error) bool {
	if target == nil {
		return false
	}
	if ge, ok := target.(*GatewayError); ok {
		return e.Type == ge.Type && e.Message == ge.Message
	}
	switch target {
	case ErrConnectionFailed:
		return e.Type == ErrorTypeConnection && e.Code == "CONNECTION_FAILED"
	case ErrNoDriverAvailable:
		return e.Type == ErrorTypeConnection && e.Code == "NO_DRIVER"
	case ErrTxClosed:
		return e.Type == ErrorTypeTransaction && e.Code == "TX_CLOSED"
	case ErrDeadlock:
		return e.Type == ErrorTypeTransaction && e.Code == "DEADLOCK"
	case ErrInvoiceNotFound:
		return e.Type == ErrorTypeData && e.Code == "INVOICE_NOT_FOUND"
	case ErrMovementNotFound:
		return e.Type == ErrorTypeData && e.Code == "MOVEMENT_NOT_FOUND"
	case ErrBalanceNotFound:
		return e.Type == ErrorTypeData && e.Code == "BALANCE_NOT_FOUND"
	case ErrDuplicateFolio:
		return e.Type == ErrorTypeConstraint && e.Code == "DUPLICATE_FOLIO"
	}
	return false
}

// WithCode sets the machine-readable code.
func (e *GatewayError) WithCode(code string) *GatewayError {
	e.Code = code
	return e
}

// IsRetryable reports whether retrying the whole plan may succeed.
func (e *GatewayError) IsRetryable() bool {
	return e.Retryable
}

// NewGatewayError creates a GatewayError with retryability derived from
// the category and cause.
func NewGatewayError(errorType ErrorType, operation, message string, cause error) *GatewayError {
	return &GatewayError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableError(errorType, cause),
	}
}

// NewConnectionError creates a connection error.
func NewConnectionError(operation, message string, cause error) *GatewayError {
	return NewGatewayError(ErrorTypeConnection, operation, message, cause)
}

// NewTransactionError creates a transaction error.
func NewTransactionError(operation, message string, cause error) *GatewayError {
	return NewGatewayError(ErrorTypeTransaction, operation, message, cause)
}

// NewDataError creates a data error.
func NewDataError(operation, message string, cause error) *GatewayError {
	return NewGatewayError(ErrorTypeData, operation, message, cause)
}

// NewConstraintError creates a constraint error.
func NewConstraintError(operation, message string, cause error) *GatewayError {
	return NewGatewayError(ErrorTypeConstraint, operation, message, cause)
}

// NewQueryError creates a query error.
func NewQueryError(operation, message string, cause error) *GatewayError {
	return NewGatewayError(ErrorTypeQuery, operation, message, cause)
}

func isRetryableError(errorType ErrorType, cause error) bool {
	switch errorType {
	case ErrorTypeConnection:
		return true
	case ErrorTypeTransaction, ErrorTypeQuery:
		if cause == nil {
			return false
		}
		msg := strings.ToLower(cause.Error())
		for _, pattern := range []string{"deadlock", "timeout", "temporary", "busy", "locked"} {
			if strings.Contains(msg, pattern) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IsRetryable reports whether any error in the chain is worth a retry.
func IsRetryable(err error) bool {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge.Retryable
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused", "connection reset", "database is locked",
		"deadlock", "timeout", "busy",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// WrapError attaches gateway context to a raw driver error, classifying
// it by message when no better information exists.
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}
	var ge *GatewayError
	if errors.As(err, &ge) {
		clone := *ge
		clone.Operation = operation
		return &clone
	}

	msg := strings.ToLower(err.Error())
	var errorType ErrorType
	retryable := false
	switch {
	case strings.Contains(msg, "connect"):
		errorType = ErrorTypeConnection
		retryable = true
	case strings.Contains(msg, "deadlock"), strings.Contains(msg, "transaction"):
		errorType = ErrorTypeTransaction
		retryable = strings.Contains(msg, "deadlock") || strings.Contains(msg, "timeout")
	case strings.Contains(msg, "constraint"), strings.Contains(msg, "duplicate"), strings.Contains(msg, "unique"):
		errorType = ErrorTypeConstraint
	case strings.Contains(msg, "no rows"), strings.Contains(msg, "not found"):
		errorType = ErrorTypeData
	default:
		errorType = ErrorTypeQuery
	}

	return &GatewayError{
		Type:      errorType,
		Operation: operation,
		Message:   err.Error(),
		Cause:     err,
		Retryable: retryable,
	}
}
