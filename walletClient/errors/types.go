package errors

import (
	"fmt"
)

// ErrorCode represents different categories of errors
type ErrorCode string

const (
	// ErrCodeInvalidDescriptor indicates a malformed or constraint-violating descriptor,
	// detected before any work is dispatched
	ErrCodeInvalidDescriptor ErrorCode = "INVALID_DESCRIPTOR"

	// ErrCodeParse indicates a malformed signer handle
	ErrCodeParse ErrorCode = "PARSE"

	// ErrCodeNetwork indicates the signing engine was unreachable or the connection dropped
	ErrCodeNetwork ErrorCode = "NETWORK"

	// ErrCodeProtocolAborted indicates too few reachable parties to meet the threshold,
	// or a co-signer rejected the round
	ErrCodeProtocolAborted ErrorCode = "PROTOCOL_ABORTED"

	// ErrCodeEngine indicates any other failure reported by the signing engine
	ErrCodeEngine ErrorCode = "ENGINE"

	// ErrCodeAuth indicates the user session was rejected by the user management service
	ErrCodeAuth ErrorCode = "AUTH"

	// ErrCodeValidation indicates input validation errors outside the descriptor codec
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeConfig indicates configuration errors
	ErrCodeConfig ErrorCode = "CONFIG"

	// ErrCodeInternal indicates internal system errors
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// Severity represents the severity level of an error
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// SignerError is a typed failure surfaced by the wallet signing stack.
type SignerError struct {
	Code     ErrorCode              `json:"code"`
	Op       string                 `json:"op,omitempty"`
	Message  string                 `json:"message"`
	Severity Severity               `json:"severity"`
	Cause    error                  `json:"-"`
	Context  map[string]interface{} `json:"context,omitempty"`
}

// New creates a new SignerError
func New(code ErrorCode, op, message string, cause error) *SignerError {
	return &SignerError{
		Code:     code,
		Op:       op,
		Message:  message,
		Severity: determineSeverity(code),
		Cause:    cause,
		Context:  make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *SignerError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	if e.Op != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Op, e.Code, msg)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause
func (e *SignerError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a SignerError with the same code.
// This lets callers match on a bare &SignerError{Code: ...} sentinel.
func (e *SignerError) Is(target error) bool {
	t, ok := target.(*SignerError)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Op == "" || t.Op == e.Op)
}

// WithContext adds context to the error
func (e *SignerError) WithContext(key string, value interface{}) *SignerError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithSeverity overrides the default severity
func (e *SignerError) WithSeverity(severity Severity) *SignerError {
	e.Severity = severity
	return e
}

// IsRetryable returns true if the error is retryable.
// Only transport failures qualify; an aborted threshold round needs the
// caller to decide whether contacting the co-signers again is worth it.
func (e *SignerError) IsRetryable() bool {
	return e.Code == ErrCodeNetwork
}

func determineSeverity(code ErrorCode) Severity {
	switch code {
	case ErrCodeInternal:
		return SeverityCritical
	case ErrCodeEngine, ErrCodeProtocolAborted:
		return SeverityHigh
	case ErrCodeNetwork, ErrCodeAuth:
		return SeverityMedium
	case ErrCodeInvalidDescriptor, ErrCodeParse, ErrCodeValidation, ErrCodeConfig:
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Common error constructors

// NewInvalidDescriptorError creates an INVALID_DESCRIPTOR error
func NewInvalidDescriptorError(op, message string) *SignerError {
	return New(ErrCodeInvalidDescriptor, op, message, nil)
}

// NewParseError creates a PARSE error
func NewParseError(op, message string, cause error) *SignerError {
	return New(ErrCodeParse, op, message, cause)
}

// NewNetworkError creates a NETWORK error
func NewNetworkError(op, message string, cause error) *SignerError {
	return New(ErrCodeNetwork, op, message, cause)
}

// NewProtocolAbortedError creates a PROTOCOL_ABORTED error
func NewProtocolAbortedError(op, message string) *SignerError {
	return New(ErrCodeProtocolAborted, op, message, nil)
}

// NewEngineError creates an ENGINE error. The message is the engine's
// diagnostic text and is preserved verbatim.
func NewEngineError(op, message string, cause error) *SignerError {
	return New(ErrCodeEngine, op, message, cause)
}

// NewAuthError creates an AUTH error
func NewAuthError(op, message string) *SignerError {
	return New(ErrCodeAuth, op, message, nil)
}

// NewValidationError creates a VALIDATION error
func NewValidationError(op, message string) *SignerError {
	return New(ErrCodeValidation, op, message, nil)
}

// NewConfigError creates a CONFIG error
func NewConfigError(message string) *SignerError {
	return New(ErrCodeConfig, "", message, nil)
}

// NewInternalError creates an INTERNAL error
func NewInternalError(op, message string, cause error) *SignerError {
	return New(ErrCodeInternal, op, message, cause)
}
